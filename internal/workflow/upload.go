package workflow

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"epatra/internal/enrich"
	"epatra/pkg/types"
)

const DefaultMaxUploadBytes = 10 << 20

// allowedTypes maps each accepted extension to its canonical MIME type.
var allowedTypes = map[string]string{
	".jpeg": enrich.MimeJPEG,
	".jpg":  enrich.MimeJPEG,
	".png":  enrich.MimePNG,
	".pdf":  enrich.MimePDF,
	".doc":  enrich.MimeDoc,
	".docx": enrich.MimeDocx,
}

// Upload is a file received from a client together with the metadata typed in
// alongside it.
type Upload struct {
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
	Metadata     types.LetterFields
}

// ValidateUpload checks name, type and size before anything is stored, and
// replaces the client supplied MIME type with the canonical one.
func ValidateUpload(u *Upload, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	verr := new(types.ValidationError)

	name := strings.TrimSpace(filepath.Base(u.OriginalName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		verr.Add("file", "a file is required")
		return verr
	}
	u.OriginalName = name

	ext := strings.ToLower(filepath.Ext(name))
	canonical, ok := allowedTypes[ext]
	if !ok {
		verr.Add("file", "only jpeg, jpg, png, pdf, doc and docx files are accepted")
	} else if !mimeMatches(u.MimeType, canonical) {
		verr.Add("file", fmt.Sprintf("file content type %s does not match extension %s", u.MimeType, ext))
	}

	switch {
	case u.Size <= 0:
		verr.Add("file", "file is empty")
	case u.Size > maxBytes:
		verr.Add("file", fmt.Sprintf("file exceeds the %d MB limit", maxBytes>>20))
	}

	if verr.HasErrors() {
		return verr
	}

	u.MimeType = canonical
	return nil
}

func mimeMatches(given, canonical string) bool {
	given = strings.ToLower(strings.TrimSpace(strings.Split(given, ";")[0]))
	switch given {
	case "", "application/octet-stream", canonical:
		return true
	case "image/jpg", "image/pjpeg":
		return canonical == enrich.MimeJPEG
	}
	return false
}
