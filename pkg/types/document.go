package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusProcessed, DocumentStatusFailed:
		return true
	}
	return false
}

func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusProcessed || s == DocumentStatusFailed
}

// CanTransitionTo reports whether next directly follows s in the
// pending -> processing -> processed|failed machine.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	if s.Terminal() {
		return false
	}

	switch s {
	case DocumentStatusPending:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusProcessed || next == DocumentStatusFailed
	}
	return false
}

// LetterFields is the bilingual letter metadata. The same eleven keys are used
// for user-entered metadata and for fields extracted by analysis; every key is
// always serialized, nil as null.
type LetterFields struct {
	Office        *string `db:"office" json:"office" form:"office"`
	RecipientName *string `db:"recipient_name" json:"recipientName" form:"recipientName"`
	SerialNumber  *string `db:"serial_number" json:"serialNumber" form:"serialNumber"`
	LetterDate    *string `db:"letter_date" json:"letterDate" form:"letterDate"`
	ReceivedDate  *string `db:"received_date" json:"receivedDate" form:"receivedDate"`
	Author        *string `db:"author" json:"author" form:"author"`
	LetterType    *string `db:"letter_type" json:"letterType" form:"letterType"`
	Subject       *string `db:"subject" json:"subject" form:"subject"`
	Topic         *string `db:"topic" json:"topic" form:"topic"`
	Mobile        *string `db:"mobile" json:"mobile" form:"mobile"`
	DocumentCount *string `db:"document_count" json:"documentCount" form:"documentCount"`
}

// LetterFieldKeys lists the JSON keys of LetterFields in declaration order.
var LetterFieldKeys = []string{
	"office",
	"recipientName",
	"serialNumber",
	"letterDate",
	"receivedDate",
	"author",
	"letterType",
	"subject",
	"topic",
	"mobile",
	"documentCount",
}

func (f *LetterFields) refs() []**string {
	return []**string{
		&f.Office,
		&f.RecipientName,
		&f.SerialNumber,
		&f.LetterDate,
		&f.ReceivedDate,
		&f.Author,
		&f.LetterType,
		&f.Subject,
		&f.Topic,
		&f.Mobile,
		&f.DocumentCount,
	}
}

// Apply overwrites every field that is set in patch.
func (f *LetterFields) Apply(patch LetterFields) {
	dst := f.refs()
	for i, v := range patch.refs() {
		if *v != nil {
			value := **v
			*dst[i] = &value
		}
	}
}

// FillMissing copies fields from src only where f has none.
func (f *LetterFields) FillMissing(src LetterFields) {
	dst := f.refs()
	for i, v := range src.refs() {
		if *dst[i] == nil && *v != nil {
			value := **v
			*dst[i] = &value
		}
	}
}

// Set assigns a field by JSON key. Unknown keys are reported as false.
func (f *LetterFields) Set(key string, value *string) bool {
	refs := f.refs()
	for i, k := range LetterFieldKeys {
		if k == key {
			*refs[i] = value
			return true
		}
	}
	return false
}

// Map returns every key, including unset ones.
func (f LetterFields) Map() map[string]*string {
	out := make(map[string]*string, len(LetterFieldKeys))
	for i, v := range f.refs() {
		out[LetterFieldKeys[i]] = *v
	}
	return out
}

func (f LetterFields) Empty() bool {
	for _, v := range f.refs() {
		if *v != nil {
			return false
		}
	}
	return true
}

// ExtractedFields is LetterFields stored as a single jsonb column.
type ExtractedFields LetterFields

func (e *ExtractedFields) Letter() LetterFields {
	if e == nil {
		return LetterFields{}
	}
	return LetterFields(*e)
}

func (e *ExtractedFields) Scan(src any) error {
	return scanJSON(e, src)
}

func (e *ExtractedFields) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

type AIAnalysis struct {
	Summary      string `json:"summary"`
	DocumentType string `json:"documentType"`
	Model        string `json:"model,omitempty"`
}

func (a *AIAnalysis) Scan(src any) error {
	return scanJSON(a, src)
}

func (a *AIAnalysis) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

type Document struct {
	ID           string `db:"id" json:"id"`
	FileName     string `db:"file_name" json:"fileName"`
	OriginalName string `db:"original_name" json:"originalName"`
	MimeType     string `db:"mime_type" json:"mimeType"`
	FileSize     int64  `db:"file_size" json:"fileSize"`
	FilePath     string `db:"file_path" json:"filePath"`

	LetterFields

	Status        DocumentStatus   `db:"status" json:"status"`
	OCRConfidence *float64         `db:"ocr_confidence" json:"ocrConfidence"`
	OCRText       *string          `db:"ocr_text" json:"ocrText"`
	ExtractedData *ExtractedFields `db:"extracted_data" json:"extractedData"`
	AIAnalysis    *AIAnalysis      `db:"ai_analysis" json:"aiAnalysis"`

	UploadedBy  string  `db:"uploaded_by" json:"uploadedBy"`
	ProcessedBy *string `db:"processed_by" json:"processedBy"`

	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Validate checks the attributes that must be present at creation.
func (d *Document) Validate() error {
	verr := new(ValidationError)
	if d.FileName == "" {
		verr.Add("fileName", "file name is required")
	}
	if d.OriginalName == "" {
		verr.Add("originalName", "original file name is required")
	}
	if d.MimeType == "" {
		verr.Add("mimeType", "mime type is required")
	}
	if d.FileSize <= 0 {
		verr.Add("fileSize", "file size must be positive")
	}
	if d.FilePath == "" {
		verr.Add("filePath", "file path is required")
	}
	if d.UploadedBy == "" {
		verr.Add("uploadedBy", "uploader is required")
	}
	if d.OCRConfidence != nil && !ValidConfidence(*d.OCRConfidence) {
		verr.Add("ocrConfidence", "confidence must be between 0 and 100")
	}
	return verr.OrNil()
}

func ValidConfidence(c float64) bool {
	return c >= 0 && c <= 100
}

type DocumentFilter struct {
	Status     DocumentStatus `form:"status"`
	LetterType string         `form:"letterType"`
	Search     string         `form:"search"`
}

// DocumentUpdate is the whitelist of fields a person may correct. File
// attributes, status, and timestamps are deliberately absent.
type DocumentUpdate struct {
	LetterFields
	OCRText *string `json:"ocrText"`
}

func (u *DocumentUpdate) Empty() bool {
	return u.LetterFields.Empty() && u.OCRText == nil
}

// Enrichment holds whatever the pipeline produced; fields stay nil for steps
// that did not succeed.
type Enrichment struct {
	OCRText       *string
	OCRConfidence *float64
	ExtractedData *ExtractedFields
	AIAnalysis    *AIAnalysis
}

// DocumentTransition describes one status change together with the data and
// audit entry written in the same transaction.
type DocumentTransition struct {
	DocumentID  string
	From        DocumentStatus
	To          DocumentStatus
	Enrichment  *Enrichment
	ProcessedBy *string
	// FillMetadata copies extracted fields into metadata columns that are
	// still null.
	FillMetadata bool
	Audit        *AuditLogEntry
}

func (t *DocumentTransition) Validate() error {
	if t.From.Terminal() {
		return fmt.Errorf("%w: document is already %s", ErrInvalidTransition, t.From)
	}
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	if t.Enrichment != nil && t.Enrichment.OCRConfidence != nil && !ValidConfidence(*t.Enrichment.OCRConfidence) {
		return NewValidationError("ocrConfidence", "confidence must be between 0 and 100")
	}
	return nil
}

func scanJSON(dst any, src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json source type %T", src)
	}
}
