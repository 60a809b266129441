package export

import (
	"bytes"
	"testing"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteDocuments(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	docs := []*types.Document{
		{
			ID:           "doc-1",
			OriginalName: "letter.pdf",
			LetterFields: types.LetterFields{
				Office:  utils.StringPtr("पोलीस ठाणे, शिवाजीनगर"),
				Subject: utils.StringPtr("Noise complaint"),
			},
			Status:        types.DocumentStatusProcessed,
			OCRConfidence: utils.Float64Ptr(92.35),
			CreatedAt:     created,
		},
		{
			ID:           "doc-2",
			OriginalName: "scan.png",
			Status:       types.DocumentStatusPending,
			CreatedAt:    created,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDocuments(&buf, docs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Headers(), rows[0])
	assert.Equal(t, "doc-1", rows[1][0])
	assert.Equal(t, "पोलीस ठाणे, शिवाजीनगर", rows[1][1])
	assert.Equal(t, "Noise complaint", rows[1][8])
	assert.Equal(t, "processed", rows[1][12])
	assert.Equal(t, "92.35", rows[1][13])
	assert.Equal(t, "2025-03-14 09:30", rows[1][15])

	assert.Equal(t, "doc-2", rows[2][0])
	assert.Equal(t, "pending", rows[2][12])
}

func TestWriteDocumentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDocuments(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "epatra-documents-20250314-0930.xlsx", Filename("20250314-0930"))
}
