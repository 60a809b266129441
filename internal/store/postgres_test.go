package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"epatra/internal/db"
	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to EPATRA_TEST_DATABASE_URL and applies the schema. The
// tests in this file are skipped when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("EPATRA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("EPATRA_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, &types.Config{DatabaseURL: url})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func newTestDocument() *types.Document {
	return &types.Document{
		FileName:     "letter.pdf",
		OriginalName: "letter.pdf",
		MimeType:     "application/pdf",
		FileSize:     12,
		FilePath:     "documents/" + utils.NanoID() + ".pdf",
		UploadedBy:   "u1",
	}
}

func TestPostgresTransitionDocument(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	docs := NewDocumentRepository(pool)
	audit := NewAuditRepository(pool)

	doc := newTestDocument()
	require.NoError(t, docs.CreateDocument(ctx, doc, types.AuditContext{UserID: "u1"}))

	start := &types.DocumentTransition{
		DocumentID: doc.ID,
		From:       types.DocumentStatusPending,
		To:         types.DocumentStatusProcessing,
		Audit:      types.AuditContext{}.Entry(types.AuditActionEnrichmentComplete, types.EntityDocument, doc.ID, nil, nil),
	}
	updated, err := docs.TransitionDocument(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentStatusProcessing, updated.Status)

	// the row is no longer pending, so the same transition matches nothing
	start.Audit = types.AuditContext{}.Entry(types.AuditActionEnrichmentComplete, types.EntityDocument, doc.ID, nil, nil)
	_, err = docs.TransitionDocument(ctx, start)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = docs.TransitionDocument(ctx, &types.DocumentTransition{
		DocumentID: "missing-" + utils.NanoID(),
		From:       types.DocumentStatusPending,
		To:         types.DocumentStatusProcessing,
	})
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)

	entries, err := audit.Entries(ctx, types.AuditFilter{EntityID: doc.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPostgresWithAuditRollsBack(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	docs := NewDocumentRepository(pool)

	insert := func(tx pgx.Tx, doc *types.Document) error {
		prepareNewDocument(doc, time.Now())
		_, err := exec(ctx, tx, psql().Insert(documentTableName).SetMap(utils.StructToMap(doc)))
		return err
	}

	failing := newTestDocument()
	boom := errors.New("boom")
	err := withAudit(ctx, pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		if err := insert(tx, failing); err != nil {
			return nil, err
		}
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = docs.Document(ctx, failing.ID)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)

	// an entry that cannot be written takes the mutation down with it
	badEntry := newTestDocument()
	err = withAudit(ctx, pool, func(tx pgx.Tx) (*types.AuditLogEntry, error) {
		if err := insert(tx, badEntry); err != nil {
			return nil, err
		}
		entry := types.AuditContext{}.Entry(types.AuditActionCreateDocument, types.EntityDocument, badEntry.ID, nil, nil)
		entry.NewValue = json.RawMessage(`{not json`)
		return entry, nil
	})
	assert.Error(t, err)
	_, err = docs.Document(ctx, badEntry.ID)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
}

func TestPostgresDeliveryStatusOrdering(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	comms := NewCommunicationRepository(pool)

	msg := &types.CommunicationLog{
		Channel:   types.ChannelSMS,
		Recipient: "+919800000000",
		Message:   "पत्र प्राप्त झाले",
		SentBy:    "u1",
	}
	require.NoError(t, comms.CreateCommunication(ctx, msg, types.AuditContext{UserID: "u1"}))

	updated, err := comms.UpdateDeliveryStatus(ctx, msg.ID, types.DeliveryDelivered, utils.StringPtr("sms-1"), nil, types.AuditContext{})
	require.NoError(t, err)
	assert.Equal(t, types.DeliveryDelivered, updated.Status)

	_, err = comms.UpdateDeliveryStatus(ctx, msg.ID, types.DeliverySent, nil, nil, types.AuditContext{})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	current, err := comms.Communication(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DeliveryDelivered, current.Status)
	assert.False(t, current.UpdatedAt.Before(updated.UpdatedAt))
}
