package types

import "time"

type Notification struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"userId"`
	Title      string     `db:"title" json:"title"`
	Body       string     `db:"body" json:"body"`
	DocumentID *string    `db:"document_id" json:"documentId"`
	ReadAt     *time.Time `db:"read_at" json:"readAt"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

type DocumentStats struct {
	Total             int64    `db:"total" json:"total"`
	Pending           int64    `db:"pending" json:"pending"`
	Processing        int64    `db:"processing" json:"processing"`
	Processed         int64    `db:"processed" json:"processed"`
	Failed            int64    `db:"failed" json:"failed"`
	AverageConfidence *float64 `db:"average_confidence" json:"averageConfidence"`
}
