// Package model provides data models for docqa.
package model

import (
	"time"
)

// DocumentStatus is the ingestion state of a document.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusParsed   DocumentStatus = "parsed"
	StatusChunked  DocumentStatus = "chunked"
	StatusEmbedded DocumentStatus = "embedded"
	StatusIndexed  DocumentStatus = "indexed"
	StatusFailed   DocumentStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s DocumentStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// Document records an uploaded document and its ingestion state.
type Document struct {
	ID           string         `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Filename     string         `json:"filename" gorm:"type:varchar(512);not null"`
	Type         string         `json:"type" gorm:"type:varchar(32)"`
	MIMEType     string         `json:"mime_type" gorm:"column:mime_type;type:varchar(128)"`
	Size         int64          `json:"size" gorm:"default:0"`
	Status       DocumentStatus `json:"status" gorm:"type:varchar(32);index;default:'pending'"`
	Reason       string         `json:"reason,omitempty" gorm:"type:varchar(1024)"`
	ChunkCount   int            `json:"chunk_count" gorm:"default:0"`
	OmittedCount int            `json:"omitted_count" gorm:"default:0"`
	JobID        string         `json:"job_id,omitempty" gorm:"type:varchar(32)"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "docqa_documents"
}

// DocumentList contains a page of documents and the total count.
type DocumentList struct {
	TotalCount int64       `json:"total_count"`
	Items      []*Document `json:"items"`
}
