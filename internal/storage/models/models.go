// Package models defines the relational schema for resume metadata and
// ranking audit records. Vector data lives in Qdrant; MySQL keeps the
// lifecycle state and provenance of every indexed document.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resume-match-go/internal/types"
)

// Resume processing statuses. A resume moves strictly forward through these;
// FAILED is terminal until the file is re-submitted.
const (
	StatusUploaded = "UPLOADED" // raw file stored, indexing pending
	StatusParsed   = "PARSED"   // text extracted and stored
	StatusIndexed  = "INDEXED"  // embedded and upserted into the vector index
	StatusFailed   = "FAILED"
)

// Resume is the metadata row for one indexed document. ResumeID is the hex
// SHA-256 of the extracted text, so the same content always maps to the same
// row regardless of file name.
type Resume struct {
	ResumeID         string         `gorm:"primaryKey;type:varchar(64)"`
	FileMD5          string         `gorm:"type:varchar(32);uniqueIndex;not null"` // raw-file dedup key
	OriginalFileName string         `gorm:"type:varchar(512)"`
	FileKind         string         `gorm:"type:varchar(16)"` // pdf / docx / txt / md
	RawObjectKey     string         `gorm:"type:varchar(512)"`
	ParsedObjectKey  string         `gorm:"type:varchar(512)"`
	Status           string         `gorm:"type:varchar(32);index;not null;default:UPLOADED"`
	ExtractedFields  datatypes.JSON `gorm:"type:json"` // types.Fields snapshot at index time
	Metadata         datatypes.JSON `gorm:"type:json"`
	ErrorMessage     string         `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (Resume) TableName() string {
	return "resumes"
}

// SetFields serializes the extracted fields into the JSON column.
func (r *Resume) SetFields(f types.Fields) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	r.ExtractedFields = datatypes.JSON(data)
	return nil
}

// Fields deserializes the JSON column back into extracted fields. A missing
// column yields the zero value, not an error.
func (r *Resume) Fields() (types.Fields, error) {
	var f types.Fields
	if len(r.ExtractedFields) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(r.ExtractedFields, &f); err != nil {
		return f, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	return f, nil
}

// SetMetadata serializes caller-supplied metadata into the JSON column.
func (r *Resume) SetMetadata(meta map[string]string) error {
	if len(meta) == 0 {
		r.Metadata = nil
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	r.Metadata = datatypes.JSON(data)
	return nil
}

// MetadataMap deserializes the metadata column.
func (r *Resume) MetadataMap() (map[string]string, error) {
	if len(r.Metadata) == 0 {
		return nil, nil
	}
	var meta map[string]string
	if err := json.Unmarshal(r.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

// RankQuery is one audit row per ranking call: which JD was asked, how the
// pool behaved and how long scoring took. JDHash keys the rank-result cache.
type RankQuery struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	JDHash      string         `gorm:"type:varchar(64);index;not null"`
	TopK        int            `gorm:"not null"`
	ResultCount int            `gorm:"not null"`
	Excluded    int            `gorm:"not null;default:0"`
	Notes       datatypes.JSON `gorm:"type:json"`
	DurationMs  int64          `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"index"`
}

func (RankQuery) TableName() string {
	return "rank_queries"
}

// SetNotes serializes the batch-level notes into the JSON column.
func (q *RankQuery) SetNotes(notes []string) error {
	if len(notes) == 0 {
		q.Notes = nil
		return nil
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	q.Notes = datatypes.JSON(data)
	return nil
}
