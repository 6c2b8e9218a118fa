package storage

import "time"

// ResumeUploadedMessage is published after a raw file lands in object
// storage; the indexer consumes it to parse, embed, and index the document.
type ResumeUploadedMessage struct {
	FileMD5          string            `json:"file_md5"`
	OriginalFileName string            `json:"original_file_name"`
	FileKind         string            `json:"file_kind"`
	RawObjectKey     string            `json:"raw_object_key"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	SubmittedAt      time.Time         `json:"submitted_at"`
}
