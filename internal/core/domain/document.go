package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is one source document of the knowledge corpus. It moves
// through uploaded -> processing -> ready/failed as the worker extracts,
// chunks, embeds, and indexes it.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Title       string         `json:"title"`
	SourceURL   string         `json:"source_url,omitempty"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	ChunkCount  int            `json:"chunk_count,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
