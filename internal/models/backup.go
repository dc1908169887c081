package models

import "time"

// Backup describes one database snapshot written to disk.
type Backup struct {
	FileName  string    `json:"file_name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
