// Package models contains domain types for the quick analysis flow.
package models

import "time"

// FileInfo represents metadata about a stored upload.
type FileInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Size        int64     `json:"size" msgpack:"size"`
	ContentType string    `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
}

// StagedFile is a file the user has selected but not yet analyzed.
// Its identity is its position in the staged sequence.
type StagedFile struct {
	Name        string `json:"name" msgpack:"name"`
	SizeBytes   int64  `json:"sizeBytes" msgpack:"sizeBytes"`
	FileID      string `json:"fileId,omitempty" msgpack:"fileId,omitempty"`
	ContentType string `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
}

// RejectedFile describes a selected file that failed validation.
type RejectedFile struct {
	Name      string `json:"name" msgpack:"name"`
	SizeBytes int64  `json:"sizeBytes" msgpack:"sizeBytes"`
	Reason    string `json:"reason" msgpack:"reason"`
}
