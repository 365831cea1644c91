package models

import "time"

// FileInfo represents metadata about a rendered artifact.
type FileInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
	Digest    string    `json:"digest,omitempty"`
}
