package domain

import (
	"time"
)

type StoredImage struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ModTime     time.Time `json:"mod_time"`
}

// Per-item outcome of a batch deletion.
type DeleteDetail struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

const (
	DeleteStatusDeleted  = "deleted"
	DeleteStatusInvalid  = "invalid"
	DeleteStatusNotFound = "not_found"
	DeleteStatusError    = "error"
)

type BatchDeleteResult struct {
	Deleted int            `json:"deleted"`
	Total   int            `json:"total"`
	Details []DeleteDetail `json:"details"`
}
