// Package models defines server-side data models persisted in the database.
package models

import "time"

// Image describes an uploaded image. The file itself lives in storage under
// Path; OriginalName is what the client called it and is display-only.
type Image struct {
	ID           int64     `json:"id"`
	Owner        string    `json:"owner"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Path         string    `json:"-"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ImageMeta is what a caller supplies to record a new upload.
type ImageMeta struct {
	Filename     string
	OriginalName string
	Path         string
	Size         int64
	MimeType     string
}
