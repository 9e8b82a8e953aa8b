// Package models provides data model definitions for the PostNexus core.
package models

import (
	"strings"
	"time"

	"github.com/kimhsiao/postnexus/internal/errors"
)

// Post represents a locally stored post record.
// Timestamps are Unix milliseconds.
type Post struct {
	ID        int64  `db:"id" json:"id"`
	Title     string `db:"title" json:"title,omitempty"`
	Body      string `db:"body" json:"body"`
	ImageURI  string `db:"image_uri" json:"image_uri,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
	Uploaded  bool   `db:"uploaded" json:"uploaded"`
	UploadRef string `db:"upload_ref" json:"upload_ref,omitempty"`
}

// Draft is the caller-supplied input for creating a new Post.
// The store assigns id and timestamps; uploaded starts false.
type Draft struct {
	Title    string
	Body     string
	ImageURI string
}

// Validate rejects drafts whose body is empty or blank.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Body) == "" {
		return errors.New(errors.ErrValidation, "post body must not be empty")
	}
	return nil
}

// Validate rejects posts whose body is empty or blank.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Body) == "" {
		return errors.New(errors.ErrValidation, "post body must not be empty")
	}
	return nil
}

// DisplayTitle returns the title, or "(No title)" when it is blank.
func (p *Post) DisplayTitle() string {
	if strings.TrimSpace(p.Title) == "" {
		return "(No title)"
	}
	return p.Title
}

// CreatedAtTime returns CreatedAt as time.Time.
func (p *Post) CreatedAtTime() time.Time {
	return time.UnixMilli(p.CreatedAt)
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (p *Post) UpdatedAtTime() time.Time {
	return time.UnixMilli(p.UpdatedAt)
}

// Touch refreshes the UpdatedAt timestamp.
func (p *Post) Touch() {
	p.UpdatedAt = time.Now().UnixMilli()
}

// ShareText renders the post as plain text for the share flow:
// the title (when present), a blank line, then the body.
func (p *Post) ShareText() string {
	if strings.TrimSpace(p.Title) == "" {
		return p.Body
	}
	return p.Title + "\n\n" + p.Body
}
