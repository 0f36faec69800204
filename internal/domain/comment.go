package domain

import "time"

// Comment is an append-only annotation on one incident. Comments are never
// edited or removed; they disappear only when their incident is deleted.
type Comment struct {
	ID         string
	IncidentID string
	AuthorID   string
	Text       string
	CreatedAt  time.Time
}
