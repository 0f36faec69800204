package domain

import "time"

// IncidentStatus enumerates lifecycle states for incidents.
type IncidentStatus string

const (
	IncidentStatusOpen       IncidentStatus = "OPEN"
	IncidentStatusInProgress IncidentStatus = "IN_PROGRESS"
	IncidentStatusResolved   IncidentStatus = "RESOLVED"
)

// IncidentSeverity enumerates impact levels, set at creation.
type IncidentSeverity string

const (
	SeverityCritical IncidentSeverity = "CRITICAL"
	SeverityHigh     IncidentSeverity = "HIGH"
	SeverityMedium   IncidentSeverity = "MEDIUM"
	SeverityLow      IncidentSeverity = "LOW"
)

// ValidStatus reports whether s is one of the enumerated statuses.
func ValidStatus(s IncidentStatus) bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInProgress, IncidentStatusResolved:
		return true
	}
	return false
}

// ValidSeverity reports whether s is one of the enumerated severities.
func ValidSeverity(s IncidentSeverity) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Incident is the aggregate for reported incidents.
//
// AssignedTo is write-once: once non-nil it never changes. VisibleToReporter
// and VisibleToSupport are independent flags; both start true and are only
// ever cleared, together, when the incident resolves.
type Incident struct {
	ID                string
	Title             string
	Description       string
	Severity          IncidentSeverity
	Status            IncidentStatus
	CreatedBy         string
	AssignedTo        *string
	VisibleToReporter bool
	VisibleToSupport  bool
	AttachmentKey     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Resolved reports whether the incident has reached its terminal display state.
func (i *Incident) Resolved() bool {
	return i.Status == IncidentStatusResolved
}
