// Package access decides what an actor may do with an incident and which
// slice of the incident pool their dashboard sees.
package access

import (
	"github.com/spec-kit/incident-service/internal/domain"
)

// Level is the outcome of resolving an actor against an incident.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelAct
)

// Resolve maps (actor, incident) to an access level.
//
// Roles are resolved with total precedence Administrator > Support >
// Reporter: an actor holding several roles is judged by the highest one
// only, never by the union. Administrators are exempt from visibility-flag
// gating; everyone else is not.
func Resolve(actor domain.Actor, incident *domain.Incident) Level {
	if incident == nil {
		return LevelNone
	}
	if actor.IsAdmin {
		return LevelAct
	}
	if actor.IsSupport {
		if incident.AssignedTo != nil && *incident.AssignedTo == actor.ID && incident.VisibleToSupport {
			return LevelAct
		}
		return LevelNone
	}
	if incident.CreatedBy == actor.ID && incident.VisibleToReporter {
		return LevelAct
	}
	return LevelNone
}

// OwnerHidden reports whether the actor created the incident but lost
// reporter visibility to it. Data exposure is identical to LevelNone; the
// distinction only lets the presentation layer pick a redirect target.
func OwnerHidden(actor domain.Actor, incident *domain.Incident) bool {
	if incident == nil || actor.IsAdmin || actor.IsSupport {
		return false
	}
	return incident.CreatedBy == actor.ID && !incident.VisibleToReporter
}

// ListScope is the query predicate a dashboard listing must apply for an
// actor. Exactly one relation field is set for non-admins; admins list the
// whole pool and may additionally refine by status and severity.
type ListScope struct {
	CreatedBy         *string
	AssignedTo        *string
	VisibleToReporter *bool
	VisibleToSupport  *bool

	// AllowRefinement permits the optional status/severity filters on top
	// of the scope. Only administrators get it.
	AllowRefinement bool
}

// ScopeFor returns the listing predicate for the actor's effective role.
// The predicate mirrors the Resolve ACT condition restricted to the actor's
// own relation, so a listing can never include an incident the actor could
// not open.
func ScopeFor(actor domain.Actor) ListScope {
	if actor.IsAdmin {
		return ListScope{AllowRefinement: true}
	}
	visible := true
	if actor.IsSupport {
		return ListScope{
			AssignedTo:       &actor.ID,
			VisibleToSupport: &visible,
		}
	}
	return ListScope{
		CreatedBy:         &actor.ID,
		VisibleToReporter: &visible,
	}
}
