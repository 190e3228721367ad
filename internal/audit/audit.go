// Package audit records security-relevant events: account creation, login
// attempts, logout and spreadsheet uploads. Row contents are never recorded.
package audit

import (
	"context"
	"time"

	"github.com/JonMunkholm/sheetgate/internal/core"
)

// Action identifies what happened.
type Action string

const (
	ActionSignup Action = "signup"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionUpload Action = "upload"
)

// Severity ranks entries for review.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Outcome is whether the action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is a single audit record.
type Entry struct {
	Action    Action
	Severity  Severity
	Outcome   Outcome
	SubjectID string
	Email     string
	IPAddress string
	UserAgent string
	Reason    string
	Details   map[string]any
	CreatedAt time.Time
}

// Params is the caller-supplied part of an Entry.
type Params struct {
	Action    Action
	Outcome   Outcome
	SubjectID string
	Email     string
	Reason    string
	Details   map[string]any
}

// Recorder persists audit entries. Implementations log their own failures
// and never block the request that produced the entry on them.
type Recorder interface {
	Record(ctx context.Context, p Params)
}

// newEntry fills severity, timestamp and request metadata.
func newEntry(ctx context.Context, p Params) Entry {
	return Entry{
		Action:    p.Action,
		Severity:  determineSeverity(p.Action, p.Outcome),
		Outcome:   p.Outcome,
		SubjectID: p.SubjectID,
		Email:     p.Email,
		IPAddress: core.ClientIP(ctx),
		UserAgent: core.UserAgent(ctx),
		Reason:    p.Reason,
		Details:   p.Details,
		CreatedAt: time.Now().UTC(),
	}
}

// Failed logins are the interesting ones.
func determineSeverity(action Action, outcome Outcome) Severity {
	switch {
	case action == ActionLogin && outcome == OutcomeFailure:
		return SeverityHigh
	case action == ActionSignup, action == ActionUpload:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Params) {}
