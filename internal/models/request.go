// Package models - API request types and input validation.
// This file defines incoming request structures shared by the REST and tool surfaces.
//
// Validation Philosophy:
// - Normalize first (trim whitespace), then validate the normalized values
// - Report every missing field at once so callers can fix the request in one pass
// - Never reject a target outside the advisory list; that is a presentation concern
package models

import (
	"errors"
	"fmt"
	"strings"
)

// List bounds for event retrieval.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ErrMissingFields is wrapped by ContactEventInput.Validate.
var ErrMissingFields = errors.New("missing required fields")

// ContactEventInput is the caller-supplied part of a contact event.
type ContactEventInput struct {
	Title       string `json:"title"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// Normalize trims surrounding whitespace from every field.
func (in *ContactEventInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Target = strings.TrimSpace(in.Target)
	in.Description = strings.TrimSpace(in.Description)
}

// MissingFields lists the fields that are empty, in declaration order.
func (in *ContactEventInput) MissingFields() []string {
	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Target == "" {
		missing = append(missing, "target")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	return missing
}

// Validate fails when any field is empty. Call Normalize first.
func (in *ContactEventInput) Validate() error {
	if missing := in.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return nil
}

// ListEventsQuery selects the most recent events, optionally for one target.
type ListEventsQuery struct {
	Limit  int    `json:"limit,omitempty"`
	Target string `json:"target,omitempty"`
}

// Normalize clamps Limit into [1, MaxListLimit], treating zero as the default,
// and trims the target filter.
func (q *ListEventsQuery) Normalize() {
	switch {
	case q.Limit == 0:
		q.Limit = DefaultListLimit
	case q.Limit < 1:
		q.Limit = 1
	case q.Limit > MaxListLimit:
		q.Limit = MaxListLimit
	}
	q.Target = strings.TrimSpace(q.Target)
}
