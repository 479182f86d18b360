// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Field names follow the web client contract (camelCase) for contact endpoints
// - Error bodies always carry a machine-readable code and a timestamp
// - Helper methods keep handlers free of field-by-field copying
package models

import (
	"time"
)

// CreateEventResponse is returned after a contact event is logged.
type CreateEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
	Message string `json:"message"`
}

// EventInfo is the public projection of a ContactEvent.
type EventInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Target      string    `json:"target"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	IP          string    `json:"ip"`
}

type ListEventsResponse struct {
	Events []EventInfo `json:"events"`
	Total  int         `json:"total"`
}

// RateLimitStatusResponse reports the caller's quota without consuming it.
type RateLimitStatusResponse struct {
	CallerAddress string `json:"callerAddress"`
	Count         int    `json:"count"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	WindowSeconds int    `json:"windowSeconds"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Rate limit errors: RateLimitExceeded is set so clients can back off
// - Validation errors: input was missing or malformed
// - Internal errors: storage problems, never with backend detail
type ErrorResponse struct {
	Error             string    `json:"error"`                       // Human-readable error description
	Code              string    `json:"code,omitempty"`              // Machine-readable error code
	RateLimitExceeded bool      `json:"rateLimitExceeded,omitempty"` // Set on 429 responses
	Timestamp         time.Time `json:"timestamp"`                   // Error occurrence time
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
)

// Standard Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Shared by the REST and tool surfaces
const (
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED" // 429: Too many requests in the window
	ErrorCodeInvalidInput      = "INVALID_INPUT"       // 400: Missing or empty fields
	ErrorCodeStoreUnavailable  = "STORE_UNAVAILABLE"   // 500: Record store failed
	ErrorCodeNotFound          = "NOT_FOUND"           // 404: Route doesn't exist
	ErrorCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"  // 405: Wrong HTTP method
	ErrorCodeInternalError     = "INTERNAL_ERROR"      // 500: Server-side error
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// FromEvent fills the projection from a stored event.
func (ei *EventInfo) FromEvent(event *ContactEvent) {
	ei.ID = event.ID
	ei.Title = event.Title
	ei.Target = event.Target
	ei.Description = event.Description
	ei.Timestamp = event.CreatedAt
	ei.IP = event.CallerAddress
}

// NewListEventsResponse projects events in the order given.
func NewListEventsResponse(events []*ContactEvent) *ListEventsResponse {
	resp := &ListEventsResponse{Events: make([]EventInfo, 0, len(events))}
	for _, event := range events {
		var info EventInfo
		info.FromEvent(event)
		resp.Events = append(resp.Events, info)
	}
	resp.Total = len(resp.Events)
	return resp
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
