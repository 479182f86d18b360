package contact

import (
	"context"
	"time"

	"authorities/internal/models"
	"authorities/internal/ratelimit"
)

// ServiceInterface defines the operations shared by every protocol adapter
type ServiceInterface interface {
	// RecordEvent charges the caller's quota and, when admitted, logs a new event
	RecordEvent(ctx context.Context, callerAddress string, input models.ContactEventInput, now time.Time) (*RecordResult, error)

	// ListEvents charges the caller's quota and returns the most recent events
	ListEvents(ctx context.Context, callerAddress string, query models.ListEventsQuery, now time.Time) (*ListResult, error)

	// LimiterStatus reports the caller's quota without consuming it
	LimiterStatus(ctx context.Context, callerAddress string, now time.Time) (ratelimit.Status, error)

	// Limit and Window describe the configured quota
	Limit() int
	Window() time.Duration
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
