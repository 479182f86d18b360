package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"authorities/internal/contact"
	"authorities/internal/models"
	"authorities/internal/ratelimit"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool names.
const (
	ToolContactAuthorities = "contact_authorities"
	ToolGetContactEvents   = "get_contact_events"
	ToolGetRateLimitStatus = "get_rate_limit_status"
)

const contactAuthoritiesSchema = `{
  "type": "object",
  "properties": {
    "title": {
      "type": "string",
      "description": "Brief title describing the incident or event"
    },
    "target": {
      "type": "string",
      "enum": ["police", "fire", "medical", "fbi", "cybercrime", "local"],
      "description": "The authority target to contact"
    },
    "description": {
      "type": "string",
      "description": "Detailed description of why authorities need to be contacted"
    }
  },
  "required": ["title", "target", "description"]
}`

const getContactEventsSchema = `{
  "type": "object",
  "properties": {
    "limit": {
      "type": "integer",
      "minimum": 1,
      "maximum": 100,
      "description": "Maximum number of events to retrieve (default: 20, max: 100)"
    },
    "target": {
      "type": "string",
      "enum": ["police", "fire", "medical", "fbi", "cybercrime", "local"],
      "description": "Filter events by authority target (optional)"
    }
  }
}`

const getRateLimitStatusSchema = `{
  "type": "object",
  "properties": {}
}`

// toolHandler runs a tool against already validated arguments.
type toolHandler func(ctx context.Context, callerAddress string, args map[string]any, now time.Time) *toolsCallResult

// tool is one callable entry of the catalog.
type tool struct {
	name        string
	title       string
	description string
	rawSchema   string
	schema      *jsonschema.Schema
	annotations *toolAnnotations
	handler     toolHandler
}

func boolPtr(b bool) *bool { return &b }

// newTools builds the catalog and compiles each input schema.
func (s *Server) newTools() ([]tool, error) {
	quota := fmt.Sprintf("Rate limited to %d requests per %s per IP.",
		s.service.Limit(), ratelimit.DescribeWindow(s.service.Window()))

	tools := []tool{
		{
			name:        ToolContactAuthorities,
			title:       "Contact Authorities",
			description: "Log a contact event with authorities. " + quota,
			rawSchema:   contactAuthoritiesSchema,
			annotations: &toolAnnotations{
				ReadOnlyHint:    boolPtr(false),
				DestructiveHint: boolPtr(false),
				IdempotentHint:  boolPtr(false),
				OpenWorldHint:   boolPtr(false),
			},
			handler: s.contactAuthorities,
		},
		{
			name:        ToolGetContactEvents,
			title:       "Get Contact Events",
			description: "Retrieve recent contact authority events",
			rawSchema:   getContactEventsSchema,
			annotations: &toolAnnotations{
				ReadOnlyHint:  boolPtr(true),
				OpenWorldHint: boolPtr(false),
			},
			handler: s.getContactEvents,
		},
		{
			name:        ToolGetRateLimitStatus,
			title:       "Get Rate Limit Status",
			description: "Check the current rate limit status for the requesting IP",
			rawSchema:   getRateLimitStatusSchema,
			annotations: &toolAnnotations{
				ReadOnlyHint:   boolPtr(true),
				IdempotentHint: boolPtr(true),
				OpenWorldHint:  boolPtr(false),
			},
			handler: s.getRateLimitStatus,
		},
	}

	for i := range tools {
		schema, err := compileSchema(tools[i].name, tools[i].rawSchema)
		if err != nil {
			return nil, err
		}
		tools[i].schema = schema
	}
	return tools, nil
}

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://contact-authorities.local/tools/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema for tool %s: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for tool %s: %w", name, err)
	}
	return compiled, nil
}

// validationMessage reduces a schema failure to its most specific cause.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)
}

func (s *Server) contactAuthorities(ctx context.Context, callerAddress string, args map[string]any, now time.Time) *toolsCallResult {
	input := models.ContactEventInput{
		Title:       stringArg(args, "title"),
		Target:      stringArg(args, "target"),
		Description: stringArg(args, "description"),
	}

	result, err := s.service.RecordEvent(ctx, callerAddress, input, now)
	if err != nil {
		switch {
		case errors.Is(err, contact.ErrRateLimited):
			return errorResult(formatRateLimited(s.service.Limit(), s.service.Window(), true))
		case errors.Is(err, contact.ErrInvalidInput):
			return errorResult(textMissingFields)
		case errors.Is(err, contact.ErrStoreUnavailable):
			return errorResult(textRecordFailed)
		default:
			slog.Error("Tool call failed", "tool", ToolContactAuthorities, "error", err)
			return errorResult(textRecordInternal)
		}
	}

	return textResult(formatRecorded(result.Event, result.Decision.Remaining))
}

func (s *Server) getContactEvents(ctx context.Context, callerAddress string, args map[string]any, now time.Time) *toolsCallResult {
	query := models.ListEventsQuery{Target: stringArg(args, "target")}
	if limit, ok := args["limit"].(float64); ok {
		query.Limit = int(limit)
	}

	result, err := s.service.ListEvents(ctx, callerAddress, query, now)
	if err != nil {
		switch {
		case errors.Is(err, contact.ErrRateLimited):
			return errorResult(formatRateLimited(s.service.Limit(), s.service.Window(), false))
		case errors.Is(err, contact.ErrStoreUnavailable):
			return errorResult(textListFailed)
		default:
			slog.Error("Tool call failed", "tool", ToolGetContactEvents, "error", err)
			return errorResult(textListInternal)
		}
	}

	return textResult(formatEvents(result.Events, strings.TrimSpace(query.Target), result.Decision.Remaining))
}

func (s *Server) getRateLimitStatus(ctx context.Context, callerAddress string, _ map[string]any, now time.Time) *toolsCallResult {
	status, err := s.service.LimiterStatus(ctx, callerAddress, now)
	if err != nil {
		if errors.Is(err, contact.ErrStoreUnavailable) {
			return errorResult(textStatusFailed)
		}
		slog.Error("Tool call failed", "tool", ToolGetRateLimitStatus, "error", err)
		return errorResult(textStatusInternal)
	}
	return textResult(formatStatus(callerAddress, status))
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
