package mcp

import (
	"fmt"
	"strings"
	"time"

	"authorities/internal/models"
	"authorities/internal/ratelimit"
)

// Tool result texts.
const (
	textMissingFields   = "Error: Missing required fields. Please provide title, target, and description."
	textRecordFailed    = "Error: Failed to log contact event. Please try again."
	textListFailed      = "Error: Failed to fetch contact events."
	textStatusFailed    = "Error: Unable to check rate limit status."
	textRecordInternal  = "Error: Internal server error while logging contact event."
	textListInternal    = "Error: Internal server error while fetching events."
	textStatusInternal  = "Error: Internal server error while checking rate limit."
	textNoEvents        = "No contact events found."
	textLimitReached    = "⚠️ Rate limit reached! Please wait before making more requests."
	textLimitAvailable  = "✅ You can make more requests."
	eventBlockSeparator = "\n---\n\n"
)

func formatRateLimited(limit int, window time.Duration, verbose bool) string {
	text := fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s.", limit, ratelimit.DescribeWindow(window))
	if verbose {
		text += " Please wait before making another request."
	}
	return text
}

func formatRecorded(event *models.ContactEvent, remaining int) string {
	var b strings.Builder
	b.WriteString("✅ Contact event logged successfully!\n\n")
	fmt.Fprintf(&b, "Event ID: %s\n", event.ID)
	fmt.Fprintf(&b, "Title: %s\n", event.Title)
	fmt.Fprintf(&b, "Target: %s\n", event.Target)
	fmt.Fprintf(&b, "Timestamp: %s\n", formatTimestamp(event.CreatedAt))
	fmt.Fprintf(&b, "Remaining requests: %d", remaining)
	return b.String()
}

func formatEvents(events []*models.ContactEvent, target string, remaining int) string {
	if len(events) == 0 {
		if target != "" {
			return "No contact events found for target: " + target
		}
		return textNoEvents
	}

	blocks := make([]string, 0, len(events))
	for _, event := range events {
		blocks = append(blocks, formatEventBlock(event))
	}

	return fmt.Sprintf("📊 Recent Contact Events (%d found):\n\n%s\n\nRemaining requests: %d",
		len(events), strings.Join(blocks, eventBlockSeparator), remaining)
}

func formatEventBlock(event *models.ContactEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Event ID: %s\n", event.ID)
	fmt.Fprintf(&b, "📝 Title: %s\n", event.Title)
	fmt.Fprintf(&b, "🎯 Target: %s\n", event.Target)
	fmt.Fprintf(&b, "📄 Description: %s\n", event.Description)
	fmt.Fprintf(&b, "🕒 Timestamp: %s\n", formatTimestamp(event.CreatedAt))
	fmt.Fprintf(&b, "🌐 IP: %s\n", event.CallerAddress)
	return b.String()
}

func formatStatus(callerAddress string, status ratelimit.Status) string {
	window := ratelimit.DescribeWindow(status.Window)

	var b strings.Builder
	b.WriteString("📊 Rate Limit Status:\n\n")
	fmt.Fprintf(&b, "🌐 IP Address: %s\n", callerAddress)
	fmt.Fprintf(&b, "📈 Requests in last %s: %d/%d\n", window, status.Count, status.Limit)
	fmt.Fprintf(&b, "⏳ Remaining requests: %d\n", status.Remaining)
	fmt.Fprintf(&b, "🔄 Window resets: Every %s\n\n", window)
	if status.Remaining == 0 {
		b.WriteString(textLimitReached)
	} else {
		b.WriteString(textLimitAvailable)
	}
	return b.String()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
