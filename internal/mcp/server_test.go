package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"authorities/internal/contact"
	"authorities/internal/eventlog"
	"authorities/internal/models"
	"authorities/internal/ratelimit"
	"authorities/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService is a mock implementation of contact.ServiceInterface
type MockService struct {
	mock.Mock
}

func (m *MockService) RecordEvent(ctx context.Context, callerAddress string, input models.ContactEventInput, now time.Time) (*contact.RecordResult, error) {
	args := m.Called(ctx, callerAddress, input, now)
	result, _ := args.Get(0).(*contact.RecordResult)
	return result, args.Error(1)
}

func (m *MockService) ListEvents(ctx context.Context, callerAddress string, query models.ListEventsQuery, now time.Time) (*contact.ListResult, error) {
	args := m.Called(ctx, callerAddress, query, now)
	result, _ := args.Get(0).(*contact.ListResult)
	return result, args.Error(1)
}

func (m *MockService) LimiterStatus(ctx context.Context, callerAddress string, now time.Time) (ratelimit.Status, error) {
	args := m.Called(ctx, callerAddress, now)
	return args.Get(0).(ratelimit.Status), args.Error(1)
}

func (m *MockService) Limit() int { return 5 }

func (m *MockService) Window() time.Duration { return time.Minute }

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func newTestServer(t *testing.T, svc contact.ServiceInterface) *Server {
	t.Helper()
	server, err := NewServer(svc,
		WithServerInfo("contact-authorities", "1.2.3"),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return server
}

func post(t *testing.T, h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/mcp", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func rpc(t *testing.T, h http.Handler, body string) rpcResponse {
	t.Helper()
	rec := post(t, h, body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func callTool(t *testing.T, h http.Handler, name, arguments string) toolsCallResult {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"` + name + `","arguments":` + arguments + `}}`
	resp := rpc(t, h, body)
	require.Nil(t, resp.Error)

	var result toolsCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	return result
}

func TestServeHTTP_Transport(t *testing.T) {
	server := newTestServer(t, &MockService{})

	t.Run("GET is refused", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
		var resp rpcResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, codeServerError, resp.Error.Code)
	})

	t.Run("notification is acknowledged without body", func(t *testing.T) {
		rec := post(t, server, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantID   string
	}{
		{"malformed JSON", `{"jsonrpc":`, codeParseError, "null"},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, codeInvalidRequest, "null"},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, codeInvalidRequest, "1"},
		{"unknown method", `{"jsonrpc":"2.0","id":"abc","method":"resources/list"}`, codeMethodNotFound, `"abc"`},
		{"tools/call without params", `{"jsonrpc":"2.0","id":2,"method":"tools/call"}`, codeInvalidParams, "2"},
		{"unknown tool", `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"dispatch_drone"}}`, codeInvalidParams, "3"},
		{"arguments as string", `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"get_rate_limit_status","arguments":"{"}}`, -1, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rpc(t, server, tt.body)
			assert.JSONEq(t, tt.wantID, string(resp.ID))
			if tt.wantCode == -1 {
				// A string is valid JSON, so it fails the schema instead.
				var result toolsCallResult
				require.NoError(t, json.Unmarshal(resp.Result, &result))
				assert.True(t, result.IsError)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestInitialize(t *testing.T) {
	server := newTestServer(t, &MockService{})

	resp := rpc(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test"}}}`)
	require.Nil(t, resp.Error)

	var result initializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, protocolVersion, result.ProtocolVersion)
	assert.Equal(t, "contact-authorities", result.ServerInfo.Name)
	assert.Equal(t, "1.2.3", result.ServerInfo.Version)
	assert.NotNil(t, result.Capabilities.Tools)
	assert.NotEmpty(t, result.Instructions)
}

func TestNewServer_Defaults(t *testing.T) {
	server, err := NewServer(&MockService{}, WithServerInfo("", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerName, server.name)
	assert.Equal(t, "0.0.0-dev", server.version)
}

func TestPing(t *testing.T) {
	resp := rpc(t, newTestServer(t, &MockService{}), `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{}`, string(resp.Result))
}

func TestToolsList(t *testing.T) {
	resp := rpc(t, newTestServer(t, &MockService{}), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Nil(t, resp.Error)

	var result struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Type       string                     `json:"type"`
				Required   []string                   `json:"required"`
				Properties map[string]json.RawMessage `json:"properties"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 3)

	assert.Equal(t, ToolContactAuthorities, result.Tools[0].Name)
	assert.Equal(t, ToolGetContactEvents, result.Tools[1].Name)
	assert.Equal(t, ToolGetRateLimitStatus, result.Tools[2].Name)

	contactTool := result.Tools[0]
	assert.Contains(t, contactTool.Description, "Rate limited to 5 requests per minute per IP.")
	assert.Equal(t, "object", contactTool.InputSchema.Type)
	assert.ElementsMatch(t, []string{"title", "target", "description"}, contactTool.InputSchema.Required)

	var target struct {
		Enum []string `json:"enum"`
	}
	require.NoError(t, json.Unmarshal(contactTool.InputSchema.Properties["target"], &target))
	assert.Equal(t, models.ValidTargets(), target.Enum)

	assert.Empty(t, result.Tools[1].InputSchema.Required)
	assert.Empty(t, result.Tools[2].InputSchema.Properties)
}

func TestToolsCall_SchemaViolations(t *testing.T) {
	svc := &MockService{}
	server := newTestServer(t, svc)

	tests := []struct {
		name      string
		tool      string
		arguments string
	}{
		{"missing description", ToolContactAuthorities, `{"title":"t","target":"police"}`},
		{"no arguments", ToolContactAuthorities, `null`},
		{"target outside enum", ToolContactAuthorities, `{"title":"t","target":"army","description":"d"}`},
		{"title not a string", ToolContactAuthorities, `{"title":42,"target":"police","description":"d"}`},
		{"limit below range", ToolGetContactEvents, `{"limit":0}`},
		{"limit above range", ToolGetContactEvents, `{"limit":101}`},
		{"limit not integer", ToolGetContactEvents, `{"limit":2.5}`},
		{"filter outside enum", ToolGetContactEvents, `{"target":"army"}`},
		{"arguments not an object", ToolGetRateLimitStatus, `["x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, server, tt.tool, tt.arguments)
			assert.True(t, result.IsError)
			assert.True(t, strings.HasPrefix(result.Content[0].Text, "Error: Invalid arguments for "+tt.tool+": "),
				"got %q", result.Content[0].Text)
		})
	}

	svc.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "LimiterStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestContactAuthorities(t *testing.T) {
	svc := &MockService{}
	input := models.ContactEventInput{
		Title:       "Suspicious package",
		Target:      models.TargetPolice,
		Description: "Unattended bag at the station entrance",
	}
	svc.On("RecordEvent", mock.Anything, "203.0.113.7", input, testNow).
		Return(&contact.RecordResult{
			Event:    packageEvent(),
			Decision: ratelimit.Decision{Admitted: true, Remaining: 4, Limit: 5},
		}, nil)
	server := newTestServer(t, svc)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"contact_authorities","arguments":` +
		`{"title":"Suspicious package","target":"police","description":"Unattended bag at the station entrance"}}}`
	rec := post(t, server, body, http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var result toolsCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	assert.False(t, result.IsError)
	newGoldie(t).Assert(t, "recorded", []byte(result.Content[0].Text))
	svc.AssertExpectations(t)
}

func TestContactAuthorities_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{
			name:     "rate limited",
			err:      contact.NewRateLimitedError(5, "minute"),
			wantText: "Rate limit exceeded. Maximum 5 requests per minute. Please wait before making another request.",
		},
		{
			name:     "blank fields",
			err:      contact.NewInvalidInputError(contact.MessageMissingFields, errors.New("title is required")),
			wantText: textMissingFields,
		},
		{
			name:     "store unavailable",
			err:      contact.NewStoreUnavailableError(contact.MessageRecordFailed, errors.New("connection refused")),
			wantText: textRecordFailed,
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantText: textRecordInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			svc.On("RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&contact.RecordResult{Decision: ratelimit.Decision{Limit: 5}}, tt.err)
			server := newTestServer(t, svc)

			result := callTool(t, server, ToolContactAuthorities, `{"title":" ","target":"police","description":"d"}`)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.wantText, result.Content[0].Text)
			assert.NotContains(t, result.Content[0].Text, "connection refused")
		})
	}
}

func TestGetContactEvents(t *testing.T) {
	svc := &MockService{}
	svc.On("ListEvents", mock.Anything, "192.0.2.10", models.ListEventsQuery{Limit: 2}, testNow).
		Return(&contact.ListResult{
			Events:   []*models.ContactEvent{smokeEvent(), packageEvent()},
			Decision: ratelimit.Decision{Admitted: true, Remaining: 3, Limit: 5},
		}, nil)
	svc.On("ListEvents", mock.Anything, "192.0.2.10", models.ListEventsQuery{Target: models.TargetFBI}, testNow).
		Return(&contact.ListResult{
			Events:   []*models.ContactEvent{},
			Decision: ratelimit.Decision{Admitted: true, Remaining: 2, Limit: 5},
		}, nil)
	svc.On("ListEvents", mock.Anything, "192.0.2.10", models.ListEventsQuery{}, testNow).
		Return(&contact.ListResult{
			Events:   nil,
			Decision: ratelimit.Decision{Admitted: true, Remaining: 1, Limit: 5},
		}, nil)
	server := newTestServer(t, svc)

	result := callTool(t, server, ToolGetContactEvents, `{"limit":2}`)
	assert.False(t, result.IsError)
	newGoldie(t).Assert(t, "events_list", []byte(result.Content[0].Text))

	result = callTool(t, server, ToolGetContactEvents, `{"target":"fbi"}`)
	assert.Equal(t, "No contact events found for target: fbi", result.Content[0].Text)

	result = callTool(t, server, ToolGetContactEvents, `{}`)
	assert.Equal(t, "No contact events found.", result.Content[0].Text)

	svc.AssertExpectations(t)
}

func TestGetContactEvents_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{"rate limited", contact.NewRateLimitedError(5, "minute"), "Rate limit exceeded. Maximum 5 requests per minute."},
		{"store unavailable", contact.NewStoreUnavailableError(contact.MessageListFailed, errors.New("timeout")), textListFailed},
		{"unexpected", errors.New("boom"), textListInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			svc.On("ListEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&contact.ListResult{Decision: ratelimit.Decision{Limit: 5}}, tt.err)

			result := callTool(t, newTestServer(t, svc), ToolGetContactEvents, `{}`)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.wantText, result.Content[0].Text)
		})
	}
}

func TestGetRateLimitStatus(t *testing.T) {
	svc := &MockService{}
	svc.On("LimiterStatus", mock.Anything, "203.0.113.7", testNow).
		Return(ratelimit.Status{Count: 2, Remaining: 3, Limit: 5, Window: time.Minute}, nil)
	server := newTestServer(t, svc)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_rate_limit_status"}}`
	rec := post(t, server, body, http.Header{"X-Real-Ip": {"203.0.113.7"}})

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var result toolsCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	assert.False(t, result.IsError)
	newGoldie(t).Assert(t, "status_available", []byte(result.Content[0].Text))
	svc.AssertExpectations(t)
}

func TestGetRateLimitStatus_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{"store unavailable", contact.NewStoreUnavailableError(contact.MessageStatusFailed, errors.New("timeout")), textStatusFailed},
		{"unexpected", errors.New("boom"), textStatusInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			svc.On("LimiterStatus", mock.Anything, mock.Anything, mock.Anything).Return(ratelimit.Status{}, tt.err)

			result := callTool(t, newTestServer(t, svc), ToolGetRateLimitStatus, `{}`)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.wantText, result.Content[0].Text)
		})
	}
}

func TestTools_ShareQuotaOverRealService(t *testing.T) {
	mem, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)
	limiter, err := ratelimit.NewLimiter(mem, 5, time.Minute)
	require.NoError(t, err)
	server := newTestServer(t, contact.NewService(limiter, eventlog.New(mem)))

	// Rejected arguments are not charged.
	for range 3 {
		result := callTool(t, server, ToolContactAuthorities, `{"title":"t","target":"army","description":"d"}`)
		require.True(t, result.IsError)
	}
	status := callTool(t, server, ToolGetRateLimitStatus, `{}`)
	assert.Contains(t, status.Content[0].Text, "Requests in last minute: 0/5")

	for i := range 3 {
		result := callTool(t, server, ToolContactAuthorities, `{"title":"Fire alarm","target":"fire","description":"Alarm going off"}`)
		require.False(t, result.IsError, "call %d", i)
	}
	result := callTool(t, server, ToolGetContactEvents, `{"target":"fire"}`)
	assert.Contains(t, result.Content[0].Text, "Recent Contact Events (3 found)")
	assert.True(t, strings.HasSuffix(result.Content[0].Text, "Remaining requests: 1"))

	// Blank fields pass the schema but are still charged.
	result = callTool(t, server, ToolContactAuthorities, `{"title":"  ","target":"fire","description":"d"}`)
	assert.Equal(t, textMissingFields, result.Content[0].Text)

	result = callTool(t, server, ToolContactAuthorities, `{"title":"Fire alarm","target":"fire","description":"Alarm going off"}`)
	assert.True(t, result.IsError)
	assert.True(t, strings.HasPrefix(result.Content[0].Text, "Rate limit exceeded."))

	status = callTool(t, server, ToolGetRateLimitStatus, `{}`)
	assert.Contains(t, status.Content[0].Text, "Requests in last minute: 5/5")
	assert.Contains(t, status.Content[0].Text, textLimitReached)
	assert.Contains(t, status.Content[0].Text, "IP Address: 192.0.2.10")
}
