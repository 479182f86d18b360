// Package mcp exposes the contact operations as Model Context Protocol tools.
// The endpoint is stateless JSON-RPC 2.0 over HTTP POST: every request stands
// alone, so there is no session to initialize before calling a tool.
package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"authorities/internal/contact"
	"authorities/internal/ratelimit"
)

// DefaultServerName is reported in serverInfo when none is configured.
const DefaultServerName = "contact-authorities"

// maxRequestBytes caps the size of a single JSON-RPC message.
const maxRequestBytes = 1 << 20

const serverInstructions = "Log contact events with authorities and review recent events. " +
	"Every call except get_rate_limit_status counts against a per-IP rate limit."

// Server answers JSON-RPC requests for the contact tools.
type Server struct {
	service     contact.ServiceInterface
	tools       []tool
	toolsByName map[string]*tool
	name        string
	version     string
	now         func() time.Time
}

// ServerOption configures optional server behavior.
type ServerOption func(*Server)

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithClock replaces the time source used for rate limiting and timestamps.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer builds the tool catalog and compiles its input schemas.
func NewServer(service contact.ServiceInterface, opts ...ServerOption) (*Server, error) {
	s := &Server{
		service: service,
		name:    DefaultServerName,
		version: "0.0.0-dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	tools, err := s.newTools()
	if err != nil {
		return nil, err
	}
	s.tools = tools
	s.toolsByName = make(map[string]*tool, len(s.tools))
	for i := range s.tools {
		s.toolsByName[s.tools[i].name] = &s.tools[i]
	}

	return s, nil
}

// ServeHTTP handles one JSON-RPC message per POST. Notifications are
// acknowledged with 202 and no body.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResponse(w, http.StatusMethodNotAllowed, response{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeServerError, Message: "Method not allowed."},
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, json.RawMessage("null"), codeInvalidRequest, "failed to read request body")
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		writeError(w, json.RawMessage("null"), codeInvalidRequest, "batch requests are not supported")
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, json.RawMessage("null"), codeParseError, "parse error: "+err.Error())
		return
	}

	if req.isNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, codeInvalidRequest, "unsupported JSON-RPC version")
		return
	}

	s.dispatch(w, r, &req)
}

// dispatch routes a JSON-RPC request to its handler.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *request) {
	switch req.Method {
	case "initialize":
		writeResult(w, req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    serverCapabilities{Tools: &toolCapability{}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
			Instructions:    serverInstructions,
		})
	case "ping":
		writeResult(w, req.ID, map[string]any{})
	case "tools/list":
		writeResult(w, req.ID, s.toolsList())
	case "tools/call":
		s.handleToolsCall(w, r, req)
	default:
		writeError(w, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) toolsList() toolsListResult {
	result := toolsListResult{Tools: make([]toolDescription, 0, len(s.tools))}
	for _, t := range s.tools {
		result.Tools = append(result.Tools, toolDescription{
			Name:        t.name,
			Title:       t.title,
			Description: t.description,
			InputSchema: json.RawMessage(t.rawSchema),
			Annotations: t.annotations,
		})
	}
	return result
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req *request) {
	var params toolsCallParams
	if len(req.Params) == 0 {
		writeError(w, req.ID, codeInvalidParams, "params required for tools/call")
		return
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
		return
	}

	t, ok := s.toolsByName[params.Name]
	if !ok {
		writeError(w, req.ID, codeInvalidParams, "unknown tool: "+params.Name)
		return
	}

	arguments := params.Arguments
	if len(arguments) == 0 || string(arguments) == "null" {
		arguments = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(arguments, &decoded); err != nil {
		writeError(w, req.ID, codeInvalidParams, "invalid tool arguments: "+err.Error())
		return
	}

	// Schema violations never reach the rate limiter.
	if err := t.schema.Validate(decoded); err != nil {
		slog.Debug("Tool arguments rejected", "tool", t.name, "error", err)
		writeResult(w, req.ID, errorResult(fmt.Sprintf("Error: Invalid arguments for %s: %s", t.name, validationMessage(err))))
		return
	}

	args, _ := decoded.(map[string]any)
	callerAddress := ratelimit.ClientAddress(r)
	writeResult(w, req.ID, t.handler(r.Context(), callerAddress, args, s.now()))
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeResponse(w, http.StatusOK, response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeResponse(w, http.StatusOK, response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

func writeResponse(w http.ResponseWriter, statusCode int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Error encoding JSON-RPC response", "error", err)
	}
}
