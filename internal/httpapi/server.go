// Package httpapi exposes the registry, dispatcher and orchestrator over a
// small JSON REST surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"conduit/internal/dispatch"
	"conduit/internal/mcperr"
	"conduit/internal/orchestrator"
	"conduit/internal/registry"
	"conduit/pkg/logging"

	"github.com/rs/cors"
)

// Server serves the REST API. It owns no connection state; everything is
// delegated to the registry, dispatcher and orchestrator.
type Server struct {
	registry     *registry.Registry
	dispatcher   *dispatch.Dispatcher
	orchestrator *orchestrator.Orchestrator
	httpServer   *http.Server
}

// New creates an API server for the given components.
func New(reg *registry.Registry, disp *dispatch.Dispatcher, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		registry:     reg,
		dispatcher:   disp,
		orchestrator: orch,
	}
}

// Handler builds the full route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/servers", s.handleListServers)
	mux.HandleFunc("GET /api/servers/{id}", s.handleGetServer)
	mux.HandleFunc("GET /api/servers/{id}/tools", s.handleListTools)
	mux.HandleFunc("GET /api/servers/{id}/resources", s.handleListResources)
	mux.HandleFunc("GET /api/servers/{id}/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /api/servers/{id}/tools/{name}", s.handleCallTool)
	mux.HandleFunc("POST /api/servers/{id}/resources/read", s.handleReadResource)
	mux.HandleFunc("POST /api/servers/{id}/prompts/{name}", s.handleGetPrompt)
	mux.HandleFunc("POST /api/servers/{id}/ping", s.handlePing)
	mux.HandleFunc("POST /api/query", s.handleQuery)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP", "API listening on %s", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type serverSummary struct {
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
	Tools       int       `json:"tools"`
	Resources   int       `json:"resources"`
	Prompts     int       `json:"prompts"`
}

func summarize(snap registry.Snapshot) serverSummary {
	return serverSummary{
		Name:        snap.Name,
		ConnectedAt: snap.ConnectedAt,
		Tools:       len(snap.Tools),
		Resources:   len(snap.Resources),
		Prompts:     len(snap.Prompts),
	}
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	summaries := []serverSummary{}
	for _, id := range s.registry.ListIDs() {
		if snap, ok := s.registry.Get(id); ok {
			summaries = append(summaries, summarize(snap))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": summaries})
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.registry.Get(id)
	if !ok {
		writeError(w, &mcperr.NotConnectedError{Server: id})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.registry.Get(id)
	if !ok {
		writeError(w, &mcperr.NotConnectedError{Server: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": snap.Tools})
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.registry.Get(id)
	if !ok {
		writeError(w, &mcperr.NotConnectedError{Server: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": snap.Resources})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.registry.Get(id)
	if !ok {
		writeError(w, &mcperr.NotConnectedError{Server: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": snap.Prompts})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tool := r.PathValue("name")

	var body struct {
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.dispatcher.CallTool(r.Context(), id, tool, body.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server":  id,
		"tool":    tool,
		"content": dispatch.ContentText(result.Content),
	})
}

func (s *Server) handleReadResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		URI string `json:"uri"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.URI == "" {
		writeError(w, &mcperr.ValidationError{Field: "uri", Reason: "required"})
		return
	}

	result, err := s.dispatcher.ReadResource(r.Context(), id, body.URI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server":   id,
		"uri":      body.URI,
		"contents": result.Contents,
	})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.PathValue("name")

	var body struct {
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.dispatcher.GetPrompt(r.Context(), id, name, body.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server":      id,
		"prompt":      name,
		"description": result.Description,
		"messages":    result.Messages,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.dispatcher.Ping(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"server": id, "status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Query == "" {
		writeError(w, &mcperr.ValidationError{Field: "query", Reason: "required"})
		return
	}

	result, err := s.orchestrator.Query(r.Context(), body.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	invocations := []map[string]any{}
	for _, inv := range result.Invocations {
		invocations = append(invocations, map[string]any{
			"server": inv.Server,
			"tool":   inv.Tool,
			"failed": inv.Failed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":        result.Answer,
		"turns":         result.Turns,
		"tool_calls":    invocations,
		"input_tokens":  result.InputTokens,
		"output_tokens": result.OutputTokens,
	})
}

// decodeBody parses an optional JSON body. An empty body is fine; malformed
// JSON is a validation failure.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &mcperr.ValidationError{Field: "body", Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("HTTP", err, "Failed to encode response")
	}
}

// writeError maps typed failures to HTTP statuses: unknown or disconnected
// servers are 404, invalid input is 400, transport and protocol faults are
// 502, everything else is 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var notConnected *mcperr.NotConnectedError
	var validation *mcperr.ValidationError
	var connection *mcperr.ConnectionError
	var protocol *mcperr.ProtocolError
	var tool *mcperr.ToolError

	switch {
	case errors.As(err, &notConnected):
		status = http.StatusNotFound
		body["server"] = notConnected.Server
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body["field"] = validation.Field
	case errors.As(err, &connection):
		status = http.StatusBadGateway
		body["server"] = connection.Server
	case errors.As(err, &protocol):
		status = http.StatusBadGateway
		body["server"] = protocol.Server
	case errors.As(err, &tool):
		body["server"] = tool.Server
		body["tool"] = tool.Tool
	}

	writeJSON(w, status, body)
}
