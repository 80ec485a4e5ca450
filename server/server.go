// Copyright 2026 FluxBus
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fluxbus/platform/bus"
	"fluxbus/platform/saga"
	"fluxbus/platform/shared/logger"
)

// Server holds the wired components behind the HTTP surface. All state
// lives on the struct; handlers are methods, never package globals.
type Server struct {
	router    *bus.Router
	engine    *saga.Engine
	log       *logger.Logger
	startTime time.Time
}

// NewServer creates a server over an already-wired router and engine.
func NewServer(router *bus.Router, engine *saga.Engine, log *logger.Logger) *Server {
	return &Server{
		router:    router,
		engine:    engine,
		log:       log,
		startTime: time.Now(),
	}
}

// Routes builds the HTTP route table.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/v1/metrics", s.metricsHandler).Methods("GET")
	r.HandleFunc("/api/v1/status", s.statusHandler).Methods("GET")

	r.HandleFunc("/api/v1/services", s.registerServiceHandler).Methods("POST")
	r.HandleFunc("/api/v1/services/{name}", s.unregisterServiceHandler).Methods("DELETE")
	r.HandleFunc("/api/v1/transformers", s.registerTransformerHandler).Methods("POST")

	r.HandleFunc("/api/v1/messages", s.sendMessageHandler).Methods("POST")
	r.HandleFunc("/api/v1/messages", s.recentMessagesHandler).Methods("GET")

	r.HandleFunc("/api/v1/workflows/{name}", s.runWorkflowHandler).Methods("POST")
	r.HandleFunc("/api/v1/executions", s.recentExecutionsHandler).Methods("GET")
	r.HandleFunc("/api/v1/executions/{id}", s.getExecutionHandler).Methods("GET")

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":             "healthy",
		"service":            "fluxbus-esb",
		"version":            "1.0.0",
		"timestamp":          time.Now().UTC(),
		"services":           s.router.Services().Count(),
		"messages_processed": s.router.Audit().TotalCount(),
	}
	sendJSONResponse(w, health, http.StatusOK)
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"services":       s.router.Services().Count(),
		"transformers":   s.router.Transformers().Count(),
		"total_messages": s.router.Audit().TotalCount(),
		"workflows":      s.engine.WorkflowNames(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}
	sendJSONResponse(w, metrics, http.StatusOK)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"services":       s.router.Services().Snapshot(),
		"transformers":   s.router.Transformers().Keys(),
		"total_messages": s.router.Audit().TotalCount(),
	}
	sendJSONResponse(w, status, http.StatusOK)
}

func (s *Server) recentMessagesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			sendErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages := s.router.Audit().Recent(limit)
	sendJSONResponse(w, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	}, http.StatusOK)
}

type registerServiceRequest struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

func (s *Server) registerServiceHandler(w http.ResponseWriter, r *http.Request) {
	var req registerServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Endpoint == "" {
		sendErrorResponse(w, "name and endpoint are required", http.StatusBadRequest)
		return
	}

	registration := s.router.Services().Register(req.Name, req.Endpoint)
	s.log.Info("", "Service registered", map[string]interface{}{
		"service":  req.Name,
		"endpoint": req.Endpoint,
	})
	sendJSONResponse(w, registration, http.StatusCreated)
}

func (s *Server) unregisterServiceHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.router.Services().Has(name) {
		sendErrorResponse(w, fmt.Sprintf("Service %s is not registered", name), http.StatusNotFound)
		return
	}

	s.router.Services().Unregister(name)
	s.log.Info("", "Service unregistered", map[string]interface{}{"service": name})
	sendJSONResponse(w, map[string]interface{}{"unregistered": name}, http.StatusOK)
}

type registerTransformerRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Preset string `json:"preset"`
}

// registerTransformerHandler binds a named preset to a service pair.
// Only presets are accepted here; functions cannot cross a JSON
// boundary, so programmatic callers register transformers directly.
func (s *Server) registerTransformerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerTransformerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.From == "" || req.To == "" {
		sendErrorResponse(w, "from and to are required", http.StatusBadRequest)
		return
	}

	fn, ok := bus.Preset(req.Preset)
	if !ok {
		sendErrorResponse(w, fmt.Sprintf("Unknown preset %q (known: %s)",
			req.Preset, strings.Join(bus.PresetNames(), ", ")), http.StatusBadRequest)
		return
	}

	s.router.Transformers().Register(req.From, req.To, fn)
	sendJSONResponse(w, map[string]interface{}{
		"from":   req.From,
		"to":     req.To,
		"preset": req.Preset,
	}, http.StatusCreated)
}

type sendMessageRequest struct {
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Operation string                 `json:"operation"`
	Payload   map[string]interface{} `json:"payload"`
	Transform *bool                  `json:"transform"` // default true
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.From == "" || req.To == "" || req.Operation == "" {
		sendErrorResponse(w, "from, to and operation are required", http.StatusBadRequest)
		return
	}

	result, err := s.router.Send(r.Context(), bus.SendRequest{
		From:          req.From,
		To:            req.To,
		Operation:     req.Operation,
		Payload:       req.Payload,
		SkipTransform: req.Transform != nil && !*req.Transform,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, bus.ErrDestinationNotFound) {
			status = http.StatusNotFound
		}
		sendJSONResponse(w, result, status)
		return
	}
	sendJSONResponse(w, result, http.StatusOK)
}

func (s *Server) runWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	input := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	execution, err := s.engine.Run(r.Context(), name, input)
	if errors.Is(err, saga.ErrUnknownWorkflow) {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	if execution == nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		// The execution carries the full failure and compensation
		// history; the workflow ran, so this is not a transport-level
		// error status.
		sendJSONResponse(w, execution, http.StatusUnprocessableEntity)
		return
	}
	sendJSONResponse(w, execution, http.StatusOK)
}

func (s *Server) recentExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			sendErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	executions := s.engine.RecentExecutions(limit)
	sendJSONResponse(w, map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	}, http.StatusOK)
}

func (s *Server) getExecutionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	execution, err := s.engine.GetExecution(id)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	sendJSONResponse(w, execution, http.StatusOK)
}

func sendJSONResponse(w http.ResponseWriter, body interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	sendJSONResponse(w, map[string]interface{}{"error": message}, statusCode)
}
