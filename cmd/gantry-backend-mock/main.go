// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Gantry-backend-mock is a drop-in stand-in for a cluster master in
// local development and integration tests. It serves the exact wire
// contract of the backend/kubernetes adapter (same paths, same JSON
// shapes, same error reasons), stores everything in memory, and
// schedules instances the way a real master would: each created
// workload spec materializes its replicas as Pending instances, which
// report Running once --startup-delay has elapsed.
//
// Endpoints:
//   - POST   /apis/gantry/v1/workloadspecs        create a workload spec
//   - DELETE /apis/gantry/v1/workloadspecs/{id}   delete a workload spec
//   - GET    /apis/gantry/v1/instances            list instances (?selector=k=v,...)
//   - GET    /apis/gantry/v1/instances/{id}       get one instance
//   - DELETE /apis/gantry/v1/instances/{id}       delete an instance
//   - POST   /apis/gantry/v1/services             create a proxy service
//   - DELETE /apis/gantry/v1/services/{id}        delete a proxy service
//   - GET    /healthz                             liveness
//
// Deleting a workload spec does not delete its instances; the
// controller removes instances explicitly during termination, and the
// mock preserves that contract.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/process"
	"github.com/gantry-project/gantry/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		listenAddress string
		hostAddress   string
		startupDelay  time.Duration
		showVersion   bool
	)
	flag.StringVar(&listenAddress, "listen", "127.0.0.1:8080", "address to serve the master API on")
	flag.StringVar(&hostAddress, "host-address", "127.0.0.1", "host address reported for every instance")
	flag.DurationVar(&startupDelay, "startup-delay", 2*time.Second, "how long instances stay Pending before reporting Running")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("gantry-backend-mock %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := newClusterStore(startupDelay, hostAddress, logger)
	server := &http.Server{
		Addr:         listenAddress,
		Handler:      store.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	logger.Info("backend mock listening",
		"address", listenAddress,
		"startup_delay", startupDelay,
	)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// mockInstance pairs the wire instance with its scheduling time, so
// status can be derived from the configured startup delay.
type mockInstance struct {
	instance  backend.Instance
	createdAt time.Time
}

// clusterStore is the in-memory cluster model behind the API.
type clusterStore struct {
	startupDelay time.Duration
	hostAddress  string
	logger       *slog.Logger

	mu        sync.Mutex
	workloads map[string]backend.WorkloadSpec
	instances map[string]mockInstance
	services  map[string]backend.ServiceSpec
}

func newClusterStore(startupDelay time.Duration, hostAddress string, logger *slog.Logger) *clusterStore {
	return &clusterStore{
		startupDelay: startupDelay,
		hostAddress:  hostAddress,
		logger:       logger,
		workloads:    make(map[string]backend.WorkloadSpec),
		instances:    make(map[string]mockInstance),
		services:     make(map[string]backend.ServiceSpec),
	}
}

// handler builds the API route table.
func (s *clusterStore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /apis/gantry/v1/workloadspecs", s.handleCreateWorkloadSpec)
	mux.HandleFunc("DELETE /apis/gantry/v1/workloadspecs/{id}", s.handleDeleteWorkloadSpec)
	mux.HandleFunc("GET /apis/gantry/v1/instances", s.handleListInstances)
	mux.HandleFunc("GET /apis/gantry/v1/instances/{id}", s.handleGetInstance)
	mux.HandleFunc("DELETE /apis/gantry/v1/instances/{id}", s.handleDeleteInstance)
	mux.HandleFunc("POST /apis/gantry/v1/services", s.handleCreateService)
	mux.HandleFunc("DELETE /apis/gantry/v1/services/{id}", s.handleDeleteService)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// maxBodySize bounds a request body. Workload specs are small; 1 MB
// leaves room for long environment lists.
const maxBodySize = 1024 * 1024

func (s *clusterStore) handleCreateWorkloadSpec(w http.ResponseWriter, r *http.Request) {
	var spec backend.WorkloadSpec
	if !s.decodeBody(w, r, &spec) {
		return
	}
	if spec.ID == "" {
		s.sendError(w, http.StatusBadRequest, "Invalid", "workload spec id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workloads[spec.ID]; exists {
		s.sendError(w, http.StatusConflict, "AlreadyExists", "workload spec %q already exists", spec.ID)
		return
	}
	s.workloads[spec.ID] = spec

	now := time.Now()
	for i := 0; i < spec.Replicas; i++ {
		instance := backend.Instance{
			ID:          fmt.Sprintf("%s-%s", spec.ID, uuid.NewString()),
			HostAddress: s.hostAddress,
			Labels:      cloneLabels(spec.Labels),
		}
		s.instances[instance.ID] = mockInstance{instance: instance, createdAt: now}
	}

	s.logger.Info("workload spec created", "id", spec.ID, "replicas", spec.Replicas)
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, spec)
}

func (s *clusterStore) handleDeleteWorkloadSpec(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	spec, exists := s.workloads[id]
	if !exists {
		s.sendError(w, http.StatusNotFound, "NotFound", "no such workload spec %q", id)
		return
	}
	delete(s.workloads, id)

	s.logger.Info("workload spec deleted", "id", id)
	s.writeJSON(w, spec)
}

func (s *clusterStore) handleListInstances(w http.ResponseWriter, r *http.Request) {
	selector := parseSelector(r.URL.Query().Get("selector"))

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]backend.Instance, 0)
	for _, entry := range s.instances {
		if matches(entry.instance.Labels, selector) {
			items = append(items, s.withStatus(entry))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	s.writeJSON(w, struct {
		Items []backend.Instance `json:"items"`
	}{Items: items})
}

func (s *clusterStore) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.instances[id]
	if !exists {
		s.sendError(w, http.StatusNotFound, "NotFound", "no such instance %q", id)
		return
	}
	s.writeJSON(w, s.withStatus(entry))
}

func (s *clusterStore) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.instances[id]
	if !exists {
		s.sendError(w, http.StatusNotFound, "NotFound", "no such instance %q", id)
		return
	}
	delete(s.instances, id)

	s.logger.Info("instance deleted", "id", id)
	s.writeJSON(w, s.withStatus(entry))
}

func (s *clusterStore) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var spec backend.ServiceSpec
	if !s.decodeBody(w, r, &spec) {
		return
	}
	if spec.ID == "" {
		s.sendError(w, http.StatusBadRequest, "Invalid", "service id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[spec.ID]; exists {
		s.sendError(w, http.StatusConflict, "AlreadyExists", "service %q already exists", spec.ID)
		return
	}
	s.services[spec.ID] = spec

	s.logger.Info("service created", "id", spec.ID, "port", spec.Port)
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, spec)
}

func (s *clusterStore) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	spec, exists := s.services[id]
	if !exists {
		s.sendError(w, http.StatusNotFound, "NotFound", "no such service %q", id)
		return
	}
	delete(s.services, id)

	s.logger.Info("service deleted", "id", id)
	s.writeJSON(w, spec)
}

func (s *clusterStore) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// withStatus derives the instance's current status from its age.
// Caller must hold s.mu.
func (s *clusterStore) withStatus(entry mockInstance) backend.Instance {
	instance := entry.instance
	instance.Labels = cloneLabels(instance.Labels)
	if time.Since(entry.createdAt) >= s.startupDelay {
		instance.Status = backend.InstanceRunning
	} else {
		instance.Status = "Pending"
	}
	return instance
}

// decodeBody decodes a bounded JSON request body. On failure it writes
// the error response and returns false.
func (s *clusterStore) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid", "decoding request body: %v", err)
		return false
	}
	return true
}

// sendError writes the master API's JSON error shape.
func (s *clusterStore) sendError(w http.ResponseWriter, status int, reason, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}{Reason: reason, Message: fmt.Sprintf(format, args...)}); err != nil {
		s.logger.Warn("writing JSON error response", "error", err, "status", status)
	}
}

// writeJSON encodes value as JSON into w, setting the Content-Type
// header. Encoding failures are logged; the client has typically
// disconnected and cannot receive a corrective response.
func (s *clusterStore) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("writing JSON response", "error", err)
	}
}

// parseSelector parses the comma-joined key=value label selector
// format. Malformed pairs are skipped; an empty selector matches
// every instance.
func parseSelector(encoded string) backend.Selector {
	selector := backend.Selector{}
	for _, pair := range strings.Split(encoded, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		selector[key] = value
	}
	return selector
}

func matches(labels map[string]string, selector backend.Selector) bool {
	for key, want := range selector {
		if labels[key] != want {
			return false
		}
	}
	return true
}

func cloneLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for key, value := range labels {
		out[key] = value
	}
	return out
}
