// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package kubernetes implements backend.Client against the REST API of
// a Kubernetes-style cluster master.
//
// The adapter speaks plain JSON over HTTP: workload specs map to
// replication controllers, instances to pods, services to services.
// cmd/gantry-backend-mock serves the same wire contract for local
// development.
package kubernetes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/netutil"
)

// defaultTimeout bounds a single API request when the caller supplies
// no HTTP client of its own.
const defaultTimeout = 30 * time.Second

// Config holds configuration for creating a Client.
type Config struct {
	// MasterURL is the base URL of the cluster master API, e.g.
	// "http://10.0.0.1:8080".
	MasterURL string

	// HTTPClient is used for all requests. If nil, a client with a
	// 30-second timeout is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client talks to one cluster master. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ backend.Client = (*Client)(nil)

// New creates a Client for the given master.
func New(config Config) (*Client, error) {
	if config.MasterURL == "" {
		return nil, fmt.Errorf("kubernetes: MasterURL is required")
	}
	if _, err := url.Parse(config.MasterURL); err != nil {
		return nil, fmt.Errorf("kubernetes: invalid MasterURL %q: %w", config.MasterURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.MasterURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// NewFactory returns a backend.Factory producing Clients that share
// the given HTTP client and logger. Either may be nil for defaults.
func NewFactory(httpClient *http.Client, logger *slog.Logger) backend.Factory {
	return func(masterHost string, masterPort int) (backend.Client, error) {
		return New(Config{
			MasterURL:  fmt.Sprintf("http://%s:%d", masterHost, masterPort),
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}
}

func (c *Client) CreateWorkloadSpec(ctx context.Context, spec backend.WorkloadSpec) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/apis/gantry/v1/workloadspecs", nil, spec)
	if err != nil {
		return fmt.Errorf("kubernetes: creating workload spec %s: %w", spec.ID, err)
	}
	return nil
}

func (c *Client) DeleteWorkloadSpec(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/apis/gantry/v1/workloadspecs/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return fmt.Errorf("kubernetes: deleting workload spec %s: %w", id, err)
	}
	return nil
}

func (c *Client) QueryInstances(ctx context.Context, selector backend.Selector) ([]backend.Instance, error) {
	query := url.Values{}
	if encoded := encodeSelector(selector); encoded != "" {
		query.Set("selector", encoded)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/apis/gantry/v1/instances", query, nil)
	if err != nil {
		return nil, fmt.Errorf("kubernetes: querying instances: %w", err)
	}

	var response struct {
		Items []backend.Instance `json:"items"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("kubernetes: parsing instance list: %w", err)
	}
	return response.Items, nil
}

func (c *Client) GetInstance(ctx context.Context, id string) (*backend.Instance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/apis/gantry/v1/instances/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("kubernetes: getting instance %s: %w", id, err)
	}

	var instance backend.Instance
	if err := json.Unmarshal(body, &instance); err != nil {
		return nil, fmt.Errorf("kubernetes: parsing instance %s: %w", id, err)
	}
	return &instance, nil
}

func (c *Client) DeleteInstance(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/apis/gantry/v1/instances/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return fmt.Errorf("kubernetes: deleting instance %s: %w", id, err)
	}
	return nil
}

func (c *Client) CreateService(ctx context.Context, spec backend.ServiceSpec) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/apis/gantry/v1/services", nil, spec)
	if err != nil {
		return fmt.Errorf("kubernetes: creating service %s: %w", spec.ID, err)
	}
	return nil
}

func (c *Client) DeleteService(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/apis/gantry/v1/services/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return fmt.Errorf("kubernetes: deleting service %s: %w", id, err)
	}
	return nil
}

// apiError is the JSON error shape of the master API.
type apiError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// doRequest performs one API request. On 2xx it returns the body; on
// 4xx/5xx it returns a *backend.Error. query may be nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	backendErr := &backend.Error{
		Op:         method + " " + path,
		Ref:        path,
		StatusCode: response.StatusCode,
		NotFound:   response.StatusCode == http.StatusNotFound,
		Message:    strings.TrimSpace(string(responseBody)),
	}
	var parsed apiError
	if json.Unmarshal(responseBody, &parsed) == nil && parsed.Message != "" {
		backendErr.Message = parsed.Message
		if parsed.Reason == "NotFound" {
			backendErr.NotFound = true
		}
	}
	return nil, backendErr
}

// encodeSelector renders a selector as sorted comma-joined key=value
// pairs, the master API's label selector format.
func encodeSelector(selector backend.Selector) string {
	keys := make([]string, 0, len(selector))
	for key := range selector {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + selector[key]
	}
	return strings.Join(pairs, ",")
}
