package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/ports"
	"github.com/oapi-codegen/runtime"
)

const (
	HeaderProfileID       = "Freerouting-Profile-ID"
	HeaderEnvironmentHost = "Freerouting-Environment-Host"
)

// APIError is a non-2xx answer from the engine.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// Client is a thin request/response layer over the engine API. It never retries.
type Client struct {
	baseURL         string
	profileID       string
	environmentHost string
	httpClient      *http.Client
	contract        *Contract
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithIdentity sets the headers sent on authenticated calls.
func WithIdentity(profileID, environmentHost string) Option {
	return func(c *Client) {
		c.profileID = profileID
		c.environmentHost = environmentHost
	}
}

// WithContract validates every decoded response body against the API document.
func WithContract(contract *Contract) Option {
	return func(c *Client) { c.contract = contract }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ports.RoutingService = (*Client)(nil)

// BaseURL returns the engine root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status is the unauthenticated readiness probe. Any 2xx counts, whatever the body.
func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/system/status", false, nil, nil, "")
}

// SystemStatus returns the raw status document.
func (c *Client) SystemStatus(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/system/status", false, nil, &raw, ""); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) CreateSession(ctx context.Context) (domain.Session, error) {
	var session domain.Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/create", true, nil, &session, SchemaSession); err != nil {
		return domain.Session{}, err
	}
	if session.ID == "" {
		return domain.Session{}, fmt.Errorf("create session: response carries no id")
	}
	return session, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/list", true, nil, &sessions, SchemaSessionList); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	path, err := resourcePath("/v1/sessions/", "sessionId", string(id), "")
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := c.do(ctx, http.MethodGet, path, true, nil, &session, SchemaSession); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (c *Client) EnqueueJob(ctx context.Context, req domain.JobRequest) (domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, http.MethodPost, "/v1/jobs/enqueue", true, req, &job, SchemaJob); err != nil {
		return domain.Job{}, err
	}
	if job.ID == "" {
		return domain.Job{}, fmt.Errorf("enqueue job: response carries no id")
	}
	if job.SessionID == "" {
		job.SessionID = req.SessionID
	}
	if job.Name == "" {
		job.Name = req.Name
	}
	if job.Priority == "" {
		job.Priority = req.Priority
	}
	return job, nil
}

func (c *Client) ListJobs(ctx context.Context, sessionID domain.SessionID) ([]domain.Job, error) {
	path, err := resourcePath("/v1/jobs/list/", "sessionId", string(sessionID), "")
	if err != nil {
		return nil, err
	}
	var jobs []domain.Job
	if err := c.do(ctx, http.MethodGet, path, true, nil, &jobs, SchemaJobList); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) UploadInput(ctx context.Context, id domain.JobID, input domain.InputArtifact) error {
	path, err := resourcePath("/v1/jobs/", "jobId", string(id), "/input")
	if err != nil {
		return err
	}
	body := filePayload{Filename: input.Filename, Data: input.Encode()}
	return c.do(ctx, http.MethodPost, path, true, body, nil, "")
}

func (c *Client) StartJob(ctx context.Context, id domain.JobID) error {
	path, err := resourcePath("/v1/jobs/", "jobId", string(id), "/start")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, true, nil, nil, "")
}

func (c *Client) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	path, err := resourcePath("/v1/jobs/", "jobId", string(id), "")
	if err != nil {
		return domain.Job{}, err
	}
	var job domain.Job
	if err := c.do(ctx, http.MethodGet, path, true, nil, &job, SchemaJob); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (c *Client) GetOutput(ctx context.Context, id domain.JobID) (domain.OutputArtifact, error) {
	path, err := resourcePath("/v1/jobs/", "jobId", string(id), "/output")
	if err != nil {
		return domain.OutputArtifact{}, err
	}
	var payload filePayload
	if err := c.do(ctx, http.MethodGet, path, true, nil, &payload, SchemaFilePayload); err != nil {
		return domain.OutputArtifact{}, err
	}
	return domain.DecodeOutput(payload.Filename, payload.Data)
}

// filePayload is the transport shape of both input upload and output fetch
type filePayload struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// resourcePath renders prefix + escaped path parameter + suffix.
func resourcePath(prefix, param, value, suffix string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s is required", param)
	}
	styled, err := runtime.StyleParamWithLocation("simple", false, param, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", param, err)
	}
	return prefix + styled + suffix, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out interface{}, schema string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set(HeaderProfileID, c.profileID)
		req.Header.Set(HeaderEnvironmentHost, c.environmentHost)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		respBody = []byte("{}")
	}
	if c.contract != nil && schema != "" {
		if err := c.contract.Validate(schema, respBody); err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: parse response: %w", method, path, err)
	}
	return nil
}
