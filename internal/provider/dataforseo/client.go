package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"seo-analysis-backend/internal/provider"
	"seo-analysis-backend/internal/shared/metrics"
	"seo-analysis-backend/internal/shared/telemetry"
)

const (
	statusOK          = 20000
	statusTaskCreated = 20100
	statusTaskHanded  = 40601
	statusTaskInQueue = 40602

	defaultRetryDelay = 300 * time.Millisecond
)

// Config configures the HTTP client.
type Config struct {
	BaseURL   string
	Login     string
	Password  string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
}

// Client implements provider.Gateway against the DataForSEO v3 REST API.
type Client struct {
	baseURL    string
	login      string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
}

// NewClient constructs a new client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("PROVIDER_BASE_URL is required")
	}
	if strings.TrimSpace(cfg.Login) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("PROVIDER_LOGIN and PROVIDER_PASSWORD are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		login:      cfg.Login,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		retryDelay: defaultRetryDelay,
	}, nil
}

type envelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []task `json:"tasks"`
}

type task struct {
	ID            string            `json:"id"`
	StatusCode    int               `json:"status_code"`
	StatusMessage string            `json:"status_message"`
	Result        []json.RawMessage `json:"result"`
}

// CallSync posts to a live endpoint and returns the result items of the first task.
func (c *Client) CallSync(ctx context.Context, endpoint string, payload map[string]any) ([]json.RawMessage, error) {
	env, err := c.do(ctx, http.MethodPost, endpoint, []map[string]any{payload})
	if err != nil {
		return nil, err
	}
	t, err := firstTask(env)
	if err != nil {
		return nil, err
	}
	if t.StatusCode != statusOK {
		return nil, provider.Errorf(t.StatusCode, "%s", t.StatusMessage)
	}
	return t.Result, nil
}

// SubmitTask posts a task and returns the provider task id.
func (c *Client) SubmitTask(ctx context.Context, endpoint string, payload map[string]any) (string, error) {
	env, err := c.do(ctx, http.MethodPost, endpoint, []map[string]any{payload})
	if err != nil {
		return "", err
	}
	t, err := firstTask(env)
	if err != nil {
		return "", err
	}
	if t.StatusCode != statusTaskCreated && t.StatusCode != statusOK {
		return "", provider.Errorf(t.StatusCode, "%s", t.StatusMessage)
	}
	if strings.TrimSpace(t.ID) == "" {
		return "", provider.Errorf(0, "provider returned no task id")
	}
	return t.ID, nil
}

// FetchTaskStatus reads a task from its task-get endpoint.
func (c *Client) FetchTaskStatus(ctx context.Context, taskID string, endpoint string) (provider.TaskStatus, error) {
	env, err := c.do(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+"/"+taskID, nil)
	if err != nil {
		return provider.TaskStatus{}, err
	}
	t, err := firstTask(env)
	if err != nil {
		return provider.TaskStatus{}, err
	}
	switch t.StatusCode {
	case statusOK:
		results := t.Result
		if results == nil {
			results = []json.RawMessage{}
		}
		return provider.TaskStatus{State: provider.TaskCompleted, Results: results}, nil
	case statusTaskHanded, statusTaskInQueue:
		return provider.TaskStatus{State: provider.TaskPending}, nil
	default:
		return provider.TaskStatus{State: provider.TaskFailed, Error: t.StatusMessage}, nil
	}
}

func firstTask(env envelope) (task, error) {
	if env.StatusCode != statusOK {
		return task{}, provider.Errorf(env.StatusCode, "%s", env.StatusMessage)
	}
	if len(env.Tasks) == 0 {
		return task{}, provider.Errorf(0, "provider returned no task")
	}
	return env.Tasks[0], nil
}

// do performs the request, retrying once on transient failures.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) (envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode provider request: %w", err)
		}
	}

	env, err := c.doOnce(ctx, method, endpoint, payload)
	if err == nil || !shouldRetry(err) {
		return env, err
	}

	telemetry.Warn("provider.retry", map[string]any{
		"endpoint": endpoint,
		"attempt":  1,
		"error":    err,
	})
	select {
	case <-time.After(c.retryDelay):
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}
	return c.doOnce(ctx, method, endpoint, payload)
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte) (envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return envelope{}, err
	}

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return envelope{}, err
	}
	req.SetBasicAuth(c.login, c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	metrics.ObserveProviderDurationMs(float64(elapsed.Milliseconds()))
	if err != nil {
		return envelope{}, &transientError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &transientError{err: err}
	}
	telemetry.Info("provider.call", map[string]any{
		"endpoint":    endpoint,
		"method":      method,
		"http_status": resp.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	})

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return envelope{}, &transientError{err: provider.Errorf(resp.StatusCode, "provider http status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, provider.Errorf(resp.StatusCode, "provider http status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, provider.Errorf(0, "provider response parse: %v", err)
	}
	return env, nil
}

// transientError marks failures worth one more attempt. It matches both
// provider.ErrProvider and provider.ErrUnavailable.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

func (e *transientError) Is(target error) bool {
	return target == provider.ErrProvider || target == provider.ErrUnavailable
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *transientError
	if !errors.As(err, &te) {
		return false
	}
	if errors.Is(te.err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(te.err, &netErr) {
		return true
	}
	var pe *provider.Error
	if errors.As(te.err, &pe) {
		return true
	}
	msg := strings.ToLower(te.err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}

var _ provider.Gateway = (*Client)(nil)
