package modeladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/germanamz/modelkit/pkg/model"
	"github.com/germanamz/modelkit/pkg/modeladapter/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the client-generated id of each attempt.
const RequestIDHeader = "X-Client-Request-Id"

// DefaultTimeout bounds a single attempt when no Client is configured.
const DefaultTimeout = 10 * time.Minute

// Auth holds authentication settings for an LLM provider API.
type Auth struct {
	Key    string // API key value.
	Header string // Header name (default: "Authorization").
	Scheme string // Scheme prefix (default: "Bearer" when Header is "Authorization").
}

// ModelAdapter is the REST client shared by all capability adapters of one
// provider. It applies auth and custom headers, classifies failures into the
// error taxonomy, and extracts rate limit headers. It holds no per-call state
// and is safe for concurrent use once configured.
type ModelAdapter struct {
	Name         string                // Provider name used in errors and logs.
	Auth         Auth                  // Authentication settings.
	BaseURL      string                // API base URL (no trailing slash).
	Client       *http.Client          // HTTP client; falls back to a cached client with Timeout.
	Timeout      time.Duration         // Per-attempt timeout for the fallback client (default 10m).
	Headers      map[string]string     // Extra headers applied to every request.
	HeaderParser RateLimitHeaderParser // Optional parser for rate limit response headers.
	Usage        usage.Tracker         // Token usage accumulated across calls.
	Log          *zap.Logger           // Structured logger; nil disables logging.

	nowFunc       func() time.Time
	clientOnce    sync.Once
	defaultClient *http.Client
}

// New creates a ModelAdapter with the given settings.
// A nil client falls back to a client with DefaultTimeout at call time.
func New(baseURL string, auth Auth, client *http.Client) *ModelAdapter {
	return &ModelAdapter{
		Auth:    auth,
		BaseURL: baseURL,
		Client:  client,
	}
}

// Logger returns the configured logger or a no-op logger.
func (a *ModelAdapter) Logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// UsageTracker returns the adapter's token usage tracker.
func (a *ModelAdapter) UsageTracker() *usage.Tracker { return &a.Usage }

// SetNowFunc overrides the clock used for rate limit parsing (for testing).
func (a *ModelAdapter) SetNowFunc(fn func() time.Time) { a.nowFunc = fn }

func (a *ModelAdapter) now() time.Time {
	if a.nowFunc != nil {
		return a.nowFunc()
	}
	return time.Now()
}

// httpClient returns the configured client or a cached default client.
func (a *ModelAdapter) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}

	a.clientOnce.Do(func() {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		a.defaultClient = &http.Client{Timeout: timeout}
	})

	return a.defaultClient
}

// NewRequest builds an *http.Request with the base URL, auth, custom headers
// and a fresh client request id already applied.
func (a *ModelAdapter) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := a.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if a.Auth.Key != "" {
		header := a.Auth.Header
		if header == "" {
			header = "Authorization"
		}

		value := a.Auth.Key
		if header == "Authorization" {
			scheme := a.Auth.Scheme
			if scheme == "" {
				scheme = "Bearer"
			}

			value = scheme + " " + value
		} else if a.Auth.Scheme != "" {
			value = a.Auth.Scheme + " " + value
		}

		req.Header.Set(header, value)
	}

	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	req.Header.Set(RequestIDHeader, uuid.NewString())

	return req, nil
}

// Errorf wraps err with the provider name and the operation that failed, as
// in "openai: speech: ...".
func (a *ModelAdapter) Errorf(op string, err error) error {
	if a.Name == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %s: %w", a.Name, op, err)
}

// Do sends the request using the configured HTTP client.
func (a *ModelAdapter) Do(req *http.Request) (*http.Response, error) {
	return a.httpClient().Do(req) //nolint:gosec // URL is built from trusted BaseURL config, not user input.
}

// Reply is a successful (2xx) upstream response, fully read.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Empty reports whether the response carried no body.
func (r *Reply) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// send executes req and returns the reply for 2xx statuses. Other statuses are
// mapped through errorFromResponse.
func (a *ModelAdapter) send(req *http.Request) (*Reply, error) {
	resp, err := a.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp.StatusCode, resp.Header, body)
	}

	return &Reply{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  req.Header.Get(RequestIDHeader),
	}, nil
}

// PostJSON marshals payload as JSON, sends a POST to the given path, checks for
// a 2xx status and unmarshals the response body into dest. An empty body
// leaves dest untouched; callers check Reply.Empty. If dest is nil the body is
// not decoded.
func (a *ModelAdapter) PostJSON(ctx context.Context, path string, payload, dest any) (*Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := a.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w: %w", model.ErrInvalidRequest, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	reply, err := a.send(req)
	if err != nil {
		return nil, err
	}

	if dest == nil || reply.Empty() {
		return reply, nil
	}

	if err := json.Unmarshal(reply.Body, dest); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return reply, nil
}

// PostBinary marshals payload as JSON and returns the raw response body, for
// endpoints that answer with audio or other binary content.
func (a *ModelAdapter) PostBinary(ctx context.Context, path string, payload any, accept string) (*Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := a.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w: %w", model.ErrInvalidRequest, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	return a.send(req)
}

// FormField is a plain multipart form value.
type FormField struct {
	Name  string
	Value string
}

// Form is a multipart/form-data upload with a single file part.
type Form struct {
	Fields    []FormField
	FileField string
	Filename  string
	File      []byte
}

// PostMultipart encodes form as multipart/form-data, sends a POST to the
// given path and returns the raw response body.
func (a *ModelAdapter) PostMultipart(ctx context.Context, path string, form Form) (*Reply, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile(form.FileField, form.Filename)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	if _, err := fw.Write(form.File); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	for _, f := range form.Fields {
		if f.Value == "" {
			continue
		}
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, fmt.Errorf("encode form: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	req, err := a.NewRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w: %w", model.ErrInvalidRequest, err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	return a.send(req)
}

// RateLimit parses rate limit headers with the configured HeaderParser. It
// returns the zero RateLimit when no parser is set or no headers are present.
func (a *ModelAdapter) RateLimit(h http.Header) model.RateLimit {
	if a.HeaderParser == nil {
		return model.RateLimit{}
	}
	if info := a.HeaderParser(h, a.now()); info != nil {
		return *info
	}
	return model.RateLimit{}
}

// Metadata returns the response metadata derivable from a reply: request id
// and rate limits. Callers fill in ID, Model and Usage from the body.
func (a *ModelAdapter) Metadata(r *Reply) model.Metadata {
	return model.Metadata{
		RequestID: r.RequestID,
		RateLimit: a.RateLimit(r.Header),
	}
}

// WarnEmpty logs that an upstream call succeeded without a body.
func (a *ModelAdapter) WarnEmpty(what string, r *Reply) {
	a.Logger().Warn("empty response body",
		zap.String("provider", a.Name),
		zap.String("operation", what),
		zap.String("request_id", r.RequestID),
		zap.Int("status", r.StatusCode),
	)
}
