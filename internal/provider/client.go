package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/metrics"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type FailureClass string

const (
	FailureTransport FailureClass = "transport"
	FailureProtocol  FailureClass = "protocol"
	FailureExtract   FailureClass = "extract"
)

// DispatchError is the structured failure of a single dispatch. It never
// escapes past the batch runner; its message becomes the error result's
// diagnostic text. Status is the HTTP status code for protocol failures,
// zero otherwise.
type DispatchError struct {
	Class   FailureClass
	Status  int
	Message string
}

func (e *DispatchError) Error() string { return e.Message }

// ErrMissingEndpoint and ErrMissingAPIKey are configuration-time failures
// surfaced synchronously before any dispatch starts.
var (
	ErrMissingEndpoint = errors.New("provider endpoint is required")
	ErrMissingAPIKey   = errors.New("provider api key is required")
)

// ValidateConfig checks fields that are detectable before dispatch. The API
// key is required only where the caller says so (the configuration-test
// path); batch dispatch tolerates keyless endpoints.
func ValidateConfig(cfg domain.ProviderConfig, requireKey bool) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return ErrMissingEndpoint
	}
	if requireKey && strings.TrimSpace(cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Client dispatches one prompt to a configured LLM endpoint and normalizes
// the heterogeneous response shapes into plain text. Single attempt, hard
// timeout; every failure comes back as a *DispatchError.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewClientWithTransport is for tests that need a stub RoundTripper.
func NewClientWithTransport(rt http.RoundTripper, timeout time.Duration, logger *slog.Logger) *Client {
	c := NewClient(timeout, logger)
	c.httpClient.Transport = rt
	return c
}

func (c *Client) Dispatch(ctx context.Context, prompt string, cfg domain.ProviderConfig) (string, error) {
	kind := cfg.ResolvedKind()

	ctx, span := otel.Tracer("geoscope/provider").Start(ctx, "geoscope.provider.dispatch",
		trace.WithAttributes(
			attribute.String("geoscope.provider.kind", string(kind)),
			attribute.String("geoscope.provider.endpoint", cfg.Endpoint),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := c.dispatch(ctx, prompt, cfg, kind)
	metrics.DispatchLatencySeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		var de *DispatchError
		outcome := "error"
		if errors.As(err, &de) {
			outcome = string(de.Class)
		}
		metrics.DispatchTotal.WithLabelValues(string(kind), outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	metrics.DispatchTotal.WithLabelValues(string(kind), "success").Inc()
	return text, nil
}

func (c *Client) dispatch(ctx context.Context, prompt string, cfg domain.ProviderConfig, kind domain.ProviderKind) (string, error) {
	payload := buildPayload(kind, cfg.Model, prompt)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &DispatchError{Class: FailureProtocol, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &DispatchError{Class: FailureTransport, Message: fmt.Sprintf("build request: %v", err)}
	}
	setHeaders(req.Header, kind, cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &DispatchError{Class: FailureTransport, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &DispatchError{Class: FailureTransport, Message: fmt.Sprintf("read response: %v", err)}
	}
	excerptText := excerpt(string(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DispatchError{
			Class:   FailureProtocol,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("provider returned status %d, response: %s", resp.StatusCode, excerptText),
		}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		return "", &DispatchError{
			Class:   FailureProtocol,
			Message: fmt.Sprintf("provider returned non-JSON content-type %q, response: %s", contentType, excerptText),
		}
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &DispatchError{
			Class:   FailureProtocol,
			Message: fmt.Sprintf("JSON decode failed: %v, response: %s", err, excerptText),
		}
	}

	return extractContent(parsed, cfg.StrictExtract)
}

const excerptLimit = 200

// excerpt truncates a raw body for diagnostics, rune-safe.
func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLimit {
		return s
	}
	return string(runes[:excerptLimit])
}
