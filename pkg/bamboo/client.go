package bamboo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultArtifactMaxDepth = 5
	defaultArtifactMaxBytes = 64 << 20
	maxErrorBodyBytes       = 4096
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "artemis",
		Subsystem: "ci_client",
		Name:      "request_duration_seconds",
		Help:      "Duration of requests against the CI server",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artemis",
		Subsystem: "ci_client",
		Name:      "request_failures_total",
		Help:      "Number of CI requests that failed in transport or were rejected",
	}, []string{"operation", "kind"})
)

// Config groups the CI server connection settings.
type Config struct {
	BaseURL          string
	User             string
	Password         string
	Timeout          time.Duration
	ArtifactMaxDepth int
	ArtifactMaxBytes int64
	HTTPClient       *http.Client
	Logger           zerolog.Logger
}

// Client talks to the Bamboo REST API.
type Client struct {
	http      *http.Client
	cfg       Config
	tracer    trace.Tracer
	logger    zerolog.Logger
	sanitizer *bluemonday.Policy
}

// New constructs a CI client. Every request is bounded by cfg.Timeout.
func New(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bamboo base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ArtifactMaxDepth <= 0 {
		cfg.ArtifactMaxDepth = defaultArtifactMaxDepth
	}
	if cfg.ArtifactMaxBytes <= 0 {
		cfg.ArtifactMaxBytes = defaultArtifactMaxBytes
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Client{
		http:      httpClient,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/noah-isme/artemis-ci-api/pkg/bamboo"),
		logger:    logger.With().Str("component", "bamboo_client").Logger(),
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// BaseURL returns the configured CI server root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// do performs an authenticated JSON request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "bamboo."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("bamboo.path", path),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		requestFailures.WithLabelValues(op, "network").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn().Err(err).Str("operation", op).Msg("ci request failed")
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		requestFailures.WithLabelValues(op, "not_found").Inc()
		return fmt.Errorf("bamboo %s %s: %w", op, path, ErrNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestFailures.WithLabelValues(op, "rejected").Inc()
		opErr := &OperationError{Op: op, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		span.SetStatus(codes.Error, opErr.Error())
		return opErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &NetworkError{Op: op, Err: err}
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}

	return nil
}

func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var payload restError
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

func jobKey(planKey string) string {
	return strings.ToUpper(strings.TrimSpace(planKey)) + "-JOB1"
}
