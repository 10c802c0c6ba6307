package lti

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 10 * time.Second

// ErrRejected is returned when the tool consumer answers with a non-success status.
var ErrRejected = errors.New("lti outcome rejected")

// Config holds the OAuth consumer credentials shared with the tool consumer.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Client reports scores to LTI 1.1 outcome services.
type Client struct {
	http   *http.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger

	now   func() time.Time
	nonce func() string
}

// New constructs an outcome client.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/artemis-ci-api/pkg/lti"),
		logger: logger.With().Str("component", "lti_client").Logger(),
		now:    time.Now,
		nonce:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// FormatScore renders a 0-100 score as the two-decimal fraction LTI expects.
func FormatScore(score int) string {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return fmt.Sprintf("%.2f", float64(score)/100)
}

// ReplaceResult posts the score for sourcedID to the outcome service at outcomeURL.
func (c *Client) ReplaceResult(ctx context.Context, outcomeURL, sourcedID string, score int) error {
	ctx, span := c.tracer.Start(ctx, "lti.replace_result", trace.WithAttributes(
		attribute.String("lti.outcome_url", outcomeURL),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target, err := url.Parse(outcomeURL)
	if err != nil {
		return fmt.Errorf("parse outcome url: %w", err)
	}

	body, err := xml.Marshal(newReplaceResult(c.nonce(), sourcedID, FormatScore(score)))
	if err != nil {
		return fmt.Errorf("encode replace result request: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	params := map[string]string{
		"oauth_body_hash":        bodyHash(body),
		"oauth_consumer_key":     c.cfg.ConsumerKey,
		"oauth_nonce":            c.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	params["oauth_signature"] = signature(http.MethodPost, target, params, c.cfg.ConsumerSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build outcome request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Authorization", authorizationHeader(params))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("post outcome: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var parsed outcomeResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: unreadable response: %v", ErrRejected, err)
	}
	if !strings.EqualFold(parsed.Status.CodeMajor, "success") {
		return fmt.Errorf("%w: %s %s", ErrRejected, parsed.Status.CodeMajor, parsed.Status.Description)
	}

	c.logger.Debug().Str("sourced_id", sourcedID).Int("score", score).Msg("lti outcome reported")
	return nil
}
