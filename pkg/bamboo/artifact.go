package bamboo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

// FetchArtifact downloads a build artifact. Directory index pages are followed through their
// first link until binary content is reached or the configured depth is exhausted.
func (c *Client) FetchArtifact(ctx context.Context, rawURL string) (Artifact, error) {
	ctx, span := c.tracer.Start(ctx, "bamboo.fetch_artifact", trace.WithAttributes(
		attribute.String("artifact.url", rawURL),
	))
	defer span.End()

	return c.fetchArtifact(ctx, rawURL, 0)
}

func (c *Client) fetchArtifact(ctx context.Context, rawURL string, depth int) (Artifact, error) {
	if depth > c.cfg.ArtifactMaxDepth {
		return Artifact{}, fmt.Errorf("index pages nested deeper than %d: %w", c.cfg.ArtifactMaxDepth, ErrArtifactNotFound)
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return Artifact{}, fmt.Errorf("parse artifact url: %w", err)
	}
	if !target.IsAbs() {
		base, err := url.Parse(c.cfg.BaseURL + "/")
		if err != nil {
			return Artifact{}, fmt.Errorf("parse base url: %w", err)
		}
		target = base.ResolveReference(target)
	}

	data, err := c.download(ctx, target.String())
	if err != nil {
		return Artifact{}, err
	}

	detected := mimetype.Detect(data)
	if !detected.Is("text/html") {
		return Artifact{
			Name:        path.Base(target.Path),
			ContentType: detected.String(),
			Data:        data,
		}, nil
	}

	href := firstHref(data)
	if href == "" {
		return Artifact{}, fmt.Errorf("index page %s has no link: %w", target.String(), ErrArtifactNotFound)
	}

	next, err := url.Parse(href)
	if err != nil {
		return Artifact{}, fmt.Errorf("parse index link %q: %w", href, ErrArtifactNotFound)
	}

	c.logger.Debug().Str("index", target.String()).Str("link", href).Int("depth", depth).Msg("following artifact index page")
	return c.fetchArtifact(ctx, target.ResolveReference(next).String(), depth+1)
}

func (c *Client) download(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build artifact request: %w", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues("fetch_artifact").Observe(time.Since(start).Seconds())
	if err != nil {
		requestFailures.WithLabelValues("fetch_artifact", "network").Inc()
		return nil, &NetworkError{Op: "fetch_artifact", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		requestFailures.WithLabelValues("fetch_artifact", "not_found").Inc()
		return nil, fmt.Errorf("artifact %s: %w", target, ErrArtifactNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestFailures.WithLabelValues("fetch_artifact", "rejected").Inc()
		return nil, &OperationError{Op: "fetch_artifact", StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.ArtifactMaxBytes+1))
	if err != nil {
		return nil, &NetworkError{Op: "fetch_artifact", Err: err}
	}
	if int64(len(data)) > c.cfg.ArtifactMaxBytes {
		requestFailures.WithLabelValues("fetch_artifact", "too_large").Inc()
		return nil, fmt.Errorf("artifact %s exceeds %d bytes: %w", target, c.cfg.ArtifactMaxBytes, ErrArtifactTooLarge)
	}
	return data, nil
}

func firstHref(page []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if !strings.EqualFold(string(name), "a") {
				continue
			}
			for hasAttr {
				var key, value []byte
				key, value, hasAttr = tokenizer.TagAttr()
				if strings.EqualFold(string(key), "href") && len(value) > 0 {
					return string(value)
				}
			}
		}
	}
}
