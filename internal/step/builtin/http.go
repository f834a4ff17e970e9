package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Little-Star888/agenttask/internal/step"
)

type httpConfig struct {
	URL         string            `json:"url" validate:"required"`
	Method      string            `json:"method" default:"GET" validate:"oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Headers     map[string]string `json:"headers"`
	Query       map[string]string `json:"query"`
	Body        any               `json:"body"`
	Timeout     time.Duration     `json:"timeout" default:"30s" validate:"gt=0"`
	Retries     int               `json:"retries" validate:"gte=0,lte=10"`
	AllowErrors bool              `json:"allow_errors"`
}

const retryWait = 100 * time.Millisecond

// HTTP performs an HTTP request and produces the response as
// {status_code, status, headers, body}. JSON bodies are decoded, anything
// else is returned as a string. A 4xx or 5xx status fails the step unless
// allow_errors is set.
type HTTP struct {
	transport http.RoundTripper
	logger    *slog.Logger
}

// NewHTTP creates the http step. Every request goes through transport, so
// connections are pooled across runs.
func NewHTTP(transport http.RoundTripper, logger *slog.Logger) *HTTP {
	return &HTTP{transport: transport, logger: logger}
}

func (h *HTTP) Info() step.Info {
	return step.Info{
		Description: "Send an HTTP request",
		ConfigKeys:  []string{"url", "method", "headers", "query", "body", "timeout", "retries", "allow_errors"},
	}
}

func (h *HTTP) ValidateConfig(config map[string]any) error {
	var cfg httpConfig
	return step.DecodeConfig(config, &cfg)
}

func (h *HTTP) Execute(ctx context.Context, config map[string]any, vars step.Variables) (any, error) {
	var cfg httpConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	url, err := step.InterpolateString(cfg.URL, vars)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	headers, err := interpolateStrings(cfg.Headers, vars)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	query, err := interpolateStrings(cfg.Query, vars)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client := resty.NewWithClient(&http.Client{Transport: h.transport}).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	req := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParams(query)
	if cfg.Body != nil {
		body, err := step.InterpolateValue(cfg.Body, vars)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(cfg.Method, url)
	if err != nil {
		return nil, fmt.Errorf("http %s %s: %w", cfg.Method, url, err)
	}

	h.logger.Debug("http step completed",
		"method", cfg.Method,
		"url", url,
		"status", resp.StatusCode(),
		"attempts", resp.Request.Attempt,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	out := map[string]any{
		"status_code": resp.StatusCode(),
		"status":      resp.Status(),
		"headers":     flattenHeader(resp.Header()),
		"body":        decodeBody(resp),
	}
	if resp.IsError() && !cfg.AllowErrors {
		return out, fmt.Errorf("http %s %s: unexpected status %d", cfg.Method, url, resp.StatusCode())
	}
	return out, nil
}

func interpolateStrings(in map[string]string, vars step.Variables) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for k, v := range in {
		s, err := step.InterpolateString(v, vars)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

func flattenHeader(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func decodeBody(resp *resty.Response) any {
	raw := resp.Body()
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(resp.Header().Get("Content-Type"), "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}
