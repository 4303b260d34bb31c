package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/security"
	"github.com/flowgraph/runtime/internal/tracing"
)

// HttpRequestConfig configures HttpRequest. URLTemplate and Body may
// contain {{path}} placeholders rendered per input record.
type HttpRequestConfig struct {
	Method      string
	URLTemplate string
	Headers     map[string]string
	Body        record.Record
	HasBody     bool
	RetryCount  int
	RetryDelay  time.Duration
	AutoSplit   bool
}

// HTTPMetricsRecorder receives one observation per outbound request an
// HttpRequest node issues (each retry attempt counts separately).
type HTTPMetricsRecorder interface {
	RecordHTTPRequest(method, status string, durationSeconds float64)
}

// HttpRequest issues an HTTP request per input record, templating the
// URL, headers, and body against it, retrying transient failures, and
// forwarding the decoded JSON response (or splitting it element-wise
// when AutoSplit is set and the response is a sequence).
type HttpRequest struct {
	Cfg       HttpRequestConfig
	Client    *http.Client
	Validator *security.URLValidator
	Metrics   HTTPMetricsRecorder
}

// NewHttpRequest builds an HttpRequest with a default client timeout
// and the package default SSRF-guarding URL validator.
func NewHttpRequest(cfg HttpRequestConfig) *HttpRequest {
	return &HttpRequest{
		Cfg:       cfg,
		Client:    &http.Client{Timeout: 30 * time.Second},
		Validator: security.NewURLValidator(),
	}
}

// WithMetrics attaches a recorder and returns the same instance, for
// call-site chaining in a registry factory.
func (h *HttpRequest) WithMetrics(m HTTPMetricsRecorder) *HttpRequest {
	h.Metrics = m
	return h
}

func (h *HttpRequest) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		result, err := h.doWithRetry(ctx, v)
		if err != nil {
			outputs[0] <- record.Map(map[string]record.Record{
				"error":          record.String(err.Error()),
				"original_input": v,
			})
			continue
		}
		if h.Cfg.AutoSplit {
			if m, ok := result.Map(); ok {
				if arr, ok := m["body"].Slice(); ok {
					for _, el := range arr {
						outputs[0] <- wrapSplitElement(m, el, v)
					}
					continue
				}
			}
		}
		outputs[0] <- result
	}
	return nil
}

func (h *HttpRequest) doWithRetry(ctx context.Context, in record.Record) (record.Record, error) {
	var lastErr error
	for attempt := 0; attempt <= h.Cfg.RetryCount; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(h.Cfg.RetryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return record.Null, ctx.Err()
			}
		}
		var result record.Record
		err := tracing.TraceRetryAttempt(ctx, "http_request", attempt, h.Cfg.RetryCount, func(ctx context.Context) error {
			r, doErr := h.do(ctx, in)
			result = r
			return doErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return record.Null, lastErr
}

func (h *HttpRequest) do(ctx context.Context, in record.Record) (record.Record, error) {
	method := strings.ToUpper(h.Cfg.Method)
	if method == "" {
		method = "GET"
	}

	url := expression.Render(h.Cfg.URLTemplate, in)
	if url == "" {
		return record.Null, fmt.Errorf("http request: url is required")
	}
	if h.Validator != nil {
		if err := h.Validator.ValidateURL(url); err != nil {
			return record.Null, fmt.Errorf("http request: SSRF protection: %w", err)
		}
	}

	var bodyReader io.Reader
	if h.Cfg.HasBody {
		rendered := expression.RenderRecord(h.Cfg.Body, in)
		data, err := json.Marshal(rendered.Native())
		if err != nil {
			return record.Null, fmt.Errorf("http request: marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return record.Null, fmt.Errorf("http request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, tmpl := range h.Cfg.Headers {
		req.Header.Set(k, expression.Render(tmpl, in))
	}

	reqStart := time.Now()
	type httpResult struct {
		status int
		header http.Header
		data   []byte
	}
	raw, err := tracing.TraceHTTPAction(ctx, method, url, func(ctx context.Context) (interface{}, error) {
		resp, err := h.Client.Do(req)
		if err != nil {
			if h.Metrics != nil {
				h.Metrics.RecordHTTPRequest(method, "error", time.Since(reqStart).Seconds())
			}
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("http request: read body: %w", err)
		}
		if h.Metrics != nil {
			h.Metrics.RecordHTTPRequest(method, strconv.Itoa(resp.StatusCode), time.Since(reqStart).Seconds())
		}
		return httpResult{status: resp.StatusCode, header: resp.Header, data: data}, nil
	})
	if err != nil {
		return record.Null, err
	}
	result := raw.(httpResult)
	statusCode := result.status
	respHeader := result.header
	data := result.data
	if statusCode >= 400 {
		return record.Null, fmt.Errorf("http request: status %d: %s", statusCode, string(data))
	}

	headers := make(map[string]record.Record, len(respHeader))
	for k, vs := range respHeader {
		if len(vs) > 0 {
			headers[k] = record.String(vs[0])
		}
	}

	body := record.Null
	if len(data) > 0 {
		parsed, err := record.Parse(data)
		if err != nil {
			parsed = record.String(security.NewOutputSanitizer().SanitizeForJSON(string(data)))
		}
		body = parsed
	}

	return record.Map(map[string]record.Record{
		"status":  record.Number(float64(statusCode)),
		"headers": record.Map(headers),
		"body":    body,
	}), nil
}

// wrapSplitElement builds one auto-split emission per response element:
// {status, headers, body:item, original_input}, per §4.4 HttpRequest
// step 4.
func wrapSplitElement(resp map[string]record.Record, el, originalInput record.Record) record.Record {
	return record.Map(map[string]record.Record{
		"status":         resp["status"],
		"headers":        resp["headers"],
		"body":           el,
		"original_input": originalInput,
	})
}
