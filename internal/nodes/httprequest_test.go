package nodes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/record"
)

func newTestHttpRequest(cfg HttpRequestConfig) *HttpRequest {
	h := NewHttpRequest(cfg)
	h.Validator = nil
	return h
}

func TestHttpRequestForwardsDecodedJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	node := newTestHttpRequest(HttpRequestConfig{Method: "GET", URLTemplate: server.URL})
	in := closedChan(record.Null)
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)

	out, ok := results[0][0].Map()
	require.True(t, ok)
	status, _ := out["status"].Number()
	assert.Equal(t, 200.0, status)
	body, _ := out["body"].Map()
	ok2, _ := body["ok"].Bool()
	assert.True(t, ok2)
}

func TestHttpRequestErrorStatusReportedInline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	node := newTestHttpRequest(HttpRequestConfig{Method: "GET", URLTemplate: server.URL})
	in := closedChan(record.Null)
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)

	out, ok := results[0][0].Map()
	require.True(t, ok)
	_, hasErr := out["error"]
	assert.True(t, hasErr)
}

func TestHttpRequestRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	node := newTestHttpRequest(HttpRequestConfig{Method: "GET", URLTemplate: server.URL, RetryCount: 2})
	in := closedChan(record.Null)
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)

	out, _ := results[0][0].Map()
	_, hasErr := out["error"]
	assert.False(t, hasErr)
	assert.Equal(t, 2, attempts)
}

func TestHttpRequestAutoSplitEmitsOnePerElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1, 2, 3]`))
	}))
	defer server.Close()

	node := newTestHttpRequest(HttpRequestConfig{Method: "GET", URLTemplate: server.URL, AutoSplit: true})
	in := closedChan(record.Null)
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 3)

	for i, r := range results[0] {
		out, _ := r.Map()
		n, _ := out["body"].Number()
		assert.Equal(t, float64(i+1), n)
	}
}

func TestHttpRequestSendsJSONBody(t *testing.T) {
	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	node := newTestHttpRequest(HttpRequestConfig{
		Method:      "POST",
		URLTemplate: server.URL,
		Body:        record.Map(map[string]record.Record{"name": record.String("{{name}}")}),
		HasBody:     true,
	})
	in := closedChan(record.Map(map[string]record.Record{"name": record.String("alice")}))
	runNode(t, node, []In{in}, 1)
	assert.Contains(t, string(receivedBody), "alice")
}
