// Package webhook is the HTTP ingestion surface spec §4.2 leaves a mock:
// WebhookTrigger itself only ever forwards whatever a hosting server
// injects into its port-0 input (see internal/nodes/triggers.go); Server
// is that hosting server. Grounded on the teacher's
// internal/api/handlers/webhook.go Handle method and internal/webhook's
// Service.VerifySignature, stripped of the teacher's tenant/persistence
// layer (no replay log, no retry worker — this engine has no durable
// event store) down to the one thing a dataflow engine needs: validate,
// verify, inject, run.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/flowgraph/runtime/internal/engine"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/registry"
	"github.com/flowgraph/runtime/internal/security"
	"github.com/flowgraph/runtime/internal/workflow"
)

// maxBodyBytes bounds the request body this server will read before
// rejecting it, independent of any Content-Length header a caller
// sends; it matches the validator's own JSON size bound so the two
// checks never disagree.
const maxBodyBytes = security.MaxWebhookBodyBytes

// Registration binds one secret_id (the URL segment a caller POSTs to)
// to a resolved workflow definition, the node it should inject the
// trigger payload into, and an optional HMAC secret.
type Registration struct {
	Definition    workflow.Definition
	Registry      *registry.Registry
	Secrets       registry.Secrets
	TriggerNodeID string
	HMACSecret    []byte
}

// Server is an http.Handler that looks up a Registration by the
// secret_id path segment, validates and verifies the incoming request,
// and injects its JSON body into the registered workflow's trigger node
// before running it to completion.
type Server struct {
	mu    sync.RWMutex
	hooks map[string]Registration

	validator *security.InputValidator
	sigVal    *security.WebhookSignatureValidator
	logger    *slog.Logger
}

// NewServer returns a ready-to-use Server with no registrations.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hooks:     make(map[string]Registration),
		validator: security.NewInputValidator(),
		sigVal:    &security.WebhookSignatureValidator{},
		logger:    logger,
	}
}

// Register binds secretID (must be a UUID) to reg. An existing
// registration under the same secretID is replaced.
func (s *Server) Register(secretID string, reg Registration) error {
	if err := s.validator.ValidateUUID(secretID, "secret_id"); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[secretID] = reg
	return nil
}

// Unregister removes secretID's registration, if any.
func (s *Server) Unregister(secretID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hooks, secretID)
}

func (s *Server) lookup(secretID string) (Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.hooks[secretID]
	return reg, ok
}

// ServeHTTP implements http.Handler. It expects requests shaped
// POST /webhooks/{secret_id}.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	secretID := strings.TrimPrefix(r.URL.Path, "/webhooks/")
	if err := s.validator.ValidateUUID(secretID, "secret_id"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reg, ok := s.lookup(secretID)
	if !ok {
		http.Error(w, "webhook not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if err := s.validator.ValidateJSONSize(body); err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.validator.ValidateJSON(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(reg.HMACSecret) > 0 {
		signature := r.Header.Get("X-Webhook-Signature")
		if signature == "" {
			signature = r.Header.Get("X-Hub-Signature-256")
		}
		signature = strings.TrimPrefix(signature, "sha256=")
		if err := s.sigVal.ValidateSignatureFormat(signature); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if !verifyHMACSHA256(body, signature, reg.HMACSecret) {
			s.logger.Warn("webhook signature verification failed", "secret_id", secretID)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "malformed JSON body", http.StatusBadRequest)
		return
	}
	triggerData := record.FromNative(map[string]interface{}{
		"method":  r.Method,
		"headers": flattenHeaders(r.Header),
		"query":   flattenQuery(r.URL.Query()),
		"body":    payload,
	})

	runErr := engine.Run(r.Context(), reg.Definition, reg.Registry, reg.Secrets, engine.Options{
		Inject:      map[string]record.Record{reg.TriggerNodeID: triggerData},
		WorkflowID:  secretID,
		TriggerType: "webhook",
	})
	if runErr != nil {
		s.logger.Error("webhook-triggered workflow failed", "secret_id", secretID, "error", runErr)
		http.Error(w, "workflow execution failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}

// verifyHMACSHA256 matches the teacher's Service.VerifySignature: compute
// the expected signature over payload with secret and compare it to
// signature in constant time.
func verifyHMACSHA256(payload []byte, signature string, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func flattenHeaders(headers http.Header) map[string]interface{} {
	result := make(map[string]interface{}, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}

func flattenQuery(query map[string][]string) map[string]interface{} {
	result := make(map[string]interface{}, len(query))
	for key, values := range query {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}
