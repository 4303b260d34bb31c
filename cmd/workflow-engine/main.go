// Command workflow-engine runs a single workflow document to completion
// against the streaming dataflow engine, printing a human-readable trace
// of every NodeStart/NodeFinish/NodeError/EdgeData event as it happens.
// It is the one concrete "observer" the core spec leaves abstract (see
// SPEC_FULL.md's SUPPLEMENTED FEATURES) and the local harness for the
// end-to-end scenarios in spec.md §8.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gorillaws "github.com/gorilla/websocket"

	"github.com/flowgraph/runtime/internal/engine"
	"github.com/flowgraph/runtime/internal/metrics"
	"github.com/flowgraph/runtime/internal/notification"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/registry"
	"github.com/flowgraph/runtime/internal/security"
	"github.com/flowgraph/runtime/internal/tracing"
	"github.com/flowgraph/runtime/internal/webhook"
	"github.com/flowgraph/runtime/internal/websocket"
	"github.com/flowgraph/runtime/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(os.Args[1:]); err != nil {
		slog.Error("workflow run failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("workflow-engine", flag.ContinueOnError)
	path := fs.String("workflow", "", "path to a workflow document (YAML/JSON)")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (empty disables)")
	wsAddr := fs.String("ws-addr", "", "address to serve a live execution-event WebSocket observer on, e.g. :9091 (empty disables)")
	slackWebhookURL := fs.String("slack-webhook-url", "", "Slack incoming-webhook URL to notify on workflow completion (empty disables)")
	webhookAddr := fs.String("webhook-addr", "", "address to serve a real webhook ingestion endpoint on, e.g. :9092 (empty disables; requires the workflow to have a WebhookTrigger node)")
	webhookSecretID := fs.String("webhook-secret-id", "", "UUID path segment external callers POST to, e.g. /webhooks/<this>; required when -webhook-addr is set")
	webhookHMACSecret := fs.String("webhook-hmac-secret", "", "HMAC-SHA256 secret used to verify the X-Webhook-Signature header (empty disables signature verification)")
	quiet := fs.Bool("quiet", false, "suppress the per-event trace, print only the final result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("workflow-engine: -workflow is required")
	}

	cfg := engine.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("workflow-engine: %w", err)
	}
	slog.Info("engine configuration loaded", "config", cfg.String())

	tracingCfg := tracing.LoadTracingConfig()
	_, shutdownTracing, err := tracing.InitTracing(context.Background(), tracingCfg)
	if err != nil {
		return fmt.Errorf("workflow-engine: init tracing: %w", err)
	}
	defer shutdownTracing()

	m := metrics.NewMetrics()
	if *metricsAddr != "" {
		promReg := prometheus.NewRegistry()
		if err := m.Register(promReg); err != nil {
			return fmt.Errorf("workflow-engine: register metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server exited", "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving prometheus metrics", "addr", *metricsAddr)
	}

	secrets := secretsFromEnv()
	reg := engine.NewRegistry(m, secrets, cfg.MaxDepth)

	data, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("workflow-engine: read %s: %w", *path, err)
	}
	loaded, err := workflow.Load(data, reg)
	if err != nil {
		return fmt.Errorf("workflow-engine: load %s: %w", *path, err)
	}
	if len(loaded.Unreachable) > 0 {
		slog.Warn("workflow has unreachable nodes", "nodes", loaded.Unreachable)
	}
	slog.Info("workflow loaded", "nodes", len(loaded.Definition.Nodes), "edges", len(loaded.Definition.Edges), "order", loaded.Order)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := engine.NewEventBus()
	sub, unsubscribe := bus.Subscribe(256)
	defer unsubscribe()

	tracePrinter := newTracePrinter(os.Stdout, *quiet)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub {
			tracePrinter.Print(ev)
		}
	}()

	if *wsAddr != "" {
		stopHub := serveEventObserver(*wsAddr, bus)
		defer close(stopHub)
	}

	if *slackWebhookURL != "" {
		notifier, err := notification.NewSlackNotifier(notification.SlackConfig{WebhookURL: *slackWebhookURL})
		if err != nil {
			return fmt.Errorf("workflow-engine: slack notifier: %w", err)
		}
		stopReporter := reportToSlack(notifier, *path, bus)
		defer close(stopReporter)
	}

	var runErr error
	runStart := time.Now()
	if *webhookAddr != "" {
		runErr = serveWebhook(ctx, *webhookAddr, *webhookSecretID, *webhookHMACSecret, loaded.Definition, reg, secrets)
	} else {
		runErr = engine.Run(ctx, loaded.Definition, reg, secrets, engine.Options{
			EdgeCapacity: cfg.EdgeCapacity,
			DebugLimit:   cfg.DebugLimit,
			Bus:          bus,
			Metrics:      m,
			WorkflowID:   *path,
			TriggerType:  "cli",
		})
	}
	unsubscribe()
	<-done

	slog.Info("workflow finished", "duration", time.Since(runStart), "error", runErr)
	return runErr
}

// secretsFromEnv builds the in-memory secret map the factory expects
// from every FLOWGRAPH_SECRET_<NAME> environment variable, lower-casing
// NAME into the secret_id nodes look up (e.g. FLOWGRAPH_SECRET_SLACK_WEBHOOK_URL
// becomes secrets["slack_webhook_url"]). Production hosts wire this from
// the persistence layer's in-memory secret_id -> secret_value map
// instead (spec §6's read-only credential contract); a CLI has no
// credential store, so env vars are its one plausible source.
func secretsFromEnv() registry.Secrets {
	const prefix = "FLOWGRAPH_SECRET_"
	secrets := registry.Secrets{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, prefix))
		secrets[name] = v
	}
	return secrets
}

// serveEventObserver starts an HTTP server at addr upgrading GET /ws
// connections into live execution-event observers (spec §6's "one or
// more subscribers may attach before run"), and returns a channel the
// caller closes to stop both the bridge and the hub's dispatch loop.
func serveEventObserver(addr string, bus *engine.EventBus) chan struct{} {
	hub := websocket.NewHub(slog.Default())
	stop := make(chan struct{})
	go hub.Run(stop)
	go websocket.Bridge(bus, hub, stop)

	upgrader := gorillaws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		c := &websocket.Client{ID: conn.RemoteAddr().String(), Conn: conn, Hub: hub, Send: make(chan []byte, 256)}
		hub.Register(c)
		go c.WritePump()
		go c.ReadPump()
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("event observer server exited", "error", err)
		}
	}()
	slog.Info("serving live execution events", "addr", addr, "path", "/ws")

	go func() {
		<-stop
		srv.Close()
	}()
	return stop
}

// serveWebhook runs def as a real webhook-triggered workflow instead of
// the CLI's usual single immediate run: it registers def under secretID
// with webhook.Server, listens at addr until ctx is canceled, and runs
// def once per valid incoming POST /webhooks/<secretID>.
func serveWebhook(ctx context.Context, addr, secretID, hmacSecret string, def workflow.Definition, reg *registry.Registry, secrets registry.Secrets) error {
	if secretID == "" {
		return fmt.Errorf("workflow-engine: -webhook-secret-id is required with -webhook-addr")
	}
	triggerID := findWebhookTrigger(def)
	if triggerID == "" {
		return fmt.Errorf("workflow-engine: workflow has no WebhookTrigger node")
	}

	srv := webhook.NewServer(slog.Default())
	registration := webhook.Registration{
		Definition:    def,
		Registry:      reg,
		Secrets:       secrets,
		TriggerNodeID: triggerID,
	}
	if hmacSecret != "" {
		registration.HMACSecret = []byte(hmacSecret)
	}
	if err := srv.Register(secretID, registration); err != nil {
		return fmt.Errorf("workflow-engine: %w", err)
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	slog.Info("serving webhook ingestion", "addr", addr, "path", "/webhooks/"+secretID)

	select {
	case <-ctx.Done():
		httpSrv.Close()
		return nil
	case err := <-errCh:
		return fmt.Errorf("workflow-engine: webhook server: %w", err)
	}
}

// findWebhookTrigger returns the first node ID of type "WebhookTrigger"
// in def, or "" if none exists.
func findWebhookTrigger(def workflow.Definition) string {
	for _, n := range def.Nodes {
		if n.Type == "WebhookTrigger" {
			return n.ID
		}
	}
	return ""
}

// reportToSlack subscribes to bus and posts a BuildWorkflowExecutionMessage
// to notifier once the run reaches WorkflowFinish, summarizing whether any
// node reported an error. Returns a channel the caller closes to stop the
// watcher.
func reportToSlack(notifier *notification.SlackNotifier, workflowName string, bus *engine.EventBus) chan struct{} {
	sub, unsubscribe := bus.Subscribe(64)
	stop := make(chan struct{})
	go func() {
		defer unsubscribe()
		status := "completed"
		var lastErr string
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch ev.Kind {
				case engine.NodeError:
					status = "failed"
					lastErr = ev.Err.Error()
				case engine.WorkflowFinish:
					msg := notification.BuildWorkflowExecutionMessage(workflowName, status, lastErr, "")
					if err := notifier.Send(context.Background(), msg); err != nil {
						slog.Warn("slack notification failed", "error", err)
					}
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}

type tracePrinter struct {
	out     *os.File
	quiet   bool
	logSani *security.LogSanitizer
}

func newTracePrinter(out *os.File, quiet bool) *tracePrinter {
	return &tracePrinter{out: out, quiet: quiet, logSani: security.NewLogSanitizer()}
}

func (p *tracePrinter) Print(ev engine.Event) {
	if p.quiet {
		return
	}
	switch ev.Kind {
	case engine.WorkflowStart:
		fmt.Fprintln(p.out, "workflow start")
	case engine.WorkflowFinish:
		fmt.Fprintln(p.out, "workflow finish")
	case engine.NodeStart:
		fmt.Fprintf(p.out, "node start   %s\n", ev.NodeID)
	case engine.NodeFinish:
		fmt.Fprintf(p.out, "node finish  %s\n", ev.NodeID)
	case engine.NodeError:
		fmt.Fprintf(p.out, "node error   %s: %v\n", ev.NodeID, ev.Err)
	case engine.EdgeData:
		fmt.Fprintf(p.out, "edge data    %s -> %s: %s\n", ev.EdgeFrom, ev.EdgeTo, p.renderValue(ev.Value))
	}
}

// renderValue prints v's value, redacting any field whose name looks
// like a credential (password, token, api_key, ...) so a record carrying
// a secret fetched upstream (e.g. into an HttpRequest Authorization
// header) never lands in plain text in the run's trace.
func (p *tracePrinter) renderValue(v record.Record) string {
	rendered := v
	if m, ok := v.Native().(map[string]interface{}); ok {
		rendered = record.FromNative(p.logSani.SanitizeForLog(m))
	}
	s := rendered.String()
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
