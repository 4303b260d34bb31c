package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgraph/runtime/internal/communication"
	"github.com/flowgraph/runtime/internal/communication/email"
	"github.com/flowgraph/runtime/internal/communication/sms"
	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/javascript"
	"github.com/flowgraph/runtime/internal/messaging"
	"github.com/flowgraph/runtime/internal/metrics"
	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/notification"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/storage"
)

// decode remarshals a node's raw config (decoded from the workflow
// document, typically map[string]interface{}) into a typed struct, the
// same json.Marshal/json.Unmarshal round trip the teacher's action
// factories use.
func decode(config interface{}, out interface{}) error {
	if config == nil {
		return nil
	}
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("registry: marshal config: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("registry: decode config: %w", err)
	}
	return nil
}

func configValue(config interface{}, field string) (record.Record, bool) {
	m, ok := config.(map[string]interface{})
	if !ok {
		return record.Null, false
	}
	v, ok := m[field]
	if !ok {
		return record.Null, false
	}
	return record.FromNative(v), true
}

// Standard returns a registry populated with the complete built-in node
// library: triggers, sinks, control-flow, combine/join, batch, and the
// integration sink nodes, each paired with the static port/property
// metadata a document loader or a UI needs. It records no metrics; use
// StandardWithMetrics to get Prometheus observations out of HttpRequest
// and expression evaluation.
func Standard() *Registry {
	return StandardWithMetrics(nil)
}

// StandardWithMetrics is Standard, with every node that can usefully
// report to Prometheus (HttpRequest's outbound calls, Router's
// expr-lang evaluations) wired to m. m may be nil, in which case this is
// identical to Standard().
func StandardWithMetrics(m *metrics.Metrics) *Registry {
	r := New()
	registerTriggers(r)
	registerSinksAndControl(r, m)
	registerBatchAndCombine(r)
	registerMisc(r, m)
	registerIntegrations(r)
	return r
}

func newFormula(m *metrics.Metrics) *expression.Formula {
	if m == nil {
		return expression.NewFormula()
	}
	return expression.NewInstrumentedFormula(m)
}

func registerTriggers(r *Registry) {
	r.Register(Type{ID: "ManualTrigger", Label: "Manual Trigger", Category: "trigger", Outputs: []string{"out"}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			return nodes.ManualTrigger{}, nil
		})

	r.Register(Type{ID: "ChildWorkflowTrigger", Label: "Child Workflow Trigger", Category: "trigger", Outputs: []string{"out"}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			return nodes.ChildWorkflowTrigger{}, nil
		})

	r.Register(Type{ID: "TimeTrigger", Label: "Time Trigger", Category: "trigger", Outputs: []string{"out"},
		Props: []Property{
			{Name: "interval_seconds", Type: "number"},
			{Name: "cron", Type: "string"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg nodes.TimeTriggerConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.TimeTrigger{Cfg: cfg}, nil
		})

	r.Register(Type{ID: "WebhookTrigger", Label: "Webhook Trigger", Category: "trigger", Outputs: []string{"out"},
		Props: []Property{
			{Name: "path", Type: "string", Required: true},
			{Name: "method", Type: "string"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg nodes.WebhookTriggerConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.WebhookTrigger{Cfg: cfg}, nil
		})
}

func registerSinksAndControl(r *Registry, m *metrics.Metrics) {
	r.Register(Type{ID: "ConsoleOutput", Label: "Console Output", Category: "sink", Inputs: []string{"in"}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			return nodes.ConsoleOutput{Writer: consoleWriter}, nil
		})

	r.Register(Type{ID: "SetData", Label: "Set Data", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "value", Type: "record", Required: true}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			v, _ := configValue(config, "value")
			return nodes.SetData{Value: v}, nil
		})

	r.Register(Type{ID: "Router", Label: "Router", Category: "control", Inputs: []string{"in"}, Outputs: []string{"true", "false"},
		Props: []Property{
			{Name: "key", Type: "string"},
			{Name: "value", Type: "record"},
			{Name: "operator", Type: "string", Required: true},
			{Name: "expression", Type: "expression"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Key        string `json:"key"`
				Operator   string `json:"operator"`
				Expression string `json:"expression"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			value, _ := configValue(config, "value")
			if cfg.Expression != "" {
				return nodes.Router{Expression: cfg.Expression, Formula: newFormula(m)}, nil
			}
			return nodes.Router{Key: cfg.Key, Value: value, Operator: cfg.Operator}, nil
		})

	r.Register(Type{ID: "Switch", Label: "Switch", Category: "control", Inputs: []string{"in"}, Outputs: []string{"default"},
		Props: []Property{
			{Name: "expression", Type: "expression", Required: true},
			{Name: "cases", Type: "record"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Expression string   `json:"expression"`
				Cases      []string `json:"cases"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			cases := make([]nodes.SwitchCase, len(cfg.Cases))
			for i, c := range cfg.Cases {
				cases[i] = nodes.SwitchCase{Value: c}
			}
			return nodes.Switch{Expression: cfg.Expression, Cases: cases}, nil
		})

	r.Register(Type{ID: "Split", Label: "Split", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "path", Type: "string"}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Path string `json:"path"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Split{Path: cfg.Path}, nil
		})
}

func registerBatchAndCombine(r *Registry) {
	r.Register(Type{ID: "Accumulate", Label: "Accumulate", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "batch_size", Type: "number"}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				BatchSize int `json:"batch_size"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Accumulate{BatchSize: cfg.BatchSize}, nil
		})

	r.Register(Type{ID: "Dedupe", Label: "Dedupe", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "key", Type: "string"}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Key string `json:"key"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Dedupe{Key: cfg.Key}, nil
		})

	r.Register(Type{ID: "Union", Label: "Union", Category: "combine", Inputs: []string{"a", "b"}, Outputs: []string{"out"},
		Props: []Property{{Name: "mode", Type: "string"}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Mode string `json:"mode"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Union{Mode: cfg.Mode}, nil
		})

	r.Register(Type{ID: "Join", Label: "Join", Category: "combine", Inputs: []string{"left", "right"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "type", Type: "string", Required: true},
			{Name: "mode", Type: "string", Required: true},
			{Name: "left_keys", Type: "record"},
			{Name: "right_keys", Type: "record"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Type      string   `json:"type"`
				Mode      string   `json:"mode"`
				LeftKeys  []string `json:"left_keys"`
				RightKeys []string `json:"right_keys"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Join{
				Type:      nodes.JoinType(cfg.Type),
				Mode:      nodes.JoinMode(cfg.Mode),
				LeftKeys:  cfg.LeftKeys,
				RightKeys: cfg.RightKeys,
			}, nil
		})

	r.Register(Type{ID: "GroupBy", Label: "Group By", Category: "aggregate", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "keys", Type: "record"},
			{Name: "aggregations", Type: "record"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			keys, aggs, err := decodeAggregationConfig(config)
			if err != nil {
				return nil, err
			}
			return nodes.GroupBy{Keys: keys, Aggregations: aggs}, nil
		})

	r.Register(Type{ID: "Stats", Label: "Stats", Category: "aggregate", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "columns", Type: "record"},
			{Name: "operations", Type: "record"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Columns    []string `json:"columns"`
				Operations []string `json:"operations"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Stats{Columns: cfg.Columns, Operations: cfg.Operations}, nil
		})

	r.Register(Type{ID: "Wait", Label: "Wait", Category: "control", Inputs: []string{"a", "b"}, Outputs: []string{"a", "b"},
		Props: []Property{{Name: "timeout_ms", Type: "number"}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				TimeoutMs int `json:"timeout_ms"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Wait{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond}, nil
		})
}

func decodeAggregationConfig(config interface{}) ([]string, []nodes.GroupAggregation, error) {
	var cfg struct {
		Keys         []string `json:"keys"`
		Aggregations []struct {
			Column string `json:"column"`
			Func   string `json:"function"`
			Alias  string `json:"alias"`
		} `json:"aggregations"`
	}
	if err := decode(config, &cfg); err != nil {
		return nil, nil, err
	}
	aggs := make([]nodes.GroupAggregation, len(cfg.Aggregations))
	for i, a := range cfg.Aggregations {
		aggs[i] = nodes.GroupAggregation{Column: a.Column, Func: a.Func, Alias: a.Alias}
	}
	return cfg.Keys, aggs, nil
}

func registerMisc(r *Registry, m *metrics.Metrics) {
	r.Register(Type{ID: "Delay", Label: "Delay", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "duration_ms", Type: "number", Required: true}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				DurationMs int `json:"duration_ms"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			return nodes.Delay{Duration: time.Duration(cfg.DurationMs) * time.Millisecond}, nil
		})

	jsEngine, jsErr := javascript.NewEngine(nil)
	r.Register(Type{ID: "Code", Label: "Code", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "lang", Type: "string", Required: true},
			{Name: "code", Type: "string", Required: true},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			if jsErr != nil {
				return nil, fmt.Errorf("registry: code engine: %w", jsErr)
			}
			var cfg nodes.CodeConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			// Only the embedded JS engine is wired; a "python" script
			// must fail here, at build time, not silently run as JS.
			switch cfg.Lang {
			case "", "js", "javascript":
			default:
				return nil, fmt.Errorf("registry: code: unsupported lang %q, only js/javascript is available", cfg.Lang)
			}
			return nodes.Code{Cfg: cfg, Engine: jsEngine}, nil
		})

	r.Register(Type{ID: "Return", Label: "Return", Category: "control", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "value", Type: "record"}}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			v, has := configValue(config, "value")
			return nodes.Return{Value: v, HasValue: has}, nil
		})

	r.Register(Type{ID: "HttpRequest", Label: "HTTP Request", Category: "action", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "method", Type: "string", Required: true},
			{Name: "url", Type: "expression", Required: true},
			{Name: "headers", Type: "record"},
			{Name: "body", Type: "record"},
			{Name: "retry_count", Type: "number"},
			{Name: "retry_delay_ms", Type: "number"},
			{Name: "auto_split", Type: "bool"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Method       string            `json:"method"`
				URL          string            `json:"url"`
				Headers      map[string]string `json:"headers"`
				RetryCount   int               `json:"retry_count"`
				RetryDelayMs int               `json:"retry_delay_ms"`
				AutoSplit    bool              `json:"auto_split"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			body, hasBody := configValue(config, "body")
			req := nodes.NewHttpRequest(nodes.HttpRequestConfig{
				Method:      cfg.Method,
				URLTemplate: cfg.URL,
				Headers:     cfg.Headers,
				Body:        body,
				HasBody:     hasBody,
				RetryCount:  cfg.RetryCount,
				RetryDelay:  time.Duration(cfg.RetryDelayMs) * time.Millisecond,
				AutoSplit:   cfg.AutoSplit,
			})
			if m != nil {
				req = req.WithMetrics(m)
			}
			return req, nil
		})
}

func registerIntegrations(r *Registry) {
	r.Register(Type{ID: "SlackMessage", Label: "Slack Message", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{{Name: "text", Type: "expression", Required: true}}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Text string `json:"text"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			notifier, err := notification.NewSlackNotifier(notification.SlackConfig{
				WebhookURL: secrets["slack_webhook_url"],
				Timeout:    10 * time.Second,
			})
			if err != nil {
				return nil, fmt.Errorf("registry: slack message: %w", err)
			}
			return nodes.SlackMessage{Cfg: nodes.SlackMessageConfig{TextTemplate: cfg.Text}, Notifier: notifier}, nil
		})

	r.Register(Type{ID: "EmailSend", Label: "Email Send", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "provider", Type: "string", Required: true},
			{Name: "from", Type: "string", Required: true},
			{Name: "to", Type: "record", Required: true},
			{Name: "subject", Type: "expression"},
			{Name: "body", Type: "expression"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Provider string   `json:"provider"`
				From     string   `json:"from"`
				To       []string `json:"to"`
				Subject  string   `json:"subject"`
				Body     string   `json:"body"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			provider, err := emailProvider(cfg.Provider, secrets)
			if err != nil {
				return nil, err
			}
			return nodes.EmailSend{
				Cfg: nodes.EmailSendConfig{
					From:            cfg.From,
					ToTemplate:      cfg.To,
					SubjectTemplate: cfg.Subject,
					BodyTemplate:    cfg.Body,
				},
				Provider: provider,
			}, nil
		})

	r.Register(Type{ID: "SMSSend", Label: "SMS Send", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "provider", Type: "string", Required: true},
			{Name: "from", Type: "expression"},
			{Name: "to", Type: "expression", Required: true},
			{Name: "body", Type: "expression", Required: true},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Provider string `json:"provider"`
				From     string `json:"from"`
				To       string `json:"to"`
				Body     string `json:"body"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			provider, err := smsProvider(cfg.Provider, secrets)
			if err != nil {
				return nil, err
			}
			return nodes.SMSSend{
				Cfg: nodes.SMSSendConfig{
					FromTemplate: cfg.From,
					ToTemplate:   cfg.To,
					BodyTemplate: cfg.Body,
				},
				Provider: provider,
			}, nil
		})

	r.Register(Type{ID: "FileUpload", Label: "File Upload", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "provider", Type: "string", Required: true},
			{Name: "bucket", Type: "expression", Required: true},
			{Name: "key", Type: "expression", Required: true},
			{Name: "body_path", Type: "string"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Provider string `json:"provider"`
				Bucket   string `json:"bucket"`
				Key      string `json:"key"`
				BodyPath string `json:"body_path"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			backend, err := fileStorage(cfg.Provider, secrets)
			if err != nil {
				return nil, err
			}
			return nodes.FileUpload{
				Cfg: nodes.FileUploadConfig{
					BucketTemplate: cfg.Bucket,
					KeyTemplate:    cfg.Key,
					BodyPath:       cfg.BodyPath,
				},
				Storage: backend,
			}, nil
		})

	r.Register(Type{ID: "MessagePublish", Label: "Message Publish", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "queue_type", Type: "string", Required: true},
			{Name: "destination", Type: "expression", Required: true},
			{Name: "body_path", Type: "string"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				QueueType   string   `json:"queue_type"`
				Brokers     []string `json:"brokers"`
				URL         string   `json:"url"`
				Region      string   `json:"region"`
				Destination string   `json:"destination"`
				BodyPath    string   `json:"body_path"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			queue, err := messaging.NewMessageQueue(context.Background(), messaging.Config{
				Type:    messaging.QueueType(cfg.QueueType),
				Brokers: cfg.Brokers,
				URL:     cfg.URL,
				Region:  cfg.Region,
			})
			if err != nil {
				return nil, fmt.Errorf("registry: message publish: %w", err)
			}
			return nodes.MessagePublish{
				Cfg: nodes.MessagePublishConfig{
					DestinationTemplate: cfg.Destination,
					BodyPath:            cfg.BodyPath,
				},
				Queue: queue,
			}, nil
		})

	r.Register(Type{ID: "MongoWrite", Label: "Mongo Write", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "database", Type: "string", Required: true},
			{Name: "collection", Type: "expression", Required: true},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Database   string `json:"database"`
				Collection string `json:"collection"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Database == "" {
				return nil, fmt.Errorf("registry: mongo write: database is required")
			}
			store, err := storage.NewMongoStore(context.Background(), secrets["mongo_uri"])
			if err != nil {
				return nil, fmt.Errorf("registry: mongo write: %w", err)
			}
			return nodes.MongoWrite{
				Cfg:    nodes.MongoWriteConfig{Database: cfg.Database, CollectionTemplate: cfg.Collection},
				Client: store,
			}, nil
		})

	r.Register(Type{ID: "RedisCache", Label: "Redis Cache", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "key", Type: "expression", Required: true},
			{Name: "ttl_seconds", Type: "number"},
			{Name: "value_path", Type: "string"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Key        string `json:"key"`
				TTLSeconds int    `json:"ttl_seconds"`
				ValuePath  string `json:"value_path"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			client := redis.NewClient(&redis.Options{Addr: secrets["redis_addr"]})
			return nodes.RedisCache{
				Cfg: nodes.RedisCacheConfig{
					KeyTemplate: cfg.Key,
					TTL:         time.Duration(cfg.TTLSeconds) * time.Second,
					ValuePath:   cfg.ValuePath,
				},
				Client: client,
			}, nil
		})

	r.Register(Type{ID: "SqlQuery", Label: "SQL Query", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "query", Type: "string", Required: true},
			{Name: "params", Type: "expression"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Query  string `json:"query"`
				Params string `json:"params"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Query == "" {
				return nil, fmt.Errorf("registry: sql query: query is required")
			}
			db, err := sql.Open("postgres", secrets["postgres_dsn"])
			if err != nil {
				return nil, fmt.Errorf("registry: sql query: %w", err)
			}
			return nodes.SqlQuery{
				Cfg: nodes.SqlQueryConfig{Query: cfg.Query, ParamsTemplate: cfg.Params},
				DB:  db,
			}, nil
		})

	r.Register(Type{ID: "Agent", Label: "LLM Agent", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "model", Type: "string", Required: true},
			{Name: "system_prompt", Type: "expression"},
			{Name: "user_prompt", Type: "expression", Required: true},
			{Name: "api_base", Type: "string"},
			{Name: "json_schema", Type: "record"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Model        string      `json:"model"`
				SystemPrompt string      `json:"system_prompt"`
				UserPrompt   string      `json:"user_prompt"`
				APIBase      string      `json:"api_base"`
				JSONSchema   interface{} `json:"json_schema"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Model == "" || cfg.UserPrompt == "" {
				return nil, fmt.Errorf("registry: agent: model and user_prompt are required")
			}
			apiKey := secrets["openai_api_key"]
			if apiKey == "" {
				return nil, fmt.Errorf("registry: agent: openai_api_key secret is required")
			}
			acfg := nodes.AgentConfig{
				Model:                cfg.Model,
				SystemPromptTemplate: cfg.SystemPrompt,
				UserPromptTemplate:   cfg.UserPrompt,
				APIBase:              cfg.APIBase,
			}
			if cfg.JSONSchema != nil {
				acfg.JSONSchema = record.FromNative(cfg.JSONSchema)
				acfg.HasJSONSchema = true
			}
			return nodes.NewAgent(acfg, apiKey), nil
		})

	r.Register(Type{ID: "FileRead", Label: "File Read", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "path", Type: "expression", Required: true},
			{Name: "stream_lines", Type: "bool"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Path        string `json:"path"`
				StreamLines bool   `json:"stream_lines"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Path == "" {
				return nil, fmt.Errorf("registry: file read: path is required")
			}
			return nodes.FileRead{Cfg: nodes.FileReadConfig{PathTemplate: cfg.Path, StreamLines: cfg.StreamLines}}, nil
		})

	r.Register(Type{ID: "FileWrite", Label: "File Write", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "path", Type: "expression", Required: true},
			{Name: "content", Type: "expression", Required: true},
			{Name: "mode", Type: "string"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Path    string `json:"path"`
				Content string `json:"content"`
				Mode    string `json:"mode"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Path == "" {
				return nil, fmt.Errorf("registry: file write: path is required")
			}
			return nodes.FileWrite{Cfg: nodes.FileWriteConfig{PathTemplate: cfg.Path, ContentTemplate: cfg.Content, Mode: cfg.Mode}}, nil
		})

	r.Register(Type{ID: "Select", Label: "Select", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "template", Type: "expression", Required: true},
			{Name: "output_type", Type: "string"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Template   string `json:"template"`
				OutputType string `json:"output_type"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			outputType := nodes.SelectOutputType(cfg.OutputType)
			if outputType == "" {
				outputType = nodes.SelectOutputAuto
			}
			return nodes.Select{Cfg: nodes.SelectConfig{Template: cfg.Template, OutputType: outputType}}, nil
		})

	r.Register(Type{ID: "SshCommand", Label: "SSH Command", Category: "integration", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "host", Type: "string", Required: true},
			{Name: "port", Type: "number"},
			{Name: "user", Type: "string", Required: true},
			{Name: "command", Type: "string", Required: true},
			{Name: "args", Type: "record"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Host    string   `json:"host"`
				Port    int      `json:"port"`
				User    string   `json:"user"`
				Command string   `json:"command"`
				Args    []string `json:"args"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Host == "" || cfg.Command == "" {
				return nil, fmt.Errorf("registry: ssh command: host and command are required")
			}
			port := cfg.Port
			if port == 0 {
				port = 22
			}
			return nodes.SshCommand{Cfg: nodes.SshCommandConfig{
				Host:            cfg.Host,
				Port:            port,
				User:            cfg.User,
				Password:        secrets["ssh_password"],
				CommandTemplate: cfg.Command,
				ArgTemplates:    cfg.Args,
			}}, nil
		})

	r.Register(Type{ID: "HtmlExtract", Label: "HTML Extract", Category: "transform", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "selector", Type: "string", Required: true},
			{Name: "mode", Type: "string"},
		}},
		func(config interface{}, secrets Secrets) (nodes.Node, error) {
			var cfg struct {
				Selector string `json:"selector"`
				Mode     string `json:"mode"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Selector == "" {
				return nil, fmt.Errorf("registry: html extract: selector is required")
			}
			mode := cfg.Mode
			if mode == "" {
				mode = "text"
			}
			return nodes.HtmlExtract{Cfg: nodes.HtmlExtractConfig{Selector: cfg.Selector, Mode: mode}}, nil
		})
}

func emailProvider(provider string, secrets Secrets) (communication.EmailProvider, error) {
	switch provider {
	case "sendgrid":
		return email.NewSendGridProvider(secrets["sendgrid_api_key"]), nil
	case "mailgun":
		return email.NewMailgunProvider(secrets["mailgun_domain"], secrets["mailgun_api_key"]), nil
	case "ses":
		return email.NewSESProvider(secrets["aws_region"])
	case "smtp":
		return email.NewSMTPProvider(secrets["smtp_host"], 587, secrets["smtp_username"], secrets["smtp_password"], true), nil
	default:
		return nil, fmt.Errorf("registry: unknown email provider %q", provider)
	}
}

func smsProvider(provider string, secrets Secrets) (communication.SMSProvider, error) {
	switch provider {
	case "twilio":
		return sms.NewTwilioProvider(secrets["twilio_account_sid"], secrets["twilio_auth_token"]), nil
	case "sns":
		return sms.NewSNSProvider(secrets["aws_region"])
	case "messagebird":
		return sms.NewMessageBirdProvider(secrets["messagebird_api_key"]), nil
	default:
		return nil, fmt.Errorf("registry: unknown sms provider %q", provider)
	}
}

func fileStorage(provider string, secrets Secrets) (storage.FileStorage, error) {
	switch provider {
	case "s3":
		return storage.NewS3Storage(secrets["aws_region"], secrets["aws_access_key_id"], secrets["aws_secret_access_key"])
	case "gcs":
		return storage.NewGCSStorage(context.Background(), secrets["gcp_project_id"], secrets["gcp_credentials_json"])
	case "azure":
		return storage.NewAzureBlobStorage(secrets["azure_account_name"], secrets["azure_account_key"])
	default:
		return nil, fmt.Errorf("registry: unknown storage provider %q", provider)
	}
}

// consoleWriter is ConsoleOutput's default sink target, overridable by a
// caller that constructs the node directly instead of going through the
// registry (see engine tests).
var consoleWriter io.Writer = os.Stdout
