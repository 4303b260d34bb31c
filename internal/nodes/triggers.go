package nodes

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowgraph/runtime/internal/record"
)

// ManualTrigger emits a single null record — or the record injected into
// its port-0 input by a parent workflow — then terminates.
type ManualTrigger struct{}

func (ManualTrigger) Run(_ context.Context, inputs []In, outputs []Out) error {
	select {
	case injected, ok := <-inputs[0]:
		if ok {
			outputs[0] <- injected
			return nil
		}
	default:
	}
	outputs[0] <- record.Null
	return nil
}

// ChildWorkflowTrigger is the entry point a sub-workflow uses: it
// forwards whatever is injected into its input, or a null record if
// nothing was injected (the workflow run standalone).
type ChildWorkflowTrigger struct{}

func (ChildWorkflowTrigger) Run(_ context.Context, inputs []In, outputs []Out) error {
	select {
	case injected, ok := <-inputs[0]:
		if ok {
			outputs[0] <- injected
			return nil
		}
	default:
	}
	outputs[0] <- record.Null
	return nil
}

// TimeTriggerConfig configures TimeTrigger's schedule.
type TimeTriggerConfig struct {
	IntervalSeconds int    `json:"interval_seconds"`
	Cron            string `json:"cron"`
}

// TimeTrigger emits {timestamp, cron} on a cron schedule (or a fixed
// interval when Cron is empty) until its output closes.
type TimeTrigger struct {
	Cfg TimeTriggerConfig
}

func (t TimeTrigger) Run(ctx context.Context, _ []In, outputs []Out) error {
	interval := time.Duration(t.Cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	var schedule cron.Schedule
	if t.Cfg.Cron != "" {
		parsed, err := cron.ParseStandard(t.Cfg.Cron)
		if err != nil {
			return err
		}
		schedule = parsed
	}

	next := time.Now()
	for {
		if schedule != nil {
			next = schedule.Next(next)
		} else {
			next = next.Add(interval)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case now := <-timer.C:
			out := record.Map(map[string]record.Record{
				"timestamp": record.String(now.UTC().Format(time.RFC3339)),
				"cron":      record.String(t.Cfg.Cron),
			})
			select {
			case outputs[0] <- out:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// WebhookTriggerConfig configures the mock webhook trigger.
type WebhookTriggerConfig struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// WebhookTrigger is a single-shot mock: the core engine has no HTTP
// listener of its own, so it behaves like ManualTrigger, forwarding
// whatever a hosting server injected into its port-0 input (or null
// when run standalone, e.g. under test).
type WebhookTrigger struct {
	Cfg WebhookTriggerConfig
}

func (w WebhookTrigger) Run(_ context.Context, inputs []In, outputs []Out) error {
	select {
	case injected, ok := <-inputs[0]:
		if ok {
			outputs[0] <- injected
			return nil
		}
	default:
	}
	outputs[0] <- record.Null
	return nil
}
