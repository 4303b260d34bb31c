package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// scope is the instrumentation scope every engine span records under.
const scope = "flowgraph/engine"

// withSpan runs fn under a span named name, marking the span failed
// when fn errors. All the Trace* helpers below reduce to this; they
// exist so call sites name their unit of work once and the attribute
// vocabulary stays consistent across the executor and node library.
func withSpan(ctx context.Context, name string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(scope).Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// withSpanValue is withSpan for callbacks that also produce a value.
func withSpanValue(ctx context.Context, name string, attrs []attribute.KeyValue, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	var out interface{}
	err := withSpan(ctx, name, attrs, func(ctx context.Context) error {
		var fnErr error
		out, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TraceWorkflowExecution spans one whole engine.Run.
func TraceWorkflowExecution(ctx context.Context, workflowID, executionID string, fn func(context.Context) error) error {
	return withSpan(ctx, "workflow.run", []attribute.KeyValue{
		attribute.String("workflow.id", workflowID),
		attribute.String("workflow.execution_id", executionID),
	}, fn)
}

// TraceNodeExecution spans a single node task's Run call.
func TraceNodeExecution(ctx context.Context, nodeID, nodeType string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return withSpanValue(ctx, "workflow.node", []attribute.KeyValue{
		attribute.String("node.id", nodeID),
		attribute.String("node.type", nodeType),
	}, fn)
}

// TraceHTTPAction spans one outbound HttpRequest call.
func TraceHTTPAction(ctx context.Context, method, url string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return withSpanValue(ctx, "workflow.http", []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	}, fn)
}

// TraceRetryAttempt spans one attempt inside HttpRequest's retry loop,
// so a flaky endpoint shows up as a fan of failed attempts under one
// http span rather than one opaque slow call.
func TraceRetryAttempt(ctx context.Context, nodeID string, attempt, maxRetries int, fn func(context.Context) error) error {
	return withSpan(ctx, "workflow.http.attempt", []attribute.KeyValue{
		attribute.String("node.id", nodeID),
		attribute.Int("attempt", attempt),
		attribute.Int("max_retries", maxRetries),
	}, fn)
}

// TraceSubWorkflow spans one ExecuteWorkflow/Loop invocation of a
// nested workflow.
func TraceSubWorkflow(ctx context.Context, parentPath, childPath string, depth int, fn func(context.Context) error) error {
	return withSpan(ctx, "workflow.child", []attribute.KeyValue{
		attribute.String("workflow.parent", parentPath),
		attribute.String("workflow.child", childPath),
		attribute.Int("workflow.depth", depth),
	}, fn)
}

// TraceLoopIteration spans one Loop iteration.
func TraceLoopIteration(ctx context.Context, path string, iteration int, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return withSpanValue(ctx, "workflow.loop.iteration", []attribute.KeyValue{
		attribute.String("workflow.child", path),
		attribute.Int("iteration", iteration),
	}, fn)
}
