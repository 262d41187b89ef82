package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span.
//
// Span names are the event kinds. Standard attributes:
//   - shopagent.thread_id, shopagent.run_id, shopagent.step, shopagent.node_id
//
// LLM usage keys in Meta are mapped onto shopagent.llm.* attributes so the
// tracing backend can aggregate token counts and cost per model. Failure
// events set the span status to Error.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter that records spans with tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit implements Emitter.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("shopagent.thread_id", event.ThreadID),
		attribute.String("shopagent.run_id", event.RunID),
		attribute.Int("shopagent.step", event.Step),
		attribute.String("shopagent.node_id", event.NodeID),
	)
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute(key, value))
	}

	if msg, ok := event.Meta["error"].(string); ok && event.IsFailure() {
		span.SetStatus(codes.Error, msg)
		span.RecordError(fmt.Errorf("%s", msg))
	}
}

var metaKeys = map[string]string{
	"model":      "shopagent.llm.model",
	"tokens_in":  "shopagent.llm.tokens_in",
	"tokens_out": "shopagent.llm.tokens_out",
	"cost_usd":   "shopagent.llm.cost_usd",
	"latency_ms": "shopagent.node.latency_ms",
	"trace_id":   "shopagent.trace_id",
}

func metaAttribute(key string, value interface{}) attribute.KeyValue {
	if mapped, ok := metaKeys[key]; ok {
		key = mapped
	} else {
		key = "shopagent.meta." + key
	}

	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case time.Duration:
		return attribute.Int64(key, int64(v/time.Millisecond))
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
