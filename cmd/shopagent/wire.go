package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/dshills/shopagent/assistant"
	"github.com/dshills/shopagent/catalog"
	"github.com/dshills/shopagent/config"
	"github.com/dshills/shopagent/graph"
	"github.com/dshills/shopagent/graph/emit"
	"github.com/dshills/shopagent/graph/model"
	"github.com/dshills/shopagent/graph/model/anthropic"
	"github.com/dshills/shopagent/graph/model/google"
	"github.com/dshills/shopagent/graph/model/openai"
	"github.com/dshills/shopagent/graph/store"
	"github.com/dshills/shopagent/graph/tool"
)

// runtime is a fully wired assistant plus the resources it holds.
type runtime struct {
	assistant *assistant.Assistant
	registry  *prometheus.Registry
	costs     *graph.CostTracker
	health    func(context.Context) error
	closers   []func() error
}

// Close releases resources in reverse acquisition order.
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func (r *runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// build wires the assistant from configuration.
func (a *app) build(ctx context.Context) (_ *runtime, err error) {
	cfg := a.cfg
	rt := &runtime{
		registry: prometheus.NewRegistry(),
		costs:    graph.NewCostTracker(),
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	st, err := openStore(cfg.Store, rt)
	if err != nil {
		return nil, err
	}

	chat, err := newChatModel(cfg.LLM, cfg.LLM.Model)
	if err != nil {
		return nil, err
	}

	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	emitters := emit.Multi{emit.NewLogEmitter(a.logger)}
	if cfg.Telemetry.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Telemetry)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() error { return tp.Shutdown(context.Background()) })
		emitters = append(emitters, emit.NewOTelEmitter(tp.Tracer("github.com/dshills/shopagent")))
	}

	opts := []assistant.Option{
		assistant.WithLogger(a.logger),
		assistant.WithEmitter(emitters),
		assistant.WithMetrics(graph.NewPrometheusMetrics(rt.registry)),
		assistant.WithCostTracker(rt.costs),
		assistant.WithNodeTimeout(cfg.Engine.NodeTimeout),
	}

	for agent, name := range cfg.LLM.Agents {
		m, err := newChatModel(cfg.LLM, name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, assistant.WithAgentModel(agent, m))
	}

	if cfg.Engine.PromptDir != "" {
		prompts, err := assistant.LoadPromptDir(cfg.Engine.PromptDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, assistant.WithPrompts(prompts))
	}

	for _, agent := range assistant.Specialists {
		endpoints := cfg.Tools[agent]
		httpTools := httpToolsFor(agent, cfg.HTTPTools)
		if len(endpoints) == 0 && len(httpTools) == 0 {
			continue
		}
		reg, err := connectTools(ctx, endpoints, httpTools, rt)
		if err != nil {
			return nil, fmt.Errorf("%s tools: %w", agent, err)
		}
		a.logger.Info("tools discovered", zap.String("agent", agent), zap.Strings("tools", reg.Names()))
		opts = append(opts, assistant.WithTools(agent, reg))
	}

	if cfg.Qdrant.Host != "" {
		lookup, err := catalog.NewQdrantLookup(catalog.Config{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		})
		if err != nil {
			return nil, err
		}
		rt.onClose(lookup.Close)
		opts = append(opts, assistant.WithLookup(lookup))
	}

	rt.assistant, err = assistant.New(chat, st, opts...)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// pinger is implemented by stores backed by a network service.
type pinger interface {
	Ping(ctx context.Context) error
}

func openStore(cfg config.StoreConfig, rt *runtime) (store.Store[assistant.State], error) {
	var st store.Store[assistant.State]
	switch cfg.Driver {
	case "memory":
		st = store.NewMemStore[assistant.State]()
	case "sqlite":
		s, err := store.NewSQLiteStore[assistant.State](cfg.DSN)
		if err != nil {
			return nil, err
		}
		rt.onClose(s.Close)
		st = s
	case "mysql":
		s, err := store.NewMySQLStore[assistant.State](cfg.DSN)
		if err != nil {
			return nil, err
		}
		rt.onClose(s.Close)
		st = s
	case "redis":
		var opts []store.RedisOption
		if cfg.KeyPrefix != "" {
			opts = append(opts, store.WithKeyPrefix(cfg.KeyPrefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, store.WithThreadTTL(cfg.TTL))
		}
		s := store.NewRedisStore[assistant.State](cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		rt.onClose(s.Close)
		st = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if p, ok := st.(pinger); ok {
		rt.health = p.Ping
	}
	return st, nil
}

func newChatModel(cfg config.LLMConfig, name string) (model.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithJSONMode(), openai.WithTemperature(cfg.Temperature)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.NewChatModel(cfg.APIKey, name, opts...), nil
	case "anthropic":
		return anthropic.NewChatModel(cfg.APIKey, name, anthropic.WithTemperature(cfg.Temperature)), nil
	case "google":
		return google.NewChatModel(cfg.APIKey, name, google.WithJSONMode(), google.WithTemperature(float32(cfg.Temperature))), nil
	case "mock":
		return offlineModel{}, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

const offlineAnswer = `{"next_agent":"","plan":[],"final_answer":true,"answer":"The assistant is running in offline mode; configure llm.provider to get real answers."}`

// offlineModel answers every question directly from the coordinator. It
// lets the binary run end to end without a provider account.
type offlineModel struct{}

func (offlineModel) Chat(ctx context.Context, _ []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}
	return model.ChatOut{Text: offlineAnswer, Model: "mock"}, nil
}

// connectTools opens one MCP session per endpoint and registers every tool
// the servers offer next to the configured HTTP tools.
func connectTools(ctx context.Context, endpoints []string, httpTools []tool.Tool, rt *runtime) (*tool.Registry, error) {
	tools := append([]tool.Tool(nil), httpTools...)
	for _, endpoint := range endpoints {
		session, err := tool.ConnectMCP(ctx, "shopagent", version, endpoint, nil)
		if err != nil {
			return nil, err
		}
		rt.onClose(session.Close)
		discovered, err := tool.DiscoverMCPTools(ctx, session)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", endpoint, err)
		}
		for _, t := range discovered {
			tools = append(tools, t)
		}
	}
	return tool.NewRegistry(tools...)
}

func httpToolsFor(agent string, configured []config.HTTPToolConfig) []tool.Tool {
	var tools []tool.Tool
	for _, h := range configured {
		if h.Agent != agent {
			continue
		}
		var opts []tool.HTTPOption
		for k, v := range h.Headers {
			opts = append(opts, tool.WithHeader(k, v))
		}
		spec := model.ToolSpec{Name: h.Name, Description: h.Description, Schema: h.Parameters}
		tools = append(tools, tool.NewHTTPTool(spec, h.URL, opts...))
	}
	return tools
}

func newTracerProvider(ctx context.Context, cfg config.TelemetryConfig) (*sdktrace.TracerProvider, error) {
	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", version),
		)),
	), nil
}
