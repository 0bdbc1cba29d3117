// Command rehearsal runs one role-play call against the configured model
// backend. It reads the request JSON from stdin and prints the validated
// result JSON to stdout.
//
//	rehearsal -config rehearsal.yaml -call simulation < request.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/rehearsal"
	"github.com/zoobzio/rehearsal/config"
	"github.com/zoobzio/rehearsal/providers/anthropic"
	"github.com/zoobzio/rehearsal/providers/gemini"
	"github.com/zoobzio/rehearsal/providers/openai"
	"github.com/zoobzio/rehearsal/roleplay"
	"go.uber.org/zap"
)

// Calls accepted by -call.
const (
	callSimulation = "simulation"
	callHint       = "hint"
	callAnalysis   = "analysis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rehearsal", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "rehearsal.yaml", "Path to the YAML config file")
	call := flags.String("call", callSimulation, "Call to run: simulation, hint or analysis")
	debug := flags.Bool("debug", false, "Dump prompts and responses to stderr")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	observer := capitan.Observe(logEvent(logger))
	defer observer.Close()

	svc, err := newService(ctx, cfg, *debug, stderr)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return 1
	}

	out, err := dispatch(ctx, svc, *call, stdin)
	if err != nil {
		logger.Error("call failed", zap.String("call", *call), zap.Error(err))
		fmt.Fprintf(stderr, "%s: %v\n", *call, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "write result: %v\n", err)
		return 1
	}
	return 0
}

func newService(ctx context.Context, cfg config.Config, debug bool, stderr io.Writer) (*roleplay.Service, error) {
	invoker, err := newInvoker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := roleplay.NewRegistry()
	if err != nil {
		return nil, err
	}

	var opts []rehearsal.Option
	if debug {
		opts = append(opts, rehearsal.WithDebug(stderr))
	}
	engine := rehearsal.New(invoker, registry, opts...).WithPolicy(rehearsal.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		Delay:          cfg.Retry.Delay,
		AttemptTimeout: cfg.Retry.AttemptTimeout,
	})
	return roleplay.NewService(engine)
}

func newInvoker(ctx context.Context, cfg config.Config) (rehearsal.Invoker, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return gemini.New(ctx, gemini.Config{
			APIKey:      cfg.APIKey(),
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			JSONMode:    cfg.LLM.JSONMode,
		})
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:      cfg.APIKey(),
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			JSONMode:    cfg.LLM.JSONMode,
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.APIKey(),
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
}

func dispatch(ctx context.Context, svc *roleplay.Service, call string, stdin io.Reader) (any, error) {
	dec := json.NewDecoder(stdin)
	dec.DisallowUnknownFields()

	switch call {
	case callSimulation:
		var req roleplay.SimulationRequest
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		return svc.Simulate(ctx, req)
	case callHint:
		var req roleplay.HintRequest
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		return svc.Hint(ctx, req)
	case callAnalysis:
		var req roleplay.AnalysisRequest
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		return svc.Analyze(ctx, req)
	}
	return nil, errors.New("unknown call " + call)
}
