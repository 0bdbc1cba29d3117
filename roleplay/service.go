// Package roleplay wires the rehearsal engine to the call sites of a
// conversation training backend: an actor that answers the trainee in
// character, a coach that gives hints, and an analyst that writes the
// reflection guide and final report.
package roleplay

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/zoobzio/rehearsal"
)

//go:embed prompts/*.txt
var defaultPrompts embed.FS

var (
	// ErrInvalidRequest is returned before any backend call when a request
	// is missing required input.
	ErrInvalidRequest = errors.New("invalid role-play request")
)

// Template names; each lives at prompts/<name>.txt.
const (
	promptInitialSimulation = "initial_simulation"
	promptSimulation        = "simulation"
	promptHint              = "hint"
	promptReflectionGuide   = "reflection_guide"
	promptFinalReport       = "final_report"
)

var promptNames = []string{
	promptInitialSimulation,
	promptSimulation,
	promptHint,
	promptReflectionGuide,
	promptFinalReport,
}

// Service renders prompts, runs them through the engine, and decodes the
// validated payloads into typed results.
type Service struct {
	engine    *rehearsal.Engine
	templates map[string]*rehearsal.Template
	schemas   map[string]string
	runOpts   []rehearsal.RunOption
}

type serviceConfig struct {
	prompts fs.FS
	runOpts []rehearsal.RunOption
}

// Option configures a Service.
type Option func(*serviceConfig)

// WithPrompts replaces the embedded templates. fsys must contain
// prompts/<name>.txt for every template.
func WithPrompts(fsys fs.FS) Option {
	return func(c *serviceConfig) { c.prompts = fsys }
}

// WithRunOptions applies per-run overrides to every call the service makes.
func WithRunOptions(opts ...rehearsal.RunOption) Option {
	return func(c *serviceConfig) { c.runOpts = append(c.runOpts, opts...) }
}

// NewService builds a service on engine. The engine's registry must hold
// every role-play call site, typically via NewRegistry.
func NewService(engine *rehearsal.Engine, opts ...Option) (*Service, error) {
	cfg := serviceConfig{prompts: defaultPrompts}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := bindAll(engine.Registry()); err != nil {
		return nil, err
	}

	schemas := make(map[string]string, 4)
	for _, callSite := range []string{CallInitialSimulation, CallSimulation, CallHint, CallAnalysis} {
		d, err := engine.Registry().Describe(callSite)
		if err != nil {
			return nil, err
		}
		schema, err := json.MarshalIndent(d.JSONSchema(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("roleplay: encode schema for %s: %w", callSite, err)
		}
		schemas[callSite] = string(schema)
	}

	templates := make(map[string]*rehearsal.Template, len(promptNames))
	for _, name := range promptNames {
		tmpl, err := rehearsal.LoadTemplate(cfg.prompts, "prompts/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("roleplay: %w", err)
		}
		templates[name] = tmpl
	}

	return &Service{
		engine:    engine,
		templates: templates,
		schemas:   schemas,
		runOpts:   cfg.runOpts,
	}, nil
}

// Simulate produces the actor's next turn. A request whose user message is
// StartMarker opens the scenario instead and only needs Rules.
func (s *Service) Simulate(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	out, _, err := s.simulate(ctx, req)
	return out, err
}

func (s *Service) simulate(ctx context.Context, req SimulationRequest) (*SimulationResult, *rehearsal.Result, error) {
	if !req.Rules.Complete() {
		return nil, nil, fmt.Errorf("%w: every rule field is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return nil, nil, fmt.Errorf("%w: user message is required", ErrInvalidRequest)
	}

	if req.UserMessage == StartMarker {
		prompt, err := s.render(promptInitialSimulation, CallInitialSimulation, map[string]string{
			"RULES": encode(req.Rules),
		})
		if err != nil {
			return nil, nil, err
		}
		return run[SimulationResult](ctx, s, prompt, CallInitialSimulation)
	}

	prompt, err := s.render(promptSimulation, CallSimulation, map[string]string{
		"RULES":         encode(req.Rules),
		"CURRENT_STATE": encode(req.CurrentState),
		"CHAT_LOG":      encodeLog(req.ChatLog),
		"USER_MESSAGE":  req.UserMessage,
	})
	if err != nil {
		return nil, nil, err
	}
	return run[SimulationResult](ctx, s, prompt, CallSimulation)
}

// Hint produces one coaching message for the trainee.
func (s *Service) Hint(ctx context.Context, req HintRequest) (*HintResult, error) {
	out, _, err := s.hint(ctx, req)
	return out, err
}

func (s *Service) hint(ctx context.Context, req HintRequest) (*HintResult, *rehearsal.Result, error) {
	if !req.Rules.Complete() {
		return nil, nil, fmt.Errorf("%w: every rule field is required", ErrInvalidRequest)
	}
	prompt, err := s.render(promptHint, CallHint, map[string]string{
		"RULES":         encode(req.Rules),
		"CURRENT_STATE": encode(req.CurrentState),
		"CHAT_LOG":      encodeLog(req.ChatLog),
	})
	if err != nil {
		return nil, nil, err
	}
	return run[HintResult](ctx, s, prompt, CallHint)
}

// Analyze produces a reflection guide or a final report depending on
// req.AnalysisType. Unknown types fail with ErrInvalidRequest before any
// backend call.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	out, _, err := s.analyze(ctx, req)
	return out, err
}

func (s *Service) analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, *rehearsal.Result, error) {
	var template, variant string
	switch req.AnalysisType {
	case AnalysisReflectionGuide:
		template, variant = promptReflectionGuide, VariantGuide
	case AnalysisFinalReport:
		template, variant = promptFinalReport, VariantReport
	default:
		return nil, nil, fmt.Errorf("%w: unknown analysis type %q", ErrInvalidRequest, req.AnalysisType)
	}
	if !req.Rules.Complete() {
		return nil, nil, fmt.Errorf("%w: every rule field is required", ErrInvalidRequest)
	}

	prompt, err := s.render(template, CallAnalysis, map[string]string{
		"RULES":           encode(req.Rules),
		"CHAT_LOG":        encodeLog(req.ChatLog),
		"INITIAL_STATE":   encode(req.InitialState),
		"FINAL_STATE":     encode(req.FinalState),
		"USER_REFLECTION": req.UserReflection,
	})
	if err != nil {
		return nil, nil, err
	}

	// An answer for the other analysis type is retried like any bad payload.
	opts := append([]rehearsal.RunOption{
		rehearsal.WithValue("analysis_type", req.AnalysisType),
		rehearsal.WithVariant("analysis_result", variant),
	}, s.runOpts...)
	result, err := s.engine.Run(ctx, prompt, CallAnalysis, opts...)
	if err != nil {
		return nil, nil, err
	}

	out := &AnalysisResult{Type: req.AnalysisType}
	if variant == VariantGuide {
		var payload struct {
			AnalysisResult []string `json:"analysis_result"`
		}
		if err := result.Decode(&payload); err != nil {
			return nil, result, err
		}
		out.Guide = payload.AnalysisResult
	} else {
		var payload struct {
			AnalysisResult FinalReport `json:"analysis_result"`
		}
		if err := result.Decode(&payload); err != nil {
			return nil, result, err
		}
		out.Report = &payload.AnalysisResult
	}
	return out, result, nil
}

func (s *Service) render(template, callSite string, values map[string]string) (string, error) {
	values["SCHEMA"] = s.schemas[callSite]
	prompt, err := s.templates[template].Render(values)
	if err != nil {
		return "", fmt.Errorf("roleplay: %w", err)
	}
	return prompt, nil
}

func run[T any](ctx context.Context, s *Service, prompt, callSite string) (*T, *rehearsal.Result, error) {
	result, err := s.engine.Run(ctx, prompt, callSite, s.runOpts...)
	if err != nil {
		return nil, nil, err
	}
	var out T
	if err := result.Decode(&out); err != nil {
		return nil, result, err
	}
	return &out, result, nil
}

// encode renders v as compact JSON without HTML escaping so non-ASCII and
// markup in chat text reach the model verbatim.
func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func encodeLog(log []ChatMessage) string {
	if len(log) == 0 {
		return "[]"
	}
	return encode(log)
}
