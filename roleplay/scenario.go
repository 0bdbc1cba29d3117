package roleplay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/rehearsal"
)

// Scenario keeps the running state of one rehearsal: the rules, the actor's
// initial and current emotional state, and the chat log.
//
// A Scenario only changes when a call succeeds, so a failed turn can be
// retried without cleanup. Scenarios are safe for concurrent use: accessors
// never block on a backend call, and turns sent through Respond run one at a
// time so each one builds on the state the previous one committed.
type Scenario struct {
	id           string
	rules        Rules
	initialState EmotionState
	currentState EmotionState
	chatLog      []ChatMessage
	reflection   string
	lastUsage    *rehearsal.TokenUsage
	mu           sync.RWMutex
	turn         sync.Mutex // held across one Respond call
}

// NewScenario creates an empty scenario with a unique ID. Most callers use
// Service.Start instead, which also asks the actor for its opening turn.
func NewScenario(rules Rules) *Scenario {
	return &Scenario{
		id:      uuid.New().String(),
		rules:   rules,
		chatLog: make([]ChatMessage, 0),
	}
}

// ID returns the unique identifier for this scenario.
func (s *Scenario) ID() string {
	return s.id
}

// Rules returns the scenario rules.
func (s *Scenario) Rules() Rules {
	return s.rules
}

// InitialState returns the actor's state after the opening turn.
func (s *Scenario) InitialState() EmotionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialState
}

// CurrentState returns the actor's latest state.
func (s *Scenario) CurrentState() EmotionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentState
}

// ChatLog returns a copy of the conversation.
func (s *Scenario) ChatLog() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := make([]ChatMessage, len(s.chatLog))
	copy(log, s.chatLog)
	return log
}

// Len returns the number of messages in the chat log.
func (s *Scenario) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chatLog)
}

// At returns the message at the given index.
func (s *Scenario) At(index int) (ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.chatLog) {
		return ChatMessage{}, fmt.Errorf("index %d out of bounds (len=%d)", index, len(s.chatLog))
	}
	return s.chatLog[index], nil
}

// Truncate keeps only the first keepFirst and the last keepLast messages.
// Long rehearsals use it to bound the chat log sent with every prompt.
func (s *Scenario) Truncate(keepFirst, keepLast int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepFirst < 0 || keepLast < 0 {
		return fmt.Errorf("keepFirst and keepLast must be non-negative")
	}

	total := len(s.chatLog)
	if keepFirst+keepLast >= total {
		return nil
	}

	kept := make([]ChatMessage, 0, keepFirst+keepLast)
	kept = append(kept, s.chatLog[:keepFirst]...)
	kept = append(kept, s.chatLog[total-keepLast:]...)
	s.chatLog = kept
	return nil
}

// Reflection returns the trainee's saved reflection.
func (s *Scenario) Reflection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reflection
}

// SetReflection saves the trainee's reflection for the final report.
func (s *Scenario) SetReflection(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reflection = text
}

// LastUsage returns the token usage of the most recent successful call, or nil.
func (s *Scenario) LastUsage() *rehearsal.TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUsage == nil {
		return nil
	}
	usage := *s.lastUsage
	return &usage
}

func (s *Scenario) setUsage(usage *rehearsal.TokenUsage) {
	if usage == nil {
		return
	}
	u := *usage
	s.mu.Lock()
	s.lastUsage = &u
	s.mu.Unlock()
}

// commit applies a successful turn.
func (s *Scenario) commit(state EmotionState, opening bool, msgs ...ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opening {
		s.initialState = state
	}
	s.currentState = state
	s.chatLog = append(s.chatLog, msgs...)
}

// Start opens a scenario: the actor sets its initial state and speaks first.
func (s *Service) Start(ctx context.Context, rules Rules) (*Scenario, *SimulationResult, error) {
	sc := NewScenario(rules)
	out, result, err := s.simulate(ctx, SimulationRequest{Rules: rules, UserMessage: StartMarker})
	if err != nil {
		return nil, nil, err
	}

	state := out.EmotionChange.NewEmotionState
	sc.commit(state, true, ChatMessage{Sender: SenderActor, Text: out.Action, Timestamp: time.Now()})
	sc.setUsage(result.Usage)
	return sc, out, nil
}

// Respond sends the trainee's message and records the actor's answer and
// new state. Nothing is recorded if the call fails. Concurrent turns on the
// same scenario are serialized.
func (s *Service) Respond(ctx context.Context, sc *Scenario, message string) (*SimulationResult, error) {
	if message == StartMarker {
		return nil, fmt.Errorf("%w: the start marker cannot be sent mid-scenario", ErrInvalidRequest)
	}

	sc.turn.Lock()
	defer sc.turn.Unlock()

	userMsg := ChatMessage{Sender: SenderUser, Text: message, Timestamp: time.Now()}
	out, result, err := s.simulate(ctx, SimulationRequest{
		CurrentState: sc.CurrentState(),
		Rules:        sc.Rules(),
		UserMessage:  message,
		ChatLog:      append(sc.ChatLog(), userMsg),
	})
	if err != nil {
		return nil, err
	}

	actorMsg := ChatMessage{Sender: SenderActor, Text: out.Action, Timestamp: time.Now()}
	sc.commit(out.EmotionChange.NewEmotionState, false, userMsg, actorMsg)
	sc.setUsage(result.Usage)
	return out, nil
}

// HintFor asks for a hint on the scenario's next trainee line.
func (s *Service) HintFor(ctx context.Context, sc *Scenario) (*HintResult, error) {
	out, result, err := s.hint(ctx, HintRequest{
		ChatLog:      sc.ChatLog(),
		CurrentState: sc.CurrentState(),
		Rules:        sc.Rules(),
	})
	if err != nil {
		return nil, err
	}
	sc.setUsage(result.Usage)
	return out, nil
}

// ReflectionGuide asks for reflection questions on the scenario so far.
func (s *Service) ReflectionGuide(ctx context.Context, sc *Scenario) (*AnalysisResult, error) {
	return s.analyzeScenario(ctx, sc, AnalysisReflectionGuide)
}

// FinalReport asks for the final report, including the saved reflection.
func (s *Service) FinalReport(ctx context.Context, sc *Scenario) (*AnalysisResult, error) {
	return s.analyzeScenario(ctx, sc, AnalysisFinalReport)
}

func (s *Service) analyzeScenario(ctx context.Context, sc *Scenario, analysisType string) (*AnalysisResult, error) {
	out, result, err := s.analyze(ctx, AnalysisRequest{
		AnalysisType:   analysisType,
		ChatLog:        sc.ChatLog(),
		InitialState:   sc.InitialState(),
		FinalState:     sc.CurrentState(),
		UserReflection: sc.Reflection(),
		Rules:          sc.Rules(),
	})
	if err != nil {
		return nil, err
	}
	sc.setUsage(result.Usage)
	return out, nil
}
