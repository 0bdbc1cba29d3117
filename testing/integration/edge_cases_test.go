package integration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zoobzio/rehearsal"
	"github.com/zoobzio/rehearsal/roleplay"
	rtesting "github.com/zoobzio/rehearsal/testing"
)

func TestEdgeCase_LongChatLog(t *testing.T) {
	recorder := rtesting.NewCallRecorder(rtesting.NewSequencedInvoker(hint("wrap up")))
	svc := newService(t, recorder, fast)

	log := make([]roleplay.ChatMessage, 500)
	for i := range log {
		log[i] = roleplay.ChatMessage{Sender: roleplay.SenderUser, Text: "again"}
	}
	if _, err := svc.Hint(context.Background(), roleplay.HintRequest{ChatLog: log, Rules: rules}); err != nil {
		t.Fatalf("Hint failed: %v", err)
	}
	if n := strings.Count(recorder.LastCall().Prompt, `"text":"again"`); n != 500 {
		t.Errorf("expected every message in the prompt, got %d", n)
	}
}

func TestEdgeCase_VeryLongMessage(t *testing.T) {
	recorder := rtesting.NewCallRecorder(rtesting.NewSequencedInvoker(turn("That was a lot.", 20)))
	svc := newService(t, recorder, fast)

	message := strings.Repeat("I understand. ", 5000)
	_, err := svc.Simulate(context.Background(), roleplay.SimulationRequest{Rules: rules, UserMessage: message})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if !strings.Contains(recorder.LastCall().Prompt, message) {
		t.Error("message should reach the prompt intact")
	}
}

func TestEdgeCase_EmptyInput(t *testing.T) {
	invoker := rtesting.NewSequencedInvoker(turn("Hello?", 20))
	svc := newService(t, invoker, fast)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := svc.Simulate(context.Background(), roleplay.SimulationRequest{Rules: rules, UserMessage: msg})
		if !errors.Is(err, roleplay.ErrInvalidRequest) {
			t.Errorf("message %q: expected ErrInvalidRequest, got %v", msg, err)
		}
	}
	if invoker.CallCount() != 0 {
		t.Errorf("invalid requests must not reach the backend, got %d calls", invoker.CallCount())
	}
}

func TestEdgeCase_UnicodeInput(t *testing.T) {
	recorder := rtesting.NewCallRecorder(rtesting.NewSequencedInvoker(turn("괜찮아요. 😊", 10)))
	svc := newService(t, recorder, fast)

	out, err := svc.Simulate(context.Background(), roleplay.SimulationRequest{
		Rules:       rules,
		UserMessage: "정말 죄송합니다 <곧> 해결해 드릴게요 & 약속해요",
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if out.Action != "괜찮아요. 😊" {
		t.Errorf("unexpected action %q", out.Action)
	}
	prompt := recorder.LastCall().Prompt
	if !strings.Contains(prompt, "<곧>") || strings.Contains(prompt, `\u003c`) {
		t.Error("prompt should carry unescaped text")
	}
}

func TestEdgeCase_MalformedJSONResponse(t *testing.T) {
	invoker := rtesting.NewSequencedInvoker("```json\n{\"hint_message\": \"unterminated\n```")
	svc := newService(t, invoker, rehearsal.Policy{MaxAttempts: 2})

	_, err := svc.Hint(context.Background(), roleplay.HintRequest{Rules: rules})
	if !errors.Is(err, rehearsal.ErrMalformedJSON) {
		t.Fatalf("expected malformed JSON as the last reason, got %v", err)
	}
	var exhausted *rehearsal.ExhaustedError
	if errors.As(err, &exhausted) && len(exhausted.History) != 2 {
		t.Errorf("expected 2 recorded attempts, got %d", len(exhausted.History))
	}
}

func TestEdgeCase_PartiallyValidResponse(t *testing.T) {
	// Missing dialogue_analysis
	partial := rtesting.NewResponseBuilder().
		WithAction("Fine.").
		WithEmotions(10, 10, 10, 10, 10, 10).
		WithDecisionPoints("none").
		Build()
	svc := newService(t, rtesting.NewSequencedInvoker(partial), rehearsal.Policy{MaxAttempts: 1})

	_, err := svc.Simulate(context.Background(), roleplay.SimulationRequest{Rules: rules, UserMessage: "hi"})
	var violation *rehearsal.SchemaViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected a schema violation, got %v", err)
	}
	if violation.Field != "dialogue_analysis" {
		t.Errorf("expected dialogue_analysis to be reported, got %q", violation.Field)
	}
}

func TestEdgeCase_ExtraFieldsInResponse(t *testing.T) {
	extra := rtesting.NewResponseBuilder().
		WithHint("name the repair time").
		WithField("confidence", 0.9).
		WithField("internal_notes", []string{"x"}).
		Build()
	svc := newService(t, rtesting.NewSequencedInvoker(extra), fast)

	out, err := svc.Hint(context.Background(), roleplay.HintRequest{Rules: rules})
	if err != nil {
		t.Fatalf("extra fields should be ignored, got %v", err)
	}
	if out.HintMessage != "name the repair time" {
		t.Errorf("unexpected hint %q", out.HintMessage)
	}
}

func TestEdgeCase_NullFieldsInResponse(t *testing.T) {
	t.Run("required null", func(t *testing.T) {
		svc := newService(t, rtesting.NewSequencedInvoker(`{"hint_message": null}`), rehearsal.Policy{MaxAttempts: 1})
		_, err := svc.Hint(context.Background(), roleplay.HintRequest{Rules: rules})
		if !errors.Is(err, rehearsal.ErrSchemaViolation) {
			t.Errorf("expected schema violation, got %v", err)
		}
	})

	t.Run("optional null", func(t *testing.T) {
		answer := rtesting.NewResponseBuilder().
			WithAction("Okay.").
			WithEmotions(10, 0, 0, 50, 0, 0).
			WithDecisionPoints("agreed").
			WithDialogueAnalysis("calm").
			WithField("thought_process", nil).
			Build()
		svc := newService(t, rtesting.NewSequencedInvoker(answer), rehearsal.Policy{MaxAttempts: 1})
		out, err := svc.Simulate(context.Background(), roleplay.SimulationRequest{Rules: rules, UserMessage: "hi"})
		if err != nil {
			t.Fatalf("optional null should pass, got %v", err)
		}
		if out.ThoughtProcess != "" {
			t.Errorf("expected empty thought process, got %q", out.ThoughtProcess)
		}
	})
}

func TestEdgeCase_EmotionBoundaries(t *testing.T) {
	tests := []struct {
		anger int
		ok    bool
	}{
		{0, true},
		{100, true},
		{-1, false},
		{101, false},
	}
	for _, tt := range tests {
		svc := newService(t, rtesting.NewSequencedInvoker(turn("...", tt.anger)), rehearsal.Policy{MaxAttempts: 1})
		out, err := svc.Simulate(context.Background(), roleplay.SimulationRequest{Rules: rules, UserMessage: "hi"})
		if tt.ok {
			if err != nil {
				t.Errorf("anger %d: expected success, got %v", tt.anger, err)
				continue
			}
			if out.EmotionChange.NewEmotionState.Anger != tt.anger {
				t.Errorf("anger %d: value was altered to %d", tt.anger, out.EmotionChange.NewEmotionState.Anger)
			}
			continue
		}
		var violation *rehearsal.SchemaViolation
		if !errors.As(err, &violation) || violation.Field != "emotion_change.new_emotion_state.anger" {
			t.Errorf("anger %d: expected violation on anger, got %v", tt.anger, err)
		}
	}
}

func TestEdgeCase_ScenarioTruncate(t *testing.T) {
	svc := newService(t, rtesting.NewSequencedInvoker(turn("Mm.", 30)), fast)
	ctx := context.Background()

	sc, _, err := svc.Start(ctx, rules)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := svc.Respond(ctx, sc, "next"); err != nil {
			t.Fatalf("Respond failed: %v", err)
		}
	}

	tests := []struct {
		name        string
		first, last int
		wantLen     int
		wantErr     bool
		wantFirst   string
	}{
		{"negative", -1, 2, 11, true, roleplay.SenderActor},
		{"keep everything", 6, 6, 11, false, roleplay.SenderActor},
		{"opening and tail", 1, 4, 5, false, roleplay.SenderActor},
		{"tail only", 0, 2, 2, false, roleplay.SenderUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sc.Truncate(tt.first, tt.last)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if sc.Len() != tt.wantLen {
				t.Errorf("expected %d messages, got %d", tt.wantLen, sc.Len())
			}
			first, _ := sc.At(0)
			if first.Sender != tt.wantFirst {
				t.Errorf("expected %s first, got %+v", tt.wantFirst, first)
			}
		})
	}
}

func TestEdgeCase_ScenarioAtOutOfBounds(t *testing.T) {
	sc := roleplay.NewScenario(rules)
	for _, i := range []int{-1, 0, 1} {
		if _, err := sc.At(i); err == nil {
			t.Errorf("At(%d) on an empty scenario should fail", i)
		}
	}
}

func TestEdgeCase_AnalysisTypeUnknown(t *testing.T) {
	invoker := rtesting.NewSequencedInvoker(report(90))
	svc := newService(t, invoker, fast)

	for _, typ := range []string{"", "summary", "FINAL_REPORT"} {
		_, err := svc.Analyze(context.Background(), roleplay.AnalysisRequest{AnalysisType: typ, Rules: rules})
		if !errors.Is(err, roleplay.ErrInvalidRequest) {
			t.Errorf("type %q: expected ErrInvalidRequest, got %v", typ, err)
		}
	}
	if invoker.CallCount() != 0 {
		t.Errorf("expected no backend calls, got %d", invoker.CallCount())
	}
}
