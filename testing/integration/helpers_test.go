package integration

import (
	"testing"

	"github.com/zoobzio/rehearsal"
	"github.com/zoobzio/rehearsal/roleplay"
	rtesting "github.com/zoobzio/rehearsal/testing"
)

var rules = roleplay.Rules{
	SceneDescription: "A tenant calls about a heating failure for the third time this week.",
	CoreEmotion:      "frustration",
	ActorName:        "Dana",
	ActorRules:       "Raises their voice when told to wait. Softens when given a concrete time.",
}

// turn builds a valid simulation answer.
func turn(action string, anger int) string {
	return rtesting.NewResponseBuilder().
		WithAction(action).
		WithEmotions(anger, 5, 0, 10, 20, 0).
		WithDecisionPoints("offer a concrete repair time").
		WithDialogueAnalysis("the trainee acknowledged the problem").
		Fenced("Here is the next turn.").
		Build()
}

func hint(text string) string {
	return rtesting.NewResponseBuilder().WithHint(text).Build()
}

func guide(questions ...string) string {
	return rtesting.NewResponseBuilder().
		WithField("analysis_type", roleplay.AnalysisReflectionGuide).
		WithField("analysis_result", questions).
		Build()
}

func report(score int) string {
	return rtesting.NewResponseBuilder().
		WithField("analysis_type", roleplay.AnalysisFinalReport).
		WithField("analysis_result", map[string]any{
			"summary":         "The trainee de-escalated the call.",
			"emotion_trend":   "anger fell steadily",
			"learning_points": []string{"name a time", "avoid 'calm down'"},
			"next_steps":      "practise with a harder caller",
			"score":           score,
		}).
		Build()
}

func newService(t *testing.T, invoker rehearsal.Invoker, policy rehearsal.Policy, opts ...rehearsal.Option) *roleplay.Service {
	t.Helper()
	registry, err := roleplay.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	engine := rehearsal.New(invoker, registry, opts...).WithPolicy(policy)
	svc, err := roleplay.NewService(engine)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

// fast retries without waiting.
var fast = rehearsal.Policy{MaxAttempts: 3}
