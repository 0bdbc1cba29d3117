package roleplay

import (
	"fmt"

	"github.com/zoobzio/rehearsal"
)

// Call site identifiers.
const (
	CallInitialSimulation = "initial_simulation"
	CallSimulation        = "simulation"
	CallHint              = "hint"
	CallAnalysis          = "analysis"
)

// Union alternatives of analysis_result.
const (
	VariantGuide  = "guide"
	VariantReport = "report"
)

func emotionState(name string) rehearsal.Field {
	return rehearsal.Object(name,
		rehearsal.Integer("anger", 0, 100),
		rehearsal.Integer("disgust", 0, 100),
		rehearsal.Integer("fear", 0, 100),
		rehearsal.Integer("joy", 0, 100),
		rehearsal.Integer("sadness", 0, 100),
		rehearsal.Integer("surprise", 0, 100),
	)
}

func simulationFields() []rehearsal.Field {
	return []rehearsal.Field{
		rehearsal.String("action").Describe("What the actor says or does this turn, in character"),
		rehearsal.Object("emotion_change",
			emotionState("new_emotion_state").Describe("The actor's full emotional state after this turn"),
			rehearsal.Optional(rehearsal.String("reason")),
		),
		rehearsal.StringList("decision_points").Describe("Moments in the exchange where the trainee's choice mattered"),
		rehearsal.String("dialogue_analysis"),
		rehearsal.Optional(rehearsal.String("thought_process")),
	}
}

// Descriptors returns the role-play call sites.
func Descriptors() []*rehearsal.Descriptor {
	return []*rehearsal.Descriptor{
		rehearsal.NewDescriptor(CallInitialSimulation, simulationFields()...),
		rehearsal.NewDescriptor(CallSimulation, simulationFields()...),
		rehearsal.NewDescriptor(CallHint,
			rehearsal.String("hint_message").Describe("One concrete suggestion for the trainee's next line"),
		),
		rehearsal.NewDescriptor(CallAnalysis,
			rehearsal.Enum("analysis_type", AnalysisReflectionGuide, AnalysisFinalReport),
			rehearsal.OneOf("analysis_result",
				rehearsal.Alt(VariantGuide, rehearsal.StringList("guide")),
				rehearsal.Alt(VariantReport, rehearsal.Object("report",
					rehearsal.String("summary"),
					rehearsal.String("emotion_trend"),
					rehearsal.StringList("learning_points"),
					rehearsal.String("next_steps"),
					rehearsal.Optional(rehearsal.Integer("score", 0, 100)),
				)),
			),
		),
	}
}

// NewRegistry registers every role-play call site.
func NewRegistry() (*rehearsal.Registry, error) {
	registry, err := rehearsal.NewRegistry(Descriptors()...)
	if err != nil {
		return nil, err
	}
	if err := bindAll(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// bindAll confirms each result type can receive its call site's payload.
func bindAll(registry *rehearsal.Registry) error {
	checks := []struct {
		callSite string
		bind     func(*rehearsal.Descriptor) error
	}{
		{CallInitialSimulation, rehearsal.Bind[SimulationResult]},
		{CallSimulation, rehearsal.Bind[SimulationResult]},
		{CallHint, rehearsal.Bind[HintResult]},
		{CallAnalysis, rehearsal.Bind[analysisPayload]},
	}
	for _, c := range checks {
		d, err := registry.Describe(c.callSite)
		if err != nil {
			return err
		}
		if err := c.bind(d); err != nil {
			return fmt.Errorf("roleplay: %w", err)
		}
	}
	return nil
}
