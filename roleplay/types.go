package roleplay

import "time"

// StartMarker is the user message that opens a scenario. A simulation
// request carrying it is answered with the initial simulation prompt.
const StartMarker = "[시뮬레이션 시작]"

// Analysis types accepted by Analyze.
const (
	AnalysisReflectionGuide = "reflection_guide"
	AnalysisFinalReport     = "final_report"
)

// Sender values used in chat logs.
const (
	SenderUser  = "user"
	SenderActor = "ai"
)

// EmotionState is the actor's emotional state; every value is within 0..100.
type EmotionState struct {
	Anger    int `json:"anger"`
	Disgust  int `json:"disgust"`
	Fear     int `json:"fear"`
	Joy      int `json:"joy"`
	Sadness  int `json:"sadness"`
	Surprise int `json:"surprise"`
}

// Rules describe the scenario the trainee rehearses.
type Rules struct {
	SceneDescription string `json:"scene_description"`
	CoreEmotion      string `json:"core_emotion"`
	ActorName        string `json:"actor_name"`
	ActorRules       string `json:"actor_rules"`
}

// Complete reports whether every rule is filled in.
func (r Rules) Complete() bool {
	return r.SceneDescription != "" && r.CoreEmotion != "" && r.ActorName != "" && r.ActorRules != ""
}

// ChatMessage is one line of the conversation.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// SimulationRequest asks the actor for its next turn.
type SimulationRequest struct {
	CurrentState EmotionState  `json:"current_state"`
	Rules        Rules         `json:"rules"`
	UserMessage  string        `json:"user_message"`
	ChatLog      []ChatMessage `json:"chat_log,omitempty"`
}

// HintRequest asks for coaching on the trainee's next line.
type HintRequest struct {
	ChatLog      []ChatMessage `json:"chat_log"`
	CurrentState EmotionState  `json:"current_state"`
	Rules        Rules         `json:"rules"`
}

// AnalysisRequest asks for a reflection guide or a final report.
type AnalysisRequest struct {
	AnalysisType   string        `json:"analysis_type"`
	ChatLog        []ChatMessage `json:"chat_log"`
	InitialState   EmotionState  `json:"initial_state"`
	FinalState     EmotionState  `json:"final_state"`
	UserReflection string        `json:"user_reflection,omitempty"`
	Rules          Rules         `json:"rules"`
}

// EmotionChange carries the actor's new state.
type EmotionChange struct {
	NewEmotionState EmotionState `json:"new_emotion_state"`
	Reason          string       `json:"reason,omitempty"`
}

// SimulationResult is the actor's turn.
type SimulationResult struct {
	Action           string        `json:"action"`
	EmotionChange    EmotionChange `json:"emotion_change"`
	DecisionPoints   []string      `json:"decision_points"`
	DialogueAnalysis string        `json:"dialogue_analysis"`
	ThoughtProcess   string        `json:"thought_process,omitempty"`
}

// HintResult is a single coaching message.
type HintResult struct {
	HintMessage string `json:"hint_message"`
}

// FinalReport summarises a finished rehearsal.
type FinalReport struct {
	Summary        string   `json:"summary"`
	EmotionTrend   string   `json:"emotion_trend"`
	LearningPoints []string `json:"learning_points"`
	NextSteps      string   `json:"next_steps"`
	Score          *int     `json:"score,omitempty"`
}

// AnalysisResult holds exactly one of Guide or Report, matching Type.
type AnalysisResult struct {
	Type   string       `json:"analysis_type"`
	Guide  []string     `json:"guide,omitempty"`
	Report *FinalReport `json:"report,omitempty"`
}

// analysisPayload is the wire shape validated for the analysis call site.
type analysisPayload struct {
	AnalysisType   string `json:"analysis_type"`
	AnalysisResult any    `json:"analysis_result"`
}
