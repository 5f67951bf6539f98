// Package interview implements the mock-interview core: session state, the
// turn-by-turn orchestration state machine, the three interviewer personas,
// and the post-session evaluation aggregator. All model-backed sub-analyses
// are reached through the Capabilities port so the package never depends on a
// concrete provider.
package interview

import (
	"context"
	"strings"
)

// Persona identifies one of the three fixed interviewer roles.
type Persona string

const (
	PersonaHM   Persona = "HM"
	PersonaTech Persona = "Tech"
	PersonaHR   Persona = "HR"
)

// Personas returns the fixed variant set in panel order.
func Personas() []Persona {
	return []Persona{PersonaHM, PersonaTech, PersonaHR}
}

// NormalizePersona maps free-form model output onto the variant set,
// defaulting to the hiring manager.
func NormalizePersona(s string) Persona {
	lowered := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(lowered, "tech"), strings.Contains(lowered, "engineer"):
		return PersonaTech
	case lowered == "hr", strings.Contains(lowered, "human"), strings.Contains(lowered, "recruit"):
		return PersonaHR
	default:
		return PersonaHM
	}
}

// Quality grades a single answer.
type Quality string

const (
	QualityStrong   Quality = "strong"
	QualityAdequate Quality = "adequate"
	QualityWeak     Quality = "weak"
	QualityEvasive  Quality = "evasive"
	// QualityNotScored marks turns that bypass analysis, such as the ice breaker.
	QualityNotScored Quality = "n/a"
)

// NeedsFollowUp reports whether the deterministic routing override applies:
// weak and evasive answers always trigger a follow-up.
func (q Quality) NeedsFollowUp() bool {
	return q == QualityWeak || q == QualityEvasive
}

// answeredWell reports whether the quality counts as a passable answer for
// hint-usage bucketing.
func (q Quality) answeredWell() bool {
	return q == QualityStrong || q == QualityAdequate
}

// Action is a routing decision outcome.
type Action string

const (
	ActionNextPlanned     Action = "next_planned"
	ActionFollowUp        Action = "follow_up"
	ActionCrossCheck      Action = "cross_check"
	ActionDynamicQuestion Action = "dynamic_question"
	ActionEndInterview    Action = "end_interview"
)

// Brief is the merged research brief: company profile, job requirements,
// candidate profile, gap analysis and predicted weak points. It stays schema
// free because its shape is owned by upstream research collaborators.
type Brief map[string]any

// PlanItem is one planned or dynamically inserted question.
type PlanItem struct {
	Question string  `json:"question" mapstructure:"question"`
	Persona  Persona `json:"persona" mapstructure:"persona"`
	Topic    string  `json:"topic" mapstructure:"topic"`
	Priority string  `json:"priority" mapstructure:"priority"`
	Depth    string  `json:"depth" mapstructure:"depth"`
}

// Hints are coaching bullet points generated before the candidate answers.
type Hints struct {
	Bullets       []string `json:"bullets" mapstructure:"bullets"`
	PersonalHooks []string `json:"personal_hooks" mapstructure:"personal_hooks"`
	Avoid         []string `json:"avoid" mapstructure:"avoid"`
	ExampleAnswer string   `json:"example_answer" mapstructure:"example_answer"`
}

// AnswerAnalysis is the structured verdict on a single answer.
type AnswerAnalysis struct {
	Quality          Quality  `json:"quality" mapstructure:"quality"`
	ConfidenceScore  int      `json:"confidence_score" mapstructure:"confidence_score"`
	SpecificityScore int      `json:"specificity_score" mapstructure:"specificity_score"`
	STARScore        int      `json:"star_score" mapstructure:"star_score"`
	KeyPointsCovered []string `json:"key_points_covered" mapstructure:"key_points_covered"`
	MissingPoints    []string `json:"missing_points" mapstructure:"missing_points"`
	Flags            []string `json:"flags" mapstructure:"flags"`
	Summary          string   `json:"summary" mapstructure:"summary"`
}

// NeutralAnalysis is the degrade-to-default result substituted when the
// analyzer capability fails or returns garbage.
func NeutralAnalysis() AnswerAnalysis {
	return AnswerAnalysis{Quality: QualityAdequate}
}

// Contradiction describes one detected inconsistency between two answers.
type Contradiction struct {
	FirstIndex  int    `json:"answer_1_index" mapstructure:"answer_1_index"`
	SecondIndex int    `json:"answer_2_index" mapstructure:"answer_2_index"`
	Description string `json:"description" mapstructure:"description"`
	Severity    string `json:"severity" mapstructure:"severity"`
}

// ConsistencyReport is the result of a cross-answer consistency check.
type ConsistencyReport struct {
	Consistent     bool            `json:"consistent" mapstructure:"consistent"`
	Contradictions []Contradiction `json:"contradictions" mapstructure:"contradictions"`
	Concerns       []string        `json:"concerns" mapstructure:"concerns"`
}

// TriviallyConsistent is the report used when too little history exists to
// check, or when the checker capability fails.
func TriviallyConsistent() ConsistencyReport {
	return ConsistencyReport{Consistent: true}
}

// RoutingDecision is the proposed next action after an answer.
type RoutingDecision struct {
	Action         Action  `json:"action" mapstructure:"action"`
	NextPersona    Persona `json:"next_persona" mapstructure:"next_persona"`
	Reason         string  `json:"reason" mapstructure:"reason"`
	SuggestedTopic string  `json:"suggested_topic" mapstructure:"suggested_topic"`
	FollowUpFocus  string  `json:"follow_up_focus" mapstructure:"follow_up_focus"`
}

// STARComponent marks one detected element of the STAR framework.
type STARComponent struct {
	Present bool   `json:"present" mapstructure:"present"`
	Text    string `json:"text" mapstructure:"text"`
}

// STARResult is the structural breakdown of an answer.
type STARResult struct {
	Situation STARComponent `json:"situation" mapstructure:"situation"`
	Task      STARComponent `json:"task" mapstructure:"task"`
	Action    STARComponent `json:"action" mapstructure:"action"`
	Result    STARComponent `json:"result" mapstructure:"result"`
	Score     int           `json:"score" mapstructure:"score"`
	Feedback  string        `json:"feedback" mapstructure:"feedback"`
}

// ImprovedAnswer is a rewritten model answer with before/after estimates.
type ImprovedAnswer struct {
	ImprovedAnswer string   `json:"improved_answer" mapstructure:"improved_answer"`
	Reasoning      []string `json:"reasoning" mapstructure:"reasoning"`
	Tips           []string `json:"tips" mapstructure:"tips"`
	ScoreBefore    int      `json:"score_before" mapstructure:"score_before"`
	ScoreAfter     int      `json:"score_after" mapstructure:"score_after"`
}

// Scorecard is the synthesized session verdict.
type Scorecard struct {
	OverallScore  int             `json:"overall_score" mapstructure:"overall_score"`
	PersonaScores map[Persona]int `json:"persona_scores" mapstructure:"persona_scores"`
	Strengths     []string        `json:"strengths" mapstructure:"strengths"`
	Weaknesses    []string        `json:"weaknesses" mapstructure:"weaknesses"`
	ActionPlan    []string        `json:"action_plan" mapstructure:"action_plan"`
}

// VoiceMetrics are attached to a turn after the fact when the answer was spoken.
type VoiceMetrics struct {
	ResponseLatencyS *float64 `json:"response_latency_s,omitempty" mapstructure:"response_latency_s"`
	FillerCount      int      `json:"filler_count" mapstructure:"filler_count"`
	AnswerDurationS  float64  `json:"answer_duration_s" mapstructure:"answer_duration_s"`
	WordCount        int      `json:"word_count" mapstructure:"word_count"`
	FillerRatePerMin float64  `json:"filler_rate_per_min" mapstructure:"filler_rate_per_min"`
}

// Exchange is one question/answer pair handed to the consistency checker.
type Exchange struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Persona  Persona `json:"persona"`
}

// PlanRequest seeds the one-shot plan generation capability.
type PlanRequest struct {
	Company       string
	Role          string
	QuestionCount int
	Brief         Brief
}

// QuestionRequest materializes a plan or dynamic item into question text.
type QuestionRequest struct {
	Topic          string
	Persona        Persona
	Depth          string
	HistorySummary string
	Brief          Brief
}

// HintRequest asks for coaching hints for a pending question.
type HintRequest struct {
	Question string
	Persona  Persona
	Brief    Brief
}

// RouteRequest asks for the next action after an answer.
type RouteRequest struct {
	CurrentPersona  Persona
	AnswerQuality   Quality
	RemainingTopics []string
	Flags           []string
	AnswerSummary   string
}

// FollowUpRequest asks a persona to probe the answer it just heard.
type FollowUpRequest struct {
	Persona      Persona
	PersonaStyle string
	LastQuestion string
	LastAnswer   string
	Analysis     AnswerAnalysis
	Brief        Brief
}

// IceBreakerRequest asks for the optional non-scored warm-up question.
type IceBreakerRequest struct {
	Company string
	Role    string
	Brief   Brief
}

// ImproveRequest asks for a rewritten model answer.
type ImproveRequest struct {
	Question   string
	UserAnswer string
	Brief      Brief
}

// ScorecardRequest carries the evaluation rollups into the final synthesis call.
type ScorecardRequest struct {
	Company      string
	Role         string
	PerQuestion  []QuestionEvaluation
	Consistency  ConsistencyReport
	HintAnalysis HintAnalysis
	VoiceSummary VoiceSummary
	Flags        []string
}

// Capabilities is the port through which every model-backed sub-analysis is
// invoked. Implementations must return a usable zero/neutral value alongside
// any error so callers can always degrade instead of aborting the session.
type Capabilities interface {
	GeneratePlan(ctx context.Context, req PlanRequest) ([]PlanItem, error)
	GenerateIceBreaker(ctx context.Context, req IceBreakerRequest) (string, error)
	GenerateQuestion(ctx context.Context, req QuestionRequest) (GeneratedQuestion, error)
	GenerateHints(ctx context.Context, req HintRequest) (Hints, error)
	AnalyzeAnswer(ctx context.Context, question, answer string, persona Persona) (AnswerAnalysis, error)
	CheckConsistency(ctx context.Context, exchanges []Exchange) (ConsistencyReport, error)
	Route(ctx context.Context, req RouteRequest) (RoutingDecision, error)
	GenerateFollowUp(ctx context.Context, req FollowUpRequest) (string, error)
	DetectSTAR(ctx context.Context, answer string) (STARResult, error)
	ImproveAnswer(ctx context.Context, req ImproveRequest) (ImprovedAnswer, error)
	GenerateScorecard(ctx context.Context, req ScorecardRequest) (Scorecard, error)
}

// GeneratedQuestion is the materialized question text with optional extras.
type GeneratedQuestion struct {
	Question       string `json:"question" mapstructure:"question"`
	Rationale      string `json:"rationale" mapstructure:"rationale"`
	FollowUpIfWeak string `json:"follow_up_if_weak" mapstructure:"follow_up_if_weak"`
}
