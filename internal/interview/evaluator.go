package interview

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/logger"
)

const answerPreviewRunes = 200

// ErrNothingToEvaluate is returned for sessions with an empty answer history.
var ErrNothingToEvaluate = errors.New("no answers to evaluate")

// QuestionEvaluation merges a turn's stored analysis with re-derived STAR
// structure.
type QuestionEvaluation struct {
	TurnNumber       int        `json:"turn_number"`
	Persona          Persona    `json:"persona"`
	Question         string     `json:"question"`
	AnswerPreview    string     `json:"answer_preview"`
	Quality          Quality    `json:"quality"`
	ConfidenceScore  int        `json:"confidence_score"`
	SpecificityScore int        `json:"specificity_score"`
	STAR             STARResult `json:"star"`
	Flags            []string   `json:"flags"`
	HintUsed         bool       `json:"hint_used"`
}

// HintBreakdown buckets turns by hint usage versus outcome.
type HintBreakdown struct {
	NoHintNeeded         int `json:"no_hint_needed"`
	HintUsedAnsweredWell int `json:"hint_used_answered_well"`
	HintUsedStillWeak    int `json:"hint_used_still_weak"`
}

// HintAnalysis is the pure hint-usage rollup.
type HintAnalysis struct {
	TotalQuestions int           `json:"total_questions"`
	HintsUsed      int           `json:"hints_used"`
	HintsNotUsed   int           `json:"hints_not_used"`
	Breakdown      HintBreakdown `json:"breakdown"`
	HintUsageRate  float64       `json:"hint_usage_rate"`
	FocusTopics    []string      `json:"focus_topics"`
}

// ShortestAnswer flags the quickest spoken answer as a possible sign of
// under-elaboration.
type ShortestAnswer struct {
	TurnNumber      int     `json:"turn_number"`
	QuestionPreview string  `json:"question_preview"`
	DurationS       float64 `json:"duration_s"`
}

// VoiceSummary aggregates voice metrics over the turns that carry them.
// HasVoiceData distinguishes "no voice data at all" from genuine zeroes.
type VoiceSummary struct {
	HasVoiceData        bool            `json:"has_voice_data"`
	AvgResponseLatencyS *float64        `json:"avg_response_latency_s,omitempty"`
	AvgFillerRatePerMin float64         `json:"avg_filler_rate_per_min"`
	TotalFillerCount    int             `json:"total_filler_count"`
	AvgAnswerDurationS  float64         `json:"avg_answer_duration_s"`
	AvgWordCount        float64         `json:"avg_word_count"`
	Shortest            *ShortestAnswer `json:"shortest_answer,omitempty"`
}

// ModelAnswer is an improved rewrite of a turn that was not already strong.
type ModelAnswer struct {
	TurnNumber      int      `json:"turn_number"`
	Question        string   `json:"question"`
	OriginalQuality Quality  `json:"original_quality"`
	ImprovedAnswer  string   `json:"improved_answer"`
	Reasoning       []string `json:"reasoning"`
	Tips            []string `json:"tips"`
	ScoreBefore     int      `json:"score_before"`
	ScoreAfter      int      `json:"score_after"`
}

// Report is the complete post-session evaluation.
type Report struct {
	OverallScore  int                  `json:"overall_score"`
	PersonaScores map[Persona]int      `json:"persona_scores"`
	Strengths     []string             `json:"strengths"`
	Weaknesses    []string             `json:"weaknesses"`
	PerQuestion   []QuestionEvaluation `json:"per_question"`
	Consistency   ConsistencyReport    `json:"consistency"`
	HintAnalysis  HintAnalysis         `json:"hint_analysis"`
	VoiceSummary  VoiceSummary         `json:"voice_summary"`
	ModelAnswers  []ModelAnswer        `json:"model_answers"`
	ActionPlan    []string             `json:"action_plan"`
}

// Evaluator reduces a completed session into a scored report. Everything
// except the capability-backed sub-analyses is deterministic, so re-running
// it over the same immutable session is idempotent for the pure rollups.
type Evaluator struct {
	caps   Capabilities
	logger *zap.Logger
}

func NewEvaluator(caps Capabilities, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{caps: caps, logger: logger}
}

// Evaluate runs the full evaluation pipeline over a finished session.
func (e *Evaluator) Evaluate(ctx context.Context, s *Session) (*Report, error) {
	history := s.History()
	if len(history) == 0 {
		return nil, ErrNothingToEvaluate
	}

	plan := s.Plan()
	flags := s.Flags()

	perQuestion := e.evaluatePerQuestion(ctx, history)
	consistency := e.checkConsistency(ctx, history)
	modelAnswers := e.generateModelAnswers(ctx, history, s.Brief)
	hintAnalysis := analyzeHints(history, plan)
	voiceSummary := summarizeVoice(history)

	scorecard, err := e.caps.GenerateScorecard(ctx, ScorecardRequest{
		Company:      s.Company,
		Role:         s.Role,
		PerQuestion:  perQuestion,
		Consistency:  consistency,
		HintAnalysis: hintAnalysis,
		VoiceSummary: voiceSummary,
		Flags:        flags,
	})
	if err != nil {
		logger.WithSession(e.logger, s.ID).Warn("scorecard generation degraded", zap.Error(err))
	}

	return &Report{
		OverallScore:  scorecard.OverallScore,
		PersonaScores: filterPersonaScores(scorecard.PersonaScores, history),
		Strengths:     scorecard.Strengths,
		Weaknesses:    scorecard.Weaknesses,
		PerQuestion:   perQuestion,
		Consistency:   consistency,
		HintAnalysis:  hintAnalysis,
		VoiceSummary:  voiceSummary,
		ModelAnswers:  modelAnswers,
		ActionPlan:    scorecard.ActionPlan,
	}, nil
}

// evaluatePerQuestion re-derives STAR structure for every turn and merges it
// with the analysis recorded live.
func (e *Evaluator) evaluatePerQuestion(ctx context.Context, history []*TurnRecord) []QuestionEvaluation {
	results := make([]QuestionEvaluation, 0, len(history))
	for _, turn := range history {
		star, err := e.caps.DetectSTAR(ctx, turn.Answer)
		if err != nil {
			e.logger.Warn("star detection degraded", zap.Int("turn", turn.TurnNumber), zap.Error(err))
		}

		preview := truncateRunes(turn.Answer, answerPreviewRunes)
		if preview != turn.Answer {
			preview += "..."
		}

		results = append(results, QuestionEvaluation{
			TurnNumber:       turn.TurnNumber,
			Persona:          turn.Persona,
			Question:         turn.Question,
			AnswerPreview:    preview,
			Quality:          turn.Analysis.Quality,
			ConfidenceScore:  turn.Analysis.ConfidenceScore,
			SpecificityScore: turn.Analysis.SpecificityScore,
			STAR:             star,
			Flags:            turn.Analysis.Flags,
			HintUsed:         turn.HintUsed,
		})
	}
	return results
}

func (e *Evaluator) checkConsistency(ctx context.Context, history []*TurnRecord) ConsistencyReport {
	if len(history) < 2 {
		return TriviallyConsistent()
	}

	exchanges := make([]Exchange, 0, len(history))
	for _, turn := range history {
		exchanges = append(exchanges, Exchange{
			Question: turn.Question,
			Answer:   turn.Answer,
			Persona:  turn.Persona,
		})
	}

	report, err := e.caps.CheckConsistency(ctx, exchanges)
	if err != nil {
		e.logger.Warn("consistency check degraded", zap.Error(err))
		return TriviallyConsistent()
	}
	return report
}

// generateModelAnswers rewrites every turn that was not already strong.
func (e *Evaluator) generateModelAnswers(ctx context.Context, history []*TurnRecord, brief Brief) []ModelAnswer {
	answers := make([]ModelAnswer, 0)
	for _, turn := range history {
		quality := turn.Analysis.Quality
		if quality != QualityWeak && quality != QualityEvasive && quality != QualityAdequate {
			continue
		}

		improved, err := e.caps.ImproveAnswer(ctx, ImproveRequest{
			Question:   turn.Question,
			UserAnswer: turn.Answer,
			Brief:      brief,
		})
		if err != nil {
			e.logger.Warn("answer improvement degraded", zap.Int("turn", turn.TurnNumber), zap.Error(err))
		}

		answers = append(answers, ModelAnswer{
			TurnNumber:      turn.TurnNumber,
			Question:        turn.Question,
			OriginalQuality: quality,
			ImprovedAnswer:  improved.ImprovedAnswer,
			Reasoning:       improved.Reasoning,
			Tips:            improved.Tips,
			ScoreBefore:     improved.ScoreBefore,
			ScoreAfter:      improved.ScoreAfter,
		})
	}
	return answers
}

// analyzeHints is the pure hint-usage rollup. Turns where a hint did not
// rescue the answer surface their planned topic as a focus area for the next
// attempt.
func analyzeHints(history []*TurnRecord, plan []PlanItem) HintAnalysis {
	analysis := HintAnalysis{
		TotalQuestions: len(history),
		FocusTopics:    []string{},
	}

	for _, turn := range history {
		quality := turn.Analysis.Quality
		switch {
		case turn.HintUsed && quality.answeredWell():
			analysis.HintsUsed++
			analysis.Breakdown.HintUsedAnsweredWell++
		case turn.HintUsed && quality.NeedsFollowUp():
			analysis.HintsUsed++
			analysis.Breakdown.HintUsedStillWeak++
			analysis.FocusTopics = append(analysis.FocusTopics, plannedTopic(plan, turn.TurnNumber))
		case turn.HintUsed:
			analysis.HintsUsed++
		case quality.answeredWell():
			analysis.Breakdown.NoHintNeeded++
		}
	}

	analysis.HintsNotUsed = analysis.TotalQuestions - analysis.HintsUsed
	if analysis.TotalQuestions > 0 {
		analysis.HintUsageRate = round1(float64(analysis.HintsUsed) / float64(analysis.TotalQuestions) * 100)
	}
	return analysis
}

// plannedTopic recovers the topic from the plan slot matching a turn number,
// falling back to "general" for turns beyond the stored plan.
func plannedTopic(plan []PlanItem, turnNumber int) string {
	if turnNumber >= 1 && turnNumber <= len(plan) {
		if topic := plan[turnNumber-1].Topic; topic != "" {
			return topic
		}
	}
	return "general"
}

// summarizeVoice aggregates voice metrics only over turns that carry them.
func summarizeVoice(history []*TurnRecord) VoiceSummary {
	var (
		latencies   []float64
		fillerTotal int
		durations   []float64
		wordCounts  []float64
		fillerRates []float64
		shortest    *ShortestAnswer
	)

	for _, turn := range history {
		vm := turn.Voice
		if vm == nil {
			continue
		}

		if vm.ResponseLatencyS != nil {
			latencies = append(latencies, *vm.ResponseLatencyS)
		}
		fillerTotal += vm.FillerCount
		fillerRates = append(fillerRates, vm.FillerRatePerMin)
		wordCounts = append(wordCounts, float64(vm.WordCount))

		if vm.AnswerDurationS > 0 {
			durations = append(durations, vm.AnswerDurationS)
			if shortest == nil || vm.AnswerDurationS < shortest.DurationS {
				shortest = &ShortestAnswer{
					TurnNumber:      turn.TurnNumber,
					QuestionPreview: truncateRunes(turn.Question, 80),
					DurationS:       vm.AnswerDurationS,
				}
			}
		}
	}

	if len(durations) == 0 {
		return VoiceSummary{HasVoiceData: false}
	}

	summary := VoiceSummary{
		HasVoiceData:        true,
		AvgFillerRatePerMin: round2(mean(fillerRates)),
		TotalFillerCount:    fillerTotal,
		AvgAnswerDurationS:  round2(mean(durations)),
		AvgWordCount:        round1(mean(wordCounts)),
		Shortest:            shortest,
	}
	if len(latencies) > 0 {
		avg := round2(mean(latencies))
		summary.AvgResponseLatencyS = &avg
	}
	return summary
}

// filterPersonaScores keeps scores only for personas that actually asked at
// least one question, regardless of what the scorecard call returned.
func filterPersonaScores(scores map[Persona]int, history []*TurnRecord) map[Persona]int {
	asked := make(map[Persona]bool, len(history))
	for _, turn := range history {
		asked[turn.Persona] = true
	}

	filtered := make(map[Persona]int, len(scores))
	for persona, score := range scores {
		if asked[persona] {
			filtered[persona] = score
		}
	}
	return filtered
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
