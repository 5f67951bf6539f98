package ai

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/interview"
	"github.com/mockpanel/mockpanel/internal/logger"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Context budgets keep prompt sizes bounded; values follow the per-call
// limits of the capability contracts.
const (
	planBriefChars     = 6000
	questionBriefChars = 3000
	improveBriefChars  = 2000
	hintBriefChars     = 1000
	followUpBriefChars = 800
	followUpAnswerRune = 500

	defaultMaxLogLength = 200
)

// Generator is the narrow surface the toolkit needs from a model provider.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Toolkit implements interview.Capabilities over a Generator. Every method
// returns a usable neutral result alongside any error, so orchestration can
// always degrade instead of aborting.
type Toolkit struct {
	gen       Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewToolkit(gen Generator, log *zap.Logger, maxLogLength int) *Toolkit {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Toolkit{
		gen:       gen,
		logger:    logger.WithFields(log, logger.AIFields("gemini", gen.Model())...),
		maxLogLen: maxLogLength,
	}
}

func prompt(name string, replacements map[string]string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		return ""
	}
	text := string(data)
	for key, value := range replacements {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

// invoke runs one capability call with bounded request/response logging.
func (t *Toolkit) invoke(ctx context.Context, capability, system, message string) (string, error) {
	t.logger.Debug("capability request",
		zap.String("capability", capability),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", logger.TruncateForLog(message, t.maxLogLen)),
	)

	raw, err := t.gen.GenerateContent(ctx, system, message)
	if err != nil {
		return "", fmt.Errorf("%s: %w", capability, err)
	}

	t.logger.Debug("capability response",
		zap.String("capability", capability),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, t.maxLogLen)),
	)

	return raw, nil
}

// GeneratePlan implements the one-shot plan generation capability. Anything
// that fails to parse into a well-formed list yields an empty plan.
func (t *Toolkit) GeneratePlan(ctx context.Context, req interview.PlanRequest) ([]interview.PlanItem, error) {
	system := "You are an interview strategist. Generate a structured interview plan " +
		"that is PERSONALIZED to the specific candidate. Return ONLY a valid JSON array, no other text."

	message := prompt("plan", map[string]string{
		"ROLE":              req.Role,
		"COMPANY":           req.Company,
		"BRIEF_JSON":        TruncateJSON(req.Brief, planBriefChars),
		"CANDIDATE_SECTION": candidateSection(req.Brief),
		"GAPS_SECTION":      gapsSection(req.Brief),
		"WEAK_SECTION":      weakPointsSection(req.Brief),
		"COUNT":             fmt.Sprintf("%d", req.QuestionCount),
	})

	raw, err := t.invoke(ctx, "plan_generator", system, message)
	if err != nil {
		return []interview.PlanItem{}, err
	}

	list, err := ExtractList(raw)
	if err != nil {
		return []interview.PlanItem{}, fmt.Errorf("plan_generator: %w", err)
	}

	var plan []interview.PlanItem
	if err := Decode(list, &plan); err != nil {
		return []interview.PlanItem{}, fmt.Errorf("plan_generator: %w", err)
	}
	return plan, nil
}

// GenerateIceBreaker produces the optional non-scored warm-up question.
func (t *Toolkit) GenerateIceBreaker(ctx context.Context, req interview.IceBreakerRequest) (string, error) {
	system := "You are a warm, friendly Hiring Manager starting an interview. " +
		"Generate ONE casual ice-breaker to put the candidate at ease. " +
		"Keep it short and natural. Return ONLY the question text."

	message := prompt("ice_breaker", map[string]string{
		"ROLE":         req.Role,
		"COMPANY":      req.Company,
		"CONTEXT_HINT": candidateHint(req.Brief),
	})

	raw, err := t.invoke(ctx, "ice_breaker", system, message)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(raw), `"`), nil
}

// GenerateQuestion materializes a plan or dynamic item into question text.
func (t *Toolkit) GenerateQuestion(ctx context.Context, req interview.QuestionRequest) (interview.GeneratedQuestion, error) {
	system := fmt.Sprintf("You are a %s interviewer. Style: %s "+
		"Generate a single PERSONALIZED interview question. Return ONLY valid JSON.",
		req.Persona, interview.StyleFor(req.Persona))

	message := prompt("question", map[string]string{
		"TOPIC":          req.Topic,
		"DEPTH":          req.Depth,
		"PERSONA":        string(req.Persona),
		"HISTORY":        orNone(req.HistorySummary),
		"CONTEXT":        orNone(TruncateJSON(req.Brief, questionBriefChars)),
		"CANDIDATE_INFO": candidateSection(req.Brief),
	})

	var result interview.GeneratedQuestion
	raw, err := t.invoke(ctx, "question_generator", system, message)
	if err != nil {
		return result, err
	}
	if err := DecodeObject(raw, &result); err != nil {
		return interview.GeneratedQuestion{}, fmt.Errorf("question_generator: %w", err)
	}
	return result, nil
}

// GenerateHints produces coaching hints for a pending question.
func (t *Toolkit) GenerateHints(ctx context.Context, req interview.HintRequest) (interview.Hints, error) {
	system := "You are an interview coach. Generate helpful hints for the candidate. " +
		"Include both general key points AND personalized hooks from their resume. " +
		"Return ONLY valid JSON."

	resume := "No resume data"
	if profile, ok := req.Brief["candidate_profile"]; ok {
		resume = TruncateJSON(profile, hintBriefChars)
	}

	message := prompt("hints", map[string]string{
		"QUESTION": req.Question,
		"PERSONA":  string(req.Persona),
		"RESUME":   resume,
		"BRIEF":    orNone(TruncateJSON(req.Brief, hintBriefChars)),
	})

	var result interview.Hints
	raw, err := t.invoke(ctx, "hint_generator", system, message)
	if err != nil {
		return result, err
	}
	if err := DecodeObject(raw, &result); err != nil {
		return interview.Hints{}, fmt.Errorf("hint_generator: %w", err)
	}
	return result, nil
}

// AnalyzeAnswer grades one answer. Failures yield a neutral verdict.
func (t *Toolkit) AnalyzeAnswer(ctx context.Context, question, answer string, persona interview.Persona) (interview.AnswerAnalysis, error) {
	system := "You are a strict interview answer evaluator. Analyze the answer objectively. " +
		"Be honest about quality -- most interview answers are NOT strong. " +
		"Return ONLY valid JSON."

	message := prompt("analyze", map[string]string{
		"PERSONA":  string(persona),
		"QUESTION": question,
		"ANSWER":   answer,
	})

	raw, err := t.invoke(ctx, "answer_analyzer", system, message)
	if err != nil {
		return interview.NeutralAnalysis(), err
	}

	var result interview.AnswerAnalysis
	if err := DecodeObject(raw, &result); err != nil {
		return interview.NeutralAnalysis(), fmt.Errorf("answer_analyzer: %w", err)
	}
	if result.Quality == "" {
		result.Quality = interview.QualityAdequate
	}
	return result, nil
}

// CheckConsistency looks for contradictions across the whole history.
func (t *Toolkit) CheckConsistency(ctx context.Context, exchanges []interview.Exchange) (interview.ConsistencyReport, error) {
	system := "You are a consistency analyzer. Find contradictions or inconsistencies " +
		"across multiple interview answers. Return ONLY valid JSON."

	message := prompt("consistency", map[string]string{
		"ANSWERS_JSON": TruncateJSON(exchanges, 0),
	})

	raw, err := t.invoke(ctx, "consistency_checker", system, message)
	if err != nil {
		return interview.TriviallyConsistent(), err
	}

	var result interview.ConsistencyReport
	if err := DecodeObject(raw, &result); err != nil {
		return interview.TriviallyConsistent(), fmt.Errorf("consistency_checker: %w", err)
	}
	return result, nil
}

// Route proposes the next interview action.
func (t *Toolkit) Route(ctx context.Context, req interview.RouteRequest) (interview.RoutingDecision, error) {
	system := "You are an interview flow controller that makes real interviewers' decisions. " +
		"Real interviewers ALWAYS follow up on weak or incomplete answers. " +
		"They do NOT simply move to the next question when an answer is vague, short, or evasive. " +
		"Return ONLY valid JSON."

	message := prompt("route", map[string]string{
		"PERSONA": string(req.CurrentPersona),
		"QUALITY": string(req.AnswerQuality),
		"SUMMARY": req.AnswerSummary,
		"TOPICS":  TruncateJSON(req.RemainingTopics, 0),
		"FLAGS":   TruncateJSON(req.Flags, 0),
	})

	neutral := interview.RoutingDecision{
		Action:      interview.ActionNextPlanned,
		NextPersona: req.CurrentPersona,
	}

	raw, err := t.invoke(ctx, "persona_router", system, message)
	if err != nil {
		return neutral, err
	}

	var result interview.RoutingDecision
	if err := DecodeObject(raw, &result); err != nil {
		return neutral, fmt.Errorf("persona_router: %w", err)
	}
	if result.Action == "" {
		result.Action = interview.ActionNextPlanned
	}
	return result, nil
}

// GenerateFollowUp composes one probing question reacting to the answer.
func (t *Toolkit) GenerateFollowUp(ctx context.Context, req interview.FollowUpRequest) (string, error) {
	system := fmt.Sprintf("You are a %s interviewer. %s "+
		"When generating follow-ups, push gently but firmly on vague answers.",
		req.Persona, req.PersonaStyle)

	message := prompt("follow_up", map[string]string{
		"LAST_QUESTION":  truncateRunes(req.LastQuestion, 100),
		"QUALITY":        string(req.Analysis.Quality),
		"ANSWER_SNIPPET": truncateRunes(req.LastAnswer, followUpAnswerRune),
		"MISSING":        TruncateJSON(req.Analysis.MissingPoints, 0),
		"FLAGS":          TruncateJSON(req.Analysis.Flags, 0),
		"CONTEXT":        orNone(TruncateJSON(req.Brief, followUpBriefChars)),
	})

	raw, err := t.invoke(ctx, "follow_up_generator", system, message)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(raw), `"`), nil
}

// DetectSTAR breaks an answer into STAR framework components.
func (t *Toolkit) DetectSTAR(ctx context.Context, answer string) (interview.STARResult, error) {
	system := "You are a STAR framework analyzer. Identify STAR components in the answer. " +
		"Return ONLY valid JSON."

	message := prompt("star", map[string]string{"ANSWER": answer})

	var result interview.STARResult
	raw, err := t.invoke(ctx, "star_detector", system, message)
	if err != nil {
		return result, err
	}
	if err := DecodeObject(raw, &result); err != nil {
		return interview.STARResult{}, fmt.Errorf("star_detector: %w", err)
	}
	return result, nil
}

// ImproveAnswer rewrites a turn into a model answer with score estimates.
func (t *Toolkit) ImproveAnswer(ctx context.Context, req interview.ImproveRequest) (interview.ImprovedAnswer, error) {
	system := "You are an interview coach. Generate an improved model answer. " +
		"Keep it natural and conversational, not robotic. Return ONLY valid JSON."

	message := prompt("improve", map[string]string{
		"QUESTION": req.Question,
		"ANSWER":   req.UserAnswer,
		"CONTEXT":  orNone(TruncateJSON(req.Brief, improveBriefChars)),
	})

	var result interview.ImprovedAnswer
	raw, err := t.invoke(ctx, "answer_improver", system, message)
	if err != nil {
		return result, err
	}
	if err := DecodeObject(raw, &result); err != nil {
		return interview.ImprovedAnswer{}, fmt.Errorf("answer_improver: %w", err)
	}
	return result, nil
}

// GenerateScorecard synthesizes the final session verdict from the
// evaluation rollups.
func (t *Toolkit) GenerateScorecard(ctx context.Context, req interview.ScorecardRequest) (interview.Scorecard, error) {
	system := "You are an expert interview performance evaluator. " +
		"Analyze the interview data and produce a scorecard. Return ONLY valid JSON."

	perQuestion := make([]map[string]any, 0, len(req.PerQuestion))
	for _, q := range req.PerQuestion {
		perQuestion = append(perQuestion, map[string]any{
			"persona":     q.Persona,
			"quality":     q.Quality,
			"confidence":  q.ConfidenceScore,
			"specificity": q.SpecificityScore,
			"star_score":  q.STAR.Score,
			"flags":       q.Flags,
			"hint_used":   q.HintUsed,
		})
	}

	evalData := map[string]any{
		"company":              req.Company,
		"role":                 req.Role,
		"per_question_summary": perQuestion,
		"consistency": map[string]any{
			"consistent":          req.Consistency.Consistent,
			"contradiction_count": len(req.Consistency.Contradictions),
		},
		"hint_analysis": req.HintAnalysis,
		"voice_summary": req.VoiceSummary,
		"flags":         req.Flags,
	}

	message := prompt("scorecard", map[string]string{
		"EVAL_JSON": TruncateJSON(evalData, 0),
	})

	var result interview.Scorecard
	raw, err := t.invoke(ctx, "scorecard_generator", system, message)
	if err != nil {
		return result, err
	}
	if err := DecodeObject(raw, &result); err != nil {
		return interview.Scorecard{}, fmt.Errorf("scorecard_generator: %w", err)
	}
	return result, nil
}

// candidateSection renders the candidate profile block used to personalize
// plan and question prompts. Empty when the brief has no profile.
func candidateSection(brief interview.Brief) string {
	profile, ok := brief["candidate_profile"].(map[string]any)
	if !ok || len(profile) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nCANDIDATE PROFILE (use this to personalize questions):\n")
	fmt.Fprintf(&b, "- Name: %s\n", stringOr(profile["name"], "Unknown"))
	fmt.Fprintf(&b, "- Current role: %s\n", stringOr(profile["current_role"], "N/A"))
	fmt.Fprintf(&b, "- Experience: %s years\n", stringOr(profile["experience_years"], "N/A"))
	fmt.Fprintf(&b, "- Skills: %s\n", strings.Join(stringList(profile["skills"], 10), ", "))
	fmt.Fprintf(&b, "- Education: %s\n", stringOr(profile["education"], "N/A"))
	return b.String()
}

func gapsSection(brief interview.Brief) string {
	analysis, ok := brief["gap_analysis"].(map[string]any)
	if !ok {
		return ""
	}
	gaps, ok := analysis["gaps"].([]any)
	if !ok || len(gaps) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nIDENTIFIED GAPS (probe these with specific questions):\n")
	for i, g := range gaps {
		if i == 5 {
			break
		}
		gap, ok := g.(map[string]any)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s (severity: %s)\n",
			stringOr(gap["requirement"], ""),
			stringOr(gap["severity"], "moderate"),
		)
	}
	return b.String()
}

func weakPointsSection(brief interview.Brief) string {
	points := stringList(brief["predicted_weak_points"], 5)
	if len(points) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nPREDICTED WEAK POINTS (create questions targeting these):\n")
	for _, p := range points {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return b.String()
}

// candidateHint renders the short name/role hint for the ice breaker.
func candidateHint(brief interview.Brief) string {
	profile, ok := brief["candidate_profile"].(map[string]any)
	if !ok {
		return ""
	}

	var b strings.Builder
	if name := stringOr(profile["name"], ""); name != "" {
		fmt.Fprintf(&b, "The candidate's name is %s. ", name)
	}
	if role := stringOr(profile["current_role"], ""); role != "" {
		fmt.Fprintf(&b, "They currently work as %s. ", role)
	}
	return b.String()
}

func stringOr(v any, fallback string) string {
	switch val := v.(type) {
	case string:
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", val), ".0")
	case int:
		return fmt.Sprintf("%d", val)
	}
	return fallback
}

func stringList(v any, limit int) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, limit)
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" || s == "{}" || s == "null" {
		return "None"
	}
	return s
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
