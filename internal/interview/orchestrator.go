package interview

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/logger"
)

const (
	// iceBreakerOdds is the probability of opening with a casual warm-up
	// question instead of going straight to the plan.
	iceBreakerOdds = 0.6

	// maxChainDepth caps consecutive non-planned turns: a follow-up may
	// chain off another follow-up once, never twice.
	maxChainDepth = 2

	historyWindow      = 5
	flagWindow         = 5
	remainingTopicsCap = 5
	answerSummaryRunes = 200
	contradictionRunes = 100
)

// ErrNoPendingQuestion is returned when an answer arrives while no question
// is outstanding. This is a client-usage error, not a session fault.
var ErrNoPendingQuestion = errors.New("no pending question for this session")

// Question is the next materialized question handed to the candidate.
type Question struct {
	Question   string  `json:"question"`
	Persona    Persona `json:"persona"`
	Topic      string  `json:"topic"`
	Hints      Hints   `json:"hints"`
	Rationale  string  `json:"rationale,omitempty"`
	IceBreaker bool    `json:"ice_breaker,omitempty"`
}

// TurnResult is everything produced by processing one answer.
type TurnResult struct {
	Turn          *TurnRecord        `json:"turn"`
	Analysis      AnswerAnalysis     `json:"analysis"`
	Consistency   *ConsistencyReport `json:"consistency,omitempty"`
	Routing       RoutingDecision    `json:"routing"`
	InterviewOver bool               `json:"is_interview_over"`
}

// Orchestrator owns one session's turn loop: it selects the next question,
// requests analysis, maintains coverage and flags, and applies the routing
// policy with its deterministic overrides. Capability failures degrade to
// neutral results; the interview always keeps moving.
type Orchestrator struct {
	caps    Capabilities
	panel   map[Persona]*Interviewer
	session *Session
	logger  *zap.Logger

	// randFloat is swapped out in tests to pin the ice-breaker decision.
	randFloat func() float64
}

func NewOrchestrator(caps Capabilities, panel map[Persona]*Interviewer, session *Session, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		caps:      caps,
		panel:     panel,
		session:   session,
		logger:    logger.WithSession(log, session.ID),
		randFloat: rand.Float64,
	}
}

// Session exposes the orchestrated session for read-only collaborators.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// ShouldEnd reports the termination condition: plan exhausted, dynamic queue
// drained, nothing pending.
func (o *Orchestrator) ShouldEnd() bool {
	return o.session.Done()
}

// NextQuestion selects and materializes the next question. It returns nil
// when the interview is over. Calling it again while a question is pending
// returns the same question, so retried polls are harmless.
func (o *Orchestrator) NextQuestion(ctx context.Context) *Question {
	s := o.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return renderPending(s.pending)
	}

	// One-shot ice breaker before the first real question.
	if !s.iceBreakerDone && len(s.history) == 0 && s.currentIndex == 0 {
		s.iceBreakerDone = true
		if o.randFloat() <= iceBreakerOdds {
			if q := o.generateIceBreaker(ctx); q != nil {
				s.pending = q
				return renderPending(q)
			}
		}
	}

	var (
		item     PlanItem
		fromPlan bool
	)
	switch {
	case len(s.dynamicQueue) > 0:
		item = s.dynamicQueue[0]
		s.dynamicQueue = s.dynamicQueue[1:]
	case s.currentIndex < len(s.plan):
		item = s.plan[s.currentIndex]
		fromPlan = true
	default:
		return nil
	}

	pending := o.materialize(ctx, item, fromPlan)
	s.pending = pending
	return renderPending(pending)
}

// ProcessAnswer runs the full answer pipeline for the pending question:
// analysis, turn record, persona memory, coverage, consistency, flags,
// routing, chain-depth-limited follow-up expansion, and index advancement.
func (o *Orchestrator) ProcessAnswer(ctx context.Context, answer string, hintUsed bool, voice *VoiceMetrics) (*TurnResult, error) {
	s := o.session
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pending
	if pending == nil {
		return nil, ErrNoPendingQuestion
	}
	s.pending = nil

	if pending.iceBreaker {
		return o.processIceBreakerAnswer(pending, answer, voice), nil
	}

	persona := pending.item.Persona
	question := pending.item.Question
	topic := pending.item.Topic

	// 1. Analyze. A failed analyzer degrades to a neutral verdict.
	analysis, err := o.caps.AnalyzeAnswer(ctx, question, answer, persona)
	if err != nil {
		o.logger.Warn("answer analysis degraded", zap.Error(err))
	}

	// 2. Record the turn.
	turn := &TurnRecord{
		TurnNumber:  len(s.history) + 1,
		Persona:     persona,
		Question:    question,
		Topic:       topic,
		FromPlan:    pending.fromPlan,
		Answer:      answer,
		HintUsed:    hintUsed,
		HintBullets: pending.hints,
		Analysis:    analysis,
		Voice:       voice,
	}
	s.history = append(s.history, turn)

	// 3. Update persona memories: the asker remembers, the others observe.
	if asker, ok := o.panel[persona]; ok {
		asker.RecordQA(question, answer, analysis)
		for kind, other := range o.panel {
			if kind != persona {
				other.Observe(persona, question, answer)
			}
		}
	}

	// 4. Planned questions cover their topic; follow-ups and dynamic
	// questions never touch coverage.
	if pending.fromPlan {
		s.coverTopic(topic)
	}

	// 5. Consistency check over the whole history once it is deep enough.
	var consistency *ConsistencyReport
	if len(s.history) >= 3 {
		report := o.checkConsistency(ctx)
		consistency = &report
	}

	// 6. Namespace and record analysis flags.
	for _, flag := range analysis.Flags {
		s.appendFlag(fmt.Sprintf("%s_%s: %s", persona, topic, flag))
	}

	// 7. Routing proposal.
	routing := o.route(ctx, persona, analysis, answer)

	// 8. Deterministic override: weak or evasive answers always get a
	// follow-up, no matter what the router proposed.
	if analysis.Quality.NeedsFollowUp() && routing.Action != ActionFollowUp {
		routing.Action = ActionFollowUp
		routing.Reason = fmt.Sprintf("forced follow-up: answer quality was %s", analysis.Quality)
	}

	// 9. Expand the routed action into queue mutations.
	o.applyRouting(ctx, routing, pending, analysis, answer)

	// 10. Advance the plan cursor only for planned questions.
	if pending.fromPlan {
		s.currentIndex++
	}

	o.logger.Info("turn processed",
		zap.Int("turn", turn.TurnNumber),
		zap.String("persona", string(persona)),
		zap.String("quality", string(analysis.Quality)),
		zap.String("action", string(routing.Action)),
	)

	return &TurnResult{
		Turn:          turn,
		Analysis:      analysis,
		Consistency:   consistency,
		Routing:       routing,
		InterviewOver: s.done(),
	}, nil
}

// processIceBreakerAnswer records the warm-up exchange without analysis,
// routing, or coverage effects. Caller must hold the session lock.
func (o *Orchestrator) processIceBreakerAnswer(pending *pendingQuestion, answer string, voice *VoiceMetrics) *TurnResult {
	s := o.session
	turn := &TurnRecord{
		TurnNumber: len(s.history) + 1,
		Persona:    pending.item.Persona,
		Question:   pending.item.Question,
		Topic:      TopicIceBreaker,
		Answer:     answer,
		Analysis:   AnswerAnalysis{Quality: QualityNotScored},
		Voice:      voice,
	}
	s.history = append(s.history, turn)

	return &TurnResult{
		Turn:     turn,
		Analysis: turn.Analysis,
		Routing: RoutingDecision{
			Action:      ActionNextPlanned,
			NextPersona: PersonaHM,
			Reason:      "ice breaker done",
		},
		InterviewOver: s.done(),
	}
}

// generateIceBreaker asks for the warm-up question. A failed capability call
// skips the ice breaker instead of blocking the interview start.
func (o *Orchestrator) generateIceBreaker(ctx context.Context) *pendingQuestion {
	s := o.session
	text, err := o.caps.GenerateIceBreaker(ctx, IceBreakerRequest{
		Company: s.Company,
		Role:    s.Role,
		Brief:   s.Brief,
	})
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if err != nil || text == "" {
		if err != nil {
			o.logger.Warn("ice breaker skipped", zap.Error(err))
		}
		return nil
	}

	return &pendingQuestion{
		item: PlanItem{
			Question: text,
			Persona:  PersonaHM,
			Topic:    TopicIceBreaker,
		},
		iceBreaker: true,
	}
}

// materialize turns a plan or dynamic item into concrete question text plus
// hints, conditioned on a bounded history window. On capability failure the
// item's seed question is used as-is. Caller must hold the session lock.
func (o *Orchestrator) materialize(ctx context.Context, item PlanItem, fromPlan bool) *pendingQuestion {
	s := o.session

	generated, err := o.caps.GenerateQuestion(ctx, QuestionRequest{
		Topic:          item.Topic,
		Persona:        item.Persona,
		Depth:          item.Depth,
		HistorySummary: o.historySummary(),
		Brief:          s.Brief,
	})
	if err != nil {
		o.logger.Warn("question generation degraded to plan seed",
			zap.String("topic", item.Topic),
			zap.Error(err),
		)
	}
	if text := strings.TrimSpace(generated.Question); text != "" {
		item.Question = text
	}

	hints, err := o.caps.GenerateHints(ctx, HintRequest{
		Question: item.Question,
		Persona:  item.Persona,
		Brief:    s.Brief,
	})
	if err != nil {
		o.logger.Warn("hint generation degraded",
			zap.String("topic", item.Topic),
			zap.Error(err),
		)
	}

	return &pendingQuestion{
		item:      item,
		hints:     hints,
		fromPlan:  fromPlan,
		rationale: generated.Rationale,
	}
}

// checkConsistency runs the full-history check and folds newly reported
// contradictions into the deduplicated flag log. Caller must hold the
// session lock.
func (o *Orchestrator) checkConsistency(ctx context.Context) ConsistencyReport {
	s := o.session
	exchanges := make([]Exchange, 0, len(s.history))
	for _, t := range s.history {
		exchanges = append(exchanges, Exchange{
			Question: t.Question,
			Answer:   t.Answer,
			Persona:  t.Persona,
		})
	}

	report, err := o.caps.CheckConsistency(ctx, exchanges)
	if err != nil {
		o.logger.Warn("consistency check degraded", zap.Error(err))
		return TriviallyConsistent()
	}

	if !report.Consistent {
		for _, c := range report.Contradictions {
			s.appendFlag("inconsistency: " + truncateRunes(c.Description, contradictionRunes))
		}
	}

	return report
}

// route asks the routing capability for the next action. Failures degrade to
// plain plan advancement. Caller must hold the session lock.
func (o *Orchestrator) route(ctx context.Context, persona Persona, analysis AnswerAnalysis, answer string) RoutingDecision {
	s := o.session

	var remaining []string
	for _, item := range s.plan[min(s.currentIndex+1, len(s.plan)):] {
		remaining = append(remaining, item.Topic)
		if len(remaining) == remainingTopicsCap {
			break
		}
	}

	flags := s.flags
	if len(flags) > flagWindow {
		flags = flags[len(flags)-flagWindow:]
	}

	routing, err := o.caps.Route(ctx, RouteRequest{
		CurrentPersona:  persona,
		AnswerQuality:   analysis.Quality,
		RemainingTopics: remaining,
		Flags:           flags,
		AnswerSummary:   truncateRunes(answer, answerSummaryRunes),
	})
	if err != nil {
		o.logger.Warn("routing degraded to plan advancement", zap.Error(err))
		return RoutingDecision{Action: ActionNextPlanned, NextPersona: persona}
	}

	if routing.Action == "" {
		routing.Action = ActionNextPlanned
	}
	return routing
}

// applyRouting expands follow-up and dynamic-question actions into queue
// mutations. A follow-up at the chain-depth limit is silently not expanded
// and the interview falls through to ordinary plan advancement. Caller must
// hold the session lock.
func (o *Orchestrator) applyRouting(ctx context.Context, routing RoutingDecision, pending *pendingQuestion, analysis AnswerAnalysis, answer string) {
	s := o.session

	switch routing.Action {
	case ActionFollowUp:
		if o.chainDepth() >= maxChainDepth {
			o.logger.Debug("follow-up suppressed at chain depth limit")
			return
		}

		asker, ok := o.panel[pending.item.Persona]
		if !ok {
			return
		}

		followUp, err := asker.GenerateFollowUp(ctx, pending.item.Question, answer, analysis, s.Brief)
		followUp = strings.TrimSpace(followUp)
		if err != nil || followUp == "" {
			if err != nil {
				o.logger.Warn("follow-up generation degraded", zap.Error(err))
			}
			return
		}

		// Follow-ups preempt everything else in the queue.
		s.dynamicQueue = append([]PlanItem{{
			Question: followUp,
			Persona:  pending.item.Persona,
			Topic:    followUpTopic(pending.item.Topic),
			Priority: "high",
			Depth:    "deep",
		}}, s.dynamicQueue...)

	case ActionDynamicQuestion:
		topic := strings.TrimSpace(routing.SuggestedTopic)
		if topic == "" {
			topic = "general"
		}
		persona := routing.NextPersona
		if persona == "" {
			persona = pending.item.Persona
		}
		s.dynamicQueue = append(s.dynamicQueue, PlanItem{
			Persona:  NormalizePersona(string(persona)),
			Topic:    topic,
			Priority: "high",
			Depth:    "moderate",
		})
	}
}

// chainDepth counts consecutive non-planned turns at the tail of the answer
// history, including the turn just recorded. Caller must hold the session lock.
func (o *Orchestrator) chainDepth() int {
	depth := 0
	for i := len(o.session.history) - 1; i >= 0; i-- {
		if o.session.history[i].FromPlan {
			break
		}
		depth++
	}
	return depth
}

// historySummary renders the bounded window of recent turns used for
// question-generation continuity. Caller must hold the session lock.
func (o *Orchestrator) historySummary() string {
	history := o.session.history
	if len(history) == 0 {
		return "No questions asked yet."
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var b strings.Builder
	for i, t := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s -> %s", t.Persona, truncateRunes(t.Question, 60), t.Analysis.Quality)
	}
	return b.String()
}

// followUpTopic tags a topic as a follow-up without stacking tags on chained
// follow-ups.
func followUpTopic(topic string) string {
	return strings.TrimSuffix(topic, " (follow-up)") + " (follow-up)"
}

func renderPending(p *pendingQuestion) *Question {
	return &Question{
		Question:   p.item.Question,
		Persona:    p.item.Persona,
		Topic:      p.item.Topic,
		Hints:      p.hints,
		Rationale:  p.rationale,
		IceBreaker: p.iceBreaker,
	}
}
