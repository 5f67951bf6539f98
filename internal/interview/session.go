package interview

import (
	"sync"
)

// TopicIceBreaker tags the optional warm-up exchange that bypasses analysis,
// routing, and coverage.
const TopicIceBreaker = "ice_breaker"

// TurnRecord is the immutable record of one question/answer exchange. Voice
// metrics are the only late-attached field.
type TurnRecord struct {
	TurnNumber  int             `json:"turn_number"`
	Persona     Persona         `json:"persona"`
	Question    string          `json:"question"`
	Topic       string          `json:"topic"`
	FromPlan    bool            `json:"from_plan"`
	Answer      string          `json:"answer"`
	HintUsed    bool            `json:"hint_used"`
	HintBullets Hints           `json:"hint_bullets"`
	Analysis    AnswerAnalysis  `json:"answer_analysis"`
	Voice       *VoiceMetrics   `json:"voice_metrics,omitempty"`
}

// Coverage tracks which planned topics have been addressed. A topic moves
// from Remaining to Covered exactly once, when its planned question is
// answered; dynamic and follow-up turns never touch it.
type Coverage struct {
	Covered   []string `json:"covered"`
	Remaining []string `json:"remaining"`
}

// pendingQuestion is the single outstanding question awaiting an answer.
type pendingQuestion struct {
	item       PlanItem
	hints      Hints
	rationale  string
	fromPlan   bool
	iceBreaker bool
}

// Session is the mutable record of one interview. It is owned by the
// Orchestrator; the embedded mutex serializes answer processing so turn
// numbering and chain-depth accounting stay correct under concurrent
// submissions.
type Session struct {
	mu sync.Mutex

	ID            string
	Company       string
	Role          string
	Mode          string
	Model         string
	QuestionCount int
	Brief         Brief

	plan           []PlanItem
	currentIndex   int
	dynamicQueue   []PlanItem
	history        []*TurnRecord
	coverage       Coverage
	flags          []string
	flagSet        map[string]struct{}
	iceBreakerDone bool
	pending        *pendingQuestion
}

// NewSession creates an empty session. The plan is attached later by the
// planner; until then the termination condition is immediately true.
func NewSession(id, company, role, mode, model string, questionCount int, brief Brief) *Session {
	return &Session{
		ID:            id,
		Company:       company,
		Role:          role,
		Mode:          mode,
		Model:         model,
		QuestionCount: questionCount,
		Brief:         brief,
		flagSet:       make(map[string]struct{}),
	}
}

// SetPlan installs the generated plan and seeds coverage from its topics.
// Called exactly once, before any turn.
func (s *Session) SetPlan(plan []PlanItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plan = plan
	s.coverage = Coverage{
		Covered:   []string{},
		Remaining: make([]string, 0, len(plan)),
	}
	for _, item := range plan {
		s.coverage.Remaining = append(s.coverage.Remaining, item.Topic)
	}
}

// Plan returns a copy of the planned questions.
func (s *Session) Plan() []PlanItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlanItem, len(s.plan))
	copy(out, s.plan)
	return out
}

// History returns the answer history. The returned slice must be treated as
// read-only; turns themselves are append-only records.
func (s *Session) History() []*TurnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*TurnRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Flags returns the deduplicated concern log in insertion order.
func (s *Session) Flags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.flags))
	copy(out, s.flags)
	return out
}

// CoverageState returns a copy of the current topic coverage.
func (s *Session) CoverageState() Coverage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Coverage{
		Covered:   append([]string{}, s.coverage.Covered...),
		Remaining: append([]string{}, s.coverage.Remaining...),
	}
}

// appendFlag adds a concern string unless it was already recorded. Reports
// whether the flag was new. Caller must hold the session lock.
func (s *Session) appendFlag(flag string) bool {
	if _, seen := s.flagSet[flag]; seen {
		return false
	}
	s.flagSet[flag] = struct{}{}
	s.flags = append(s.flags, flag)
	return true
}

// coverTopic migrates a topic from remaining to covered. Repeated calls for
// the same topic are no-ops, keeping the covered/remaining union invariant.
// Caller must hold the session lock.
func (s *Session) coverTopic(topic string) {
	if topic == "" {
		return
	}
	for i, t := range s.coverage.Remaining {
		if t == topic {
			s.coverage.Remaining = append(s.coverage.Remaining[:i], s.coverage.Remaining[i+1:]...)
			s.coverage.Covered = append(s.coverage.Covered, topic)
			return
		}
	}
}

// AttachVoiceMetrics is the out-of-band, fire-once voice update for an
// already-recorded turn.
func (s *Session) AttachVoiceMetrics(turnNumber int, vm *VoiceMetrics) bool {
	if vm == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if turnNumber < 1 || turnNumber > len(s.history) {
		return false
	}
	s.history[turnNumber-1].Voice = vm
	return true
}

// Snapshot is a read-only progress view of a session.
type Snapshot struct {
	SessionID      string   `json:"session_id"`
	Company        string   `json:"company"`
	Role           string   `json:"role"`
	Mode           string   `json:"mode"`
	CurrentIndex   int      `json:"current_index"`
	TotalQuestions int      `json:"total_questions"`
	AnswersGiven   int      `json:"answers_given"`
	FlagsCount     int      `json:"flags_count"`
	Coverage       Coverage `json:"coverage"`
}

// Snapshot returns the current progress view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:      s.ID,
		Company:        s.Company,
		Role:           s.Role,
		Mode:           s.Mode,
		CurrentIndex:   s.currentIndex,
		TotalQuestions: len(s.plan),
		AnswersGiven:   len(s.history),
		FlagsCount:     len(s.flags),
		Coverage: Coverage{
			Covered:   append([]string{}, s.coverage.Covered...),
			Remaining: append([]string{}, s.coverage.Remaining...),
		},
	}
}

// done reports the termination condition: plan exhausted and dynamic queue
// drained. Pure function of state; caller must hold the session lock.
func (s *Session) done() bool {
	return s.currentIndex >= len(s.plan) && len(s.dynamicQueue) == 0 && s.pending == nil
}

// Done reports whether the interview is over.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done()
}
