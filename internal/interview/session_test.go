package interview

import (
	"testing"
)

func testSession() *Session {
	return NewSession("s-1", "Acme", "Backend Engineer", "text", "stub-model", 4, nil)
}

func TestSetPlanSeedsCoverage(t *testing.T) {
	s := testSession()
	s.SetPlan([]PlanItem{
		{Question: "q1", Persona: PersonaHM, Topic: "background"},
		{Question: "q2", Persona: PersonaTech, Topic: "golang"},
	})

	cov := s.CoverageState()
	if len(cov.Covered) != 0 {
		t.Errorf("covered = %v, want empty", cov.Covered)
	}
	if len(cov.Remaining) != 2 || cov.Remaining[0] != "background" || cov.Remaining[1] != "golang" {
		t.Errorf("remaining = %v, want [background golang]", cov.Remaining)
	}
}

func TestCoverTopicMigratesOnce(t *testing.T) {
	s := testSession()
	s.SetPlan([]PlanItem{
		{Question: "q1", Topic: "golang"},
		{Question: "q2", Topic: "teamwork"},
	})

	s.mu.Lock()
	s.coverTopic("golang")
	s.coverTopic("golang")
	s.coverTopic("not-planned")
	s.mu.Unlock()

	cov := s.CoverageState()
	if len(cov.Covered) != 1 || cov.Covered[0] != "golang" {
		t.Errorf("covered = %v, want [golang]", cov.Covered)
	}
	if len(cov.Remaining) != 1 || cov.Remaining[0] != "teamwork" {
		t.Errorf("remaining = %v, want [teamwork]", cov.Remaining)
	}
}

func TestAppendFlagDeduplicates(t *testing.T) {
	s := testSession()

	s.mu.Lock()
	first := s.appendFlag("Tech_golang: vague")
	again := s.appendFlag("Tech_golang: vague")
	other := s.appendFlag("inconsistency: dates do not line up")
	s.mu.Unlock()

	if !first || !other {
		t.Error("new flags must report true")
	}
	if again {
		t.Error("duplicate flag must report false")
	}

	flags := s.Flags()
	if len(flags) != 2 {
		t.Fatalf("flags = %v, want 2 entries", flags)
	}
	if flags[0] != "Tech_golang: vague" {
		t.Errorf("insertion order lost: %v", flags)
	}
}

func TestAttachVoiceMetrics(t *testing.T) {
	s := testSession()
	s.history = append(s.history, &TurnRecord{TurnNumber: 1, Answer: "hi"})

	vm := &VoiceMetrics{FillerCount: 3, AnswerDurationS: 12.5}
	if !s.AttachVoiceMetrics(1, vm) {
		t.Fatal("attach to existing turn must succeed")
	}
	if s.History()[0].Voice != vm {
		t.Error("voice metrics not attached to turn")
	}

	if s.AttachVoiceMetrics(0, vm) {
		t.Error("turn 0 must be rejected")
	}
	if s.AttachVoiceMetrics(2, vm) {
		t.Error("turn beyond history must be rejected")
	}
	if s.AttachVoiceMetrics(1, nil) {
		t.Error("nil metrics must be rejected")
	}
}

func TestDone(t *testing.T) {
	s := testSession()
	if !s.Done() {
		t.Error("empty session with no plan is immediately done")
	}

	s.SetPlan([]PlanItem{{Question: "q1", Topic: "t1"}})
	if s.Done() {
		t.Error("unasked plan item means not done")
	}

	s.mu.Lock()
	s.currentIndex = 1
	s.dynamicQueue = []PlanItem{{Topic: "t1 (follow-up)"}}
	s.mu.Unlock()
	if s.Done() {
		t.Error("queued follow-up means not done")
	}

	s.mu.Lock()
	s.dynamicQueue = nil
	s.pending = &pendingQuestion{}
	s.mu.Unlock()
	if s.Done() {
		t.Error("pending question means not done")
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	if !s.Done() {
		t.Error("exhausted plan with empty queue is done")
	}
}

func TestSnapshot(t *testing.T) {
	s := testSession()
	s.SetPlan([]PlanItem{
		{Question: "q1", Topic: "t1"},
		{Question: "q2", Topic: "t2"},
	})

	s.mu.Lock()
	s.currentIndex = 1
	s.history = append(s.history, &TurnRecord{TurnNumber: 1})
	s.appendFlag("HM_t1: rambling")
	s.coverTopic("t1")
	s.mu.Unlock()

	snap := s.Snapshot()
	if snap.SessionID != "s-1" || snap.Company != "Acme" {
		t.Errorf("identity fields wrong: %+v", snap)
	}
	if snap.CurrentIndex != 1 || snap.TotalQuestions != 2 || snap.AnswersGiven != 1 || snap.FlagsCount != 1 {
		t.Errorf("progress fields wrong: %+v", snap)
	}
	if len(snap.Coverage.Covered) != 1 || len(snap.Coverage.Remaining) != 1 {
		t.Errorf("coverage wrong: %+v", snap.Coverage)
	}
}
