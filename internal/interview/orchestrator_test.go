package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestOrchestrator(caps *capsStub, plan []PlanItem) *Orchestrator {
	s := testSession()
	s.SetPlan(plan)
	o := NewOrchestrator(caps, NewPanel(caps), s, zap.NewNop())
	// Skip the ice breaker unless a test opts back in.
	o.randFloat = func() float64 { return 0.99 }
	return o
}

func fourQuestionPlan() []PlanItem {
	return []PlanItem{
		{Question: "seed q1", Persona: PersonaHM, Topic: "background", Depth: "surface"},
		{Question: "seed q2", Persona: PersonaTech, Topic: "golang", Depth: "deep"},
		{Question: "seed q3", Persona: PersonaTech, Topic: "system design", Depth: "deep"},
		{Question: "seed q4", Persona: PersonaHR, Topic: "motivation", Depth: "moderate"},
	}
}

func TestNextQuestionIsIdempotentWhilePending(t *testing.T) {
	o := newTestOrchestrator(&capsStub{}, fourQuestionPlan())

	first := o.NextQuestion(context.Background())
	if first == nil {
		t.Fatal("expected a question")
	}
	second := o.NextQuestion(context.Background())
	if second == nil || second.Question != first.Question || second.Topic != first.Topic {
		t.Errorf("re-poll returned a different question: %+v vs %+v", first, second)
	}

	snap := o.Session().Snapshot()
	if snap.CurrentIndex != 0 {
		t.Errorf("polling must not advance the cursor, index = %d", snap.CurrentIndex)
	}
}

func TestProcessAnswerWithoutPending(t *testing.T) {
	o := newTestOrchestrator(&capsStub{}, fourQuestionPlan())

	_, err := o.ProcessAnswer(context.Background(), "hello?", false, nil)
	if !errors.Is(err, ErrNoPendingQuestion) {
		t.Errorf("err = %v, want ErrNoPendingQuestion", err)
	}
}

func TestQuestionMaterializationFallsBackToSeed(t *testing.T) {
	caps := &capsStub{
		question: func(QuestionRequest) (GeneratedQuestion, error) {
			return GeneratedQuestion{}, errors.New("model unavailable")
		},
		hints: func(HintRequest) (Hints, error) {
			return Hints{}, errors.New("model unavailable")
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	q := o.NextQuestion(context.Background())
	if q == nil {
		t.Fatal("expected a question despite capability failures")
	}
	if q.Question != "seed q1" {
		t.Errorf("question = %q, want the plan seed", q.Question)
	}
}

func TestIceBreakerFlow(t *testing.T) {
	caps := &capsStub{
		iceBreaker: func(req IceBreakerRequest) (string, error) {
			if req.Company != "Acme" {
				t.Errorf("brief context not forwarded: %+v", req)
			}
			return "\"Any fun plans for the weekend?\"", nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())
	o.randFloat = func() float64 { return 0.1 }

	q := o.NextQuestion(context.Background())
	if q == nil || !q.IceBreaker {
		t.Fatalf("expected an ice breaker, got %+v", q)
	}
	if q.Persona != PersonaHM || q.Topic != TopicIceBreaker {
		t.Errorf("ice breaker attribution wrong: %+v", q)
	}
	if q.Question != "Any fun plans for the weekend?" {
		t.Errorf("quotes not stripped: %q", q.Question)
	}

	result, err := o.ProcessAnswer(context.Background(), "Going hiking!", false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Analysis.Quality != QualityNotScored {
		t.Errorf("ice breaker quality = %q, want n/a", result.Analysis.Quality)
	}
	if result.Routing.Action != ActionNextPlanned {
		t.Errorf("ice breaker routing = %q, want next_planned", result.Routing.Action)
	}

	// The warm-up never touches coverage or the plan cursor.
	snap := o.Session().Snapshot()
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor moved on ice breaker: %d", snap.CurrentIndex)
	}
	if len(snap.Coverage.Covered) != 0 {
		t.Errorf("coverage touched by ice breaker: %v", snap.Coverage.Covered)
	}
	if caps.consistencyCalls != 0 {
		t.Error("ice breaker must bypass consistency checking")
	}

	next := o.NextQuestion(context.Background())
	if next == nil || next.IceBreaker {
		t.Errorf("expected first planned question after ice breaker, got %+v", next)
	}
}

func TestIceBreakerSkippedWhenCapabilityFails(t *testing.T) {
	caps := &capsStub{
		iceBreaker: func(IceBreakerRequest) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())
	o.randFloat = func() float64 { return 0.1 }

	q := o.NextQuestion(context.Background())
	if q == nil || q.IceBreaker {
		t.Fatalf("expected fall-through to the plan, got %+v", q)
	}
	if q.Topic != "background" {
		t.Errorf("topic = %q, want first planned topic", q.Topic)
	}
}

func TestWeakAnswerForcesFollowUp(t *testing.T) {
	caps := &capsStub{
		analyze: queuedAnalyses(AnswerAnalysis{Quality: QualityWeak, Summary: "vague"}),
		route: func(RouteRequest) (RoutingDecision, error) {
			// The router proposes moving on; the override must win.
			return RoutingDecision{Action: ActionNextPlanned, NextPersona: PersonaTech}, nil
		},
		followUp: func(FollowUpRequest) (string, error) {
			return "What exactly did you build?", nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	o.NextQuestion(context.Background())
	result, err := o.ProcessAnswer(context.Background(), "I did some stuff.", false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Routing.Action != ActionFollowUp {
		t.Errorf("action = %q, want forced follow_up", result.Routing.Action)
	}
	if !strings.Contains(result.Routing.Reason, "weak") {
		t.Errorf("override reason should name the quality: %q", result.Routing.Reason)
	}

	next := o.NextQuestion(context.Background())
	if next == nil {
		t.Fatal("expected the follow-up next")
	}
	if next.Question != "What exactly did you build?" {
		t.Errorf("next question = %q, want the follow-up", next.Question)
	}
	if next.Persona != PersonaHM {
		t.Errorf("follow-up persona = %q, want the asker", next.Persona)
	}
	if next.Topic != "background (follow-up)" {
		t.Errorf("follow-up topic = %q", next.Topic)
	}
}

func TestFollowUpTopicTagDoesNotStack(t *testing.T) {
	if got := followUpTopic("golang"); got != "golang (follow-up)" {
		t.Errorf("got %q", got)
	}
	if got := followUpTopic("golang (follow-up)"); got != "golang (follow-up)" {
		t.Errorf("tag stacked: %q", got)
	}
}

func TestChainDepthLimit(t *testing.T) {
	caps := &capsStub{
		analyze: func(string, string, Persona) (AnswerAnalysis, error) {
			return AnswerAnalysis{Quality: QualityWeak}, nil
		},
		followUp: func(FollowUpRequest) (string, error) {
			return "And then what happened?", nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	// Every answer is weak, so every turn wants a follow-up. The chain cap
	// must still prevent three consecutive unplanned turns.
	unplannedRun := 0
	for i := 0; i < 20; i++ {
		q := o.NextQuestion(context.Background())
		if q == nil {
			break
		}
		if _, err := o.ProcessAnswer(context.Background(), "it was hard", false, nil); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}

	history := o.Session().History()
	if len(history) == 0 {
		t.Fatal("no turns recorded")
	}
	for _, turn := range history {
		if turn.FromPlan {
			unplannedRun = 0
			continue
		}
		unplannedRun++
		if unplannedRun > 2 {
			t.Fatalf("three consecutive unplanned turns ending at turn %d", turn.TurnNumber)
		}
	}

	// All four planned questions still got asked.
	planned := 0
	for _, turn := range history {
		if turn.FromPlan {
			planned++
		}
	}
	if planned != 4 {
		t.Errorf("planned turns = %d, want 4", planned)
	}
	if !o.ShouldEnd() {
		t.Error("interview must terminate once plan and queue drain")
	}
}

func TestCursorAdvancesOnlyForPlannedQuestions(t *testing.T) {
	caps := &capsStub{
		analyze: queuedAnalyses(
			AnswerAnalysis{Quality: QualityWeak},
			AnswerAnalysis{Quality: QualityStrong},
		),
		followUp: func(FollowUpRequest) (string, error) {
			return "Could you be more specific?", nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	o.NextQuestion(context.Background())
	o.ProcessAnswer(context.Background(), "vague answer", false, nil)
	if idx := o.Session().Snapshot().CurrentIndex; idx != 1 {
		t.Fatalf("index after planned turn = %d, want 1", idx)
	}

	q := o.NextQuestion(context.Background())
	if q == nil || !strings.Contains(q.Topic, "follow-up") {
		t.Fatalf("expected the follow-up, got %+v", q)
	}
	o.ProcessAnswer(context.Background(), "a precise answer", false, nil)
	if idx := o.Session().Snapshot().CurrentIndex; idx != 1 {
		t.Errorf("index after follow-up turn = %d, want unchanged 1", idx)
	}
}

func TestFlagsAreNamespacedAndDeduplicated(t *testing.T) {
	caps := &capsStub{
		analyze: func(string, string, Persona) (AnswerAnalysis, error) {
			return AnswerAnalysis{Quality: QualityAdequate, Flags: []string{"buzzword_salad", "buzzword_salad"}}, nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	o.NextQuestion(context.Background())
	o.ProcessAnswer(context.Background(), "synergy leverage cloud", false, nil)

	flags := o.Session().Flags()
	if len(flags) != 1 {
		t.Fatalf("flags = %v, want 1 deduplicated entry", flags)
	}
	if flags[0] != "HM_background: buzzword_salad" {
		t.Errorf("flag = %q, want persona_topic namespace", flags[0])
	}
}

func TestConsistencyCheckStartsAtThreeTurns(t *testing.T) {
	caps := &capsStub{
		consistency: func(exchanges []Exchange) (ConsistencyReport, error) {
			return ConsistencyReport{
				Consistent: false,
				Contradictions: []Contradiction{
					{Description: strings.Repeat("d", 150)},
				},
			}, nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	for i := 0; i < 2; i++ {
		o.NextQuestion(context.Background())
		result, _ := o.ProcessAnswer(context.Background(), "fine", false, nil)
		if result.Consistency != nil {
			t.Errorf("turn %d: consistency checked too early", i+1)
		}
	}
	if caps.consistencyCalls != 0 {
		t.Fatalf("consistency called %d times before turn 3", caps.consistencyCalls)
	}

	o.NextQuestion(context.Background())
	result, _ := o.ProcessAnswer(context.Background(), "fine", false, nil)
	if result.Consistency == nil {
		t.Fatal("turn 3 must carry a consistency report")
	}
	if caps.consistencyCalls != 1 {
		t.Errorf("consistency calls = %d, want 1", caps.consistencyCalls)
	}

	// Contradictions land in the flag log, truncated to 100 runes.
	flags := o.Session().Flags()
	if len(flags) != 1 {
		t.Fatalf("flags = %v, want the inconsistency entry", flags)
	}
	want := "inconsistency: " + strings.Repeat("d", 100)
	if flags[0] != want {
		t.Errorf("flag = %q, want %q", flags[0], want)
	}
}

func TestDynamicQuestionAppendsToQueueBack(t *testing.T) {
	routes := []RoutingDecision{
		{Action: ActionDynamicQuestion, NextPersona: PersonaTech, SuggestedTopic: "incident response"},
	}
	caps := &capsStub{
		analyze: func(string, string, Persona) (AnswerAnalysis, error) {
			return AnswerAnalysis{Quality: QualityStrong}, nil
		},
		route: func(req RouteRequest) (RoutingDecision, error) {
			if len(routes) == 0 {
				return RoutingDecision{Action: ActionNextPlanned, NextPersona: req.CurrentPersona}, nil
			}
			next := routes[0]
			routes = routes[1:]
			return next, nil
		},
		question: func(req QuestionRequest) (GeneratedQuestion, error) {
			return GeneratedQuestion{Question: "generated for " + req.Topic}, nil
		},
	}
	o := newTestOrchestrator(caps, fourQuestionPlan())

	o.NextQuestion(context.Background())
	o.ProcessAnswer(context.Background(), "good answer", false, nil)

	// The dynamic question goes to the back conceptually, but with an empty
	// queue it is simply next.
	q := o.NextQuestion(context.Background())
	if q == nil {
		t.Fatal("expected the dynamic question")
	}
	if q.Topic != "incident response" || q.Persona != PersonaTech {
		t.Errorf("dynamic question = %+v", q)
	}
	if q.Question != "generated for incident response" {
		t.Errorf("dynamic question text = %q", q.Question)
	}
}

func TestFullInterviewScenario(t *testing.T) {
	plan := fourQuestionPlan()
	// Keep HR out of the panel's asked set to exercise score filtering later.
	plan[3].Persona = PersonaTech

	caps := &capsStub{
		analyze: queuedAnalyses(
			AnswerAnalysis{Quality: QualityStrong},
			AnswerAnalysis{Quality: QualityWeak},
			AnswerAnalysis{Quality: QualityStrong},
			AnswerAnalysis{Quality: QualityAdequate, Flags: []string{"buzzword_salad"}},
			AnswerAnalysis{Quality: QualityAdequate},
		),
		followUp: func(FollowUpRequest) (string, error) {
			return "What was your specific contribution?", nil
		},
	}
	o := newTestOrchestrator(caps, plan)

	answers := []string{
		"I led the payments team for three years.",
		"We did some Go stuff.",
		"I wrote the settlement reconciler and its migration tooling myself.",
		"We leveraged synergistic microservices.",
		"I want growth and harder problems.",
	}

	var turns []*TurnResult
	for i, answer := range answers {
		q := o.NextQuestion(context.Background())
		if q == nil {
			t.Fatalf("interview ended early before answer %d", i+1)
		}
		result, err := o.ProcessAnswer(context.Background(), answer, false, nil)
		if err != nil {
			t.Fatalf("answer %d: %v", i+1, err)
		}
		turns = append(turns, result)
	}

	if o.NextQuestion(context.Background()) != nil {
		t.Error("no sixth question expected")
	}
	if !o.ShouldEnd() {
		t.Error("interview must be over after five turns")
	}

	// Turn 2 was weak, so turn 3 is its follow-up.
	if turns[1].Routing.Action != ActionFollowUp {
		t.Errorf("turn 2 action = %q, want follow_up", turns[1].Routing.Action)
	}
	history := o.Session().History()
	if history[2].FromPlan {
		t.Error("turn 3 must be the unplanned follow-up")
	}
	if history[2].Topic != "golang (follow-up)" {
		t.Errorf("turn 3 topic = %q", history[2].Topic)
	}

	// Coverage holds planned topics only; the follow-up topic never appears.
	cov := o.Session().CoverageState()
	if len(cov.Covered) != 4 || len(cov.Remaining) != 0 {
		t.Errorf("coverage = %+v, want all four planned topics covered", cov)
	}
	for _, topic := range cov.Covered {
		if strings.Contains(topic, "follow-up") {
			t.Errorf("follow-up topic leaked into coverage: %q", topic)
		}
	}

	// Now evaluate the finished session.
	caps.scorecard = func(req ScorecardRequest) (Scorecard, error) {
		if len(req.PerQuestion) != 5 {
			t.Errorf("scorecard input turns = %d, want 5", len(req.PerQuestion))
		}
		return Scorecard{
			OverallScore: 68,
			PersonaScores: map[Persona]int{
				PersonaHM:   72,
				PersonaTech: 65,
				PersonaHR:   70, // never asked, must be filtered out
			},
			Strengths:  []string{"specific examples", "ownership", "calm delivery"},
			Weaknesses: []string{"buzzwords", "thin metrics", "short answers"},
			ActionPlan: []string{"a", "b", "c", "d", "e"},
		}, nil
	}

	report, err := NewEvaluator(caps, zap.NewNop()).Evaluate(context.Background(), o.Session())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.OverallScore != 68 {
		t.Errorf("overall = %d, want 68", report.OverallScore)
	}
	if _, ok := report.PersonaScores[PersonaHR]; ok {
		t.Error("HR never asked a question, its score must be filtered out")
	}
	if report.PersonaScores[PersonaHM] != 72 || report.PersonaScores[PersonaTech] != 65 {
		t.Errorf("persona scores = %v", report.PersonaScores)
	}

	// Model answers cover the weak turn and both adequate turns, including
	// the flagged one. Strong turns get none.
	if len(report.ModelAnswers) != 3 {
		t.Fatalf("model answers = %d, want 3", len(report.ModelAnswers))
	}
	gotTurns := map[int]Quality{}
	for _, ma := range report.ModelAnswers {
		gotTurns[ma.TurnNumber] = ma.OriginalQuality
	}
	if gotTurns[2] != QualityWeak {
		t.Errorf("turn 2 model answer quality = %q, want weak", gotTurns[2])
	}
	if gotTurns[4] != QualityAdequate || gotTurns[5] != QualityAdequate {
		t.Errorf("adequate turns missing model answers: %v", gotTurns)
	}
}
