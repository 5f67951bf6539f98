package interview

import (
	"context"
)

// capsStub is a scripted Capabilities implementation. Unset hooks return
// neutral results, matching the degrade-on-failure contract real providers
// follow.
type capsStub struct {
	plan        func(PlanRequest) ([]PlanItem, error)
	iceBreaker  func(IceBreakerRequest) (string, error)
	question    func(QuestionRequest) (GeneratedQuestion, error)
	hints       func(HintRequest) (Hints, error)
	analyze     func(question, answer string, persona Persona) (AnswerAnalysis, error)
	consistency func([]Exchange) (ConsistencyReport, error)
	route       func(RouteRequest) (RoutingDecision, error)
	followUp    func(FollowUpRequest) (string, error)
	star        func(string) (STARResult, error)
	improve     func(ImproveRequest) (ImprovedAnswer, error)
	scorecard   func(ScorecardRequest) (Scorecard, error)

	consistencyCalls int
	improveCalls     int
}

func (c *capsStub) GeneratePlan(_ context.Context, req PlanRequest) ([]PlanItem, error) {
	if c.plan != nil {
		return c.plan(req)
	}
	return []PlanItem{}, nil
}

func (c *capsStub) GenerateIceBreaker(_ context.Context, req IceBreakerRequest) (string, error) {
	if c.iceBreaker != nil {
		return c.iceBreaker(req)
	}
	return "How is your day going so far?", nil
}

func (c *capsStub) GenerateQuestion(_ context.Context, req QuestionRequest) (GeneratedQuestion, error) {
	if c.question != nil {
		return c.question(req)
	}
	return GeneratedQuestion{}, nil
}

func (c *capsStub) GenerateHints(_ context.Context, req HintRequest) (Hints, error) {
	if c.hints != nil {
		return c.hints(req)
	}
	return Hints{}, nil
}

func (c *capsStub) AnalyzeAnswer(_ context.Context, question, answer string, persona Persona) (AnswerAnalysis, error) {
	if c.analyze != nil {
		return c.analyze(question, answer, persona)
	}
	return NeutralAnalysis(), nil
}

func (c *capsStub) CheckConsistency(_ context.Context, exchanges []Exchange) (ConsistencyReport, error) {
	c.consistencyCalls++
	if c.consistency != nil {
		return c.consistency(exchanges)
	}
	return TriviallyConsistent(), nil
}

func (c *capsStub) Route(_ context.Context, req RouteRequest) (RoutingDecision, error) {
	if c.route != nil {
		return c.route(req)
	}
	return RoutingDecision{Action: ActionNextPlanned, NextPersona: req.CurrentPersona}, nil
}

func (c *capsStub) GenerateFollowUp(_ context.Context, req FollowUpRequest) (string, error) {
	if c.followUp != nil {
		return c.followUp(req)
	}
	return "Can you walk me through a concrete example?", nil
}

func (c *capsStub) DetectSTAR(_ context.Context, answer string) (STARResult, error) {
	if c.star != nil {
		return c.star(answer)
	}
	return STARResult{}, nil
}

func (c *capsStub) ImproveAnswer(_ context.Context, req ImproveRequest) (ImprovedAnswer, error) {
	c.improveCalls++
	if c.improve != nil {
		return c.improve(req)
	}
	return ImprovedAnswer{ImprovedAnswer: "A better answer."}, nil
}

func (c *capsStub) GenerateScorecard(_ context.Context, req ScorecardRequest) (Scorecard, error) {
	if c.scorecard != nil {
		return c.scorecard(req)
	}
	return Scorecard{}, nil
}

// queuedAnalyses scripts AnalyzeAnswer to pop one verdict per call.
func queuedAnalyses(analyses ...AnswerAnalysis) func(string, string, Persona) (AnswerAnalysis, error) {
	return func(string, string, Persona) (AnswerAnalysis, error) {
		if len(analyses) == 0 {
			return NeutralAnalysis(), nil
		}
		next := analyses[0]
		analyses = analyses[1:]
		return next, nil
	}
}
