package interview

import (
	"context"

	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/logger"
)

// Planner produces the initial ordered question plan from the research
// brief. It runs exactly once per session.
type Planner struct {
	caps   Capabilities
	logger *zap.Logger
}

func NewPlanner(caps Capabilities, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{caps: caps, logger: logger}
}

// BuildPlan generates the plan and installs it on the session, seeding topic
// coverage. When the capability fails or its output cannot be parsed, the
// session gets an empty plan: the interview then has nothing to ask, which
// is a valid (immediately terminated) state rather than an error.
func (p *Planner) BuildPlan(ctx context.Context, s *Session) []PlanItem {
	log := logger.WithSession(p.logger, s.ID)

	plan, err := p.caps.GeneratePlan(ctx, PlanRequest{
		Company:       s.Company,
		Role:          s.Role,
		QuestionCount: s.QuestionCount,
		Brief:         s.Brief,
	})
	if err != nil {
		log.Warn("plan generation degraded to empty plan", zap.Error(err))
	}

	for i := range plan {
		plan[i].Persona = NormalizePersona(string(plan[i].Persona))
		if plan[i].Topic == "" {
			plan[i].Topic = "general"
		}
	}

	s.SetPlan(plan)

	log.Info("interview plan generated",
		zap.Int("requested", s.QuestionCount),
		zap.Int("planned", len(plan)),
	)

	return plan
}
