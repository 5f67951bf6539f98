package interview

import (
	"context"
	"fmt"
	"strings"
)

const observationExcerptRunes = 200

// personaStyles holds each variant's questioning style, injected into the
// question, follow-up and ice-breaker prompts.
var personaStyles = map[Persona]string{
	PersonaHM:   "Warm but sharp. Start friendly, then ask the real question. Focus on business fit, culture alignment, and leadership.",
	PersonaTech: "Dry and precise. No fluff. If the answer is vague, say 'Can you be more specific?'. Focus on technical depth, architecture understanding, and problem-solving.",
	PersonaHR:   "Friendly and empathetic but persistent. Dig into motivations, soft skills, career goals, and realistic expectations.",
}

// personaTools names the external tools each variant may reach for. The tool
// implementations live outside this module; the names travel with capability
// requests so the provider can enable them.
var personaTools = map[Persona][]string{
	PersonaHM:   nil,
	PersonaTech: {"web_scrape", "web_search"},
	PersonaHR:   {"web_search"},
}

// StyleFor returns the questioning style text for a persona, used by
// capability implementations to condition question and follow-up prompts.
func StyleFor(p Persona) string {
	return personaStyles[NormalizePersona(string(p))]
}

// QARecord is one question/answer pair remembered by the persona that asked it.
type QARecord struct {
	Question string
	Answer   string
	Quality  Quality
	Flags    []string
}

// Observation is a note about another persona's exchange, letting a persona
// reference other interviewers' findings in its follow-ups.
type Observation struct {
	Persona       Persona
	Question      string
	AnswerExcerpt string
}

// Interviewer is one interview persona: a fixed style, independent Q&A
// memory, and a cross-persona observation log. All three personas share this
// single type; behavior varies only by the style and tool tables above.
type Interviewer struct {
	Kind  Persona
	Style string
	Tools []string

	caps         Capabilities
	qaMemory     []QARecord
	observations []Observation
}

// NewPanel builds the full interviewer panel over the shared capability port.
func NewPanel(caps Capabilities) map[Persona]*Interviewer {
	panel := make(map[Persona]*Interviewer, 3)
	for _, p := range Personas() {
		panel[p] = &Interviewer{
			Kind:  p,
			Style: personaStyles[p],
			Tools: personaTools[p],
			caps:  caps,
		}
	}
	return panel
}

// RecordQA appends an exchange this persona conducted to its own memory.
func (i *Interviewer) RecordQA(question, answer string, analysis AnswerAnalysis) {
	i.qaMemory = append(i.qaMemory, QARecord{
		Question: question,
		Answer:   answer,
		Quality:  analysis.Quality,
		Flags:    analysis.Flags,
	})
}

// Observe records a truncated note about another persona's exchange.
func (i *Interviewer) Observe(from Persona, question, answer string) {
	i.observations = append(i.observations, Observation{
		Persona:       from,
		Question:      question,
		AnswerExcerpt: truncateRunes(answer, observationExcerptRunes),
	})
}

// Memory returns this persona's own Q&A records.
func (i *Interviewer) Memory() []QARecord {
	out := make([]QARecord, len(i.qaMemory))
	copy(out, i.qaMemory)
	return out
}

// Observations returns the cross-persona notes this persona has collected.
func (i *Interviewer) Observations() []Observation {
	out := make([]Observation, len(i.observations))
	copy(out, i.observations)
	return out
}

// MemorySummary renders a compact view of this persona's own exchanges.
func (i *Interviewer) MemorySummary() string {
	if len(i.qaMemory) == 0 {
		return "No questions asked yet."
	}
	var b strings.Builder
	for n, qa := range i.qaMemory {
		if n > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Q%d (%s): %s", n+1, qa.Quality, truncateRunes(qa.Question, 80))
	}
	return b.String()
}

// GenerateFollowUp composes a single probing question reacting to specifics
// in the answer just heard. It runs as an isolated capability exchange so it
// never pollutes longer-running conversational context.
func (i *Interviewer) GenerateFollowUp(ctx context.Context, lastQuestion, lastAnswer string, analysis AnswerAnalysis, brief Brief) (string, error) {
	return i.caps.GenerateFollowUp(ctx, FollowUpRequest{
		Persona:      i.Kind,
		PersonaStyle: i.Style,
		LastQuestion: lastQuestion,
		LastAnswer:   lastAnswer,
		Analysis:     analysis,
		Brief:        brief,
	})
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
