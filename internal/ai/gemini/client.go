package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"

	// Quota errors may ask to wait for minutes. Waiting that long inside a
	// live interview turn is worse than degrading, so long delays abort.
	maxQuotaDelay = 30 * time.Second

	baseBackoff = 2 * time.Second
)

// sleep is a package variable so tests can skip real delays.
var sleep = time.Sleep

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	client *genai.Client
}

func (c *genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return c.client.Chats.Create(ctx, model, config, history)
}

// Generator wraps the Google GenAI client behind a prompt-in/text-out surface.
// Every call runs as a fresh chat, so capability invocations never share
// conversational context.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:      &genaiChats{client: client},
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// GenerateContent sends the message with the given system instruction and
// returns the first textual response. Temporary API failures are retried up
// to the configured attempt count.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		chat, err := g.chats.Create(ctx, g.model, config, nil)
		if err == nil {
			var resp *genai.GenerateContentResponse
			resp, err = chat.SendMessage(ctx, genai.Part{Text: message})
			if err == nil {
				return collectText(resp)
			}
		}

		lastErr = err

		delay, retryable := retryDelay(err, attempt)
		if !retryable || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		sleep(delay)
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// retryDelay reports whether err is worth retrying and how long to wait
// before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == 429:
		delay := quotaDelay(apiErr.Message)
		if delay > maxQuotaDelay {
			return 0, false
		}
		if delay <= 0 {
			delay = baseBackoff * time.Duration(attempt)
		}
		return delay, true
	case apiErr.Code >= 500:
		return baseBackoff * time.Duration(attempt), true
	default:
		return 0, false
	}
}

// quotaDelay extracts a "retry after N seconds" hint from a quota error
// message. Returns 0 when no hint is present.
func quotaDelay(message string) time.Duration {
	fields := strings.Fields(strings.ToLower(message))
	for i, f := range fields {
		if f != "after" || i+1 >= len(fields) {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(fields[i+1], ".,"))
		if err != nil {
			continue
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
