package mentor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/eductome/eductome/internal/domain"
)

var (
	// ErrMissingAPIKey indicates no Gemini credential is configured.
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	// ErrNoResponse indicates the model returned empty text.
	ErrNoResponse = errors.New("mentor returned no response text")
)

// Client generates mentor responses. The history passed in includes the
// just-appended user message as its last element; implementations exclude it
// when building remote chat history because it is resent as the current turn.
type Client interface {
	Generate(ctx context.Context, profile *domain.Profile, history []domain.Message, message, imageURI, subject string) (string, error)
}

// Config holds completion client configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
}

// GenAIClient implements Client over the Gemini API.
type GenAIClient struct {
	model       string
	temperature float32
	maxRetries  int

	// send issues one completion attempt. Replaceable in tests.
	send func(ctx context.Context, instruction string, history []*genai.Content, parts []genai.Part) (string, error)
}

// NewGenAIClient creates a Gemini-backed mentor client. It fails fast on a
// missing key; callers that tolerate an unconfigured mentor should wire
// Disabled instead.
func NewGenAIClient(ctx context.Context, cfg Config) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	c := &GenAIClient{
		model:       model,
		temperature: float32(cfg.Temperature),
		maxRetries:  cfg.MaxRetries,
	}
	c.send = func(ctx context.Context, instruction string, history []*genai.Content, parts []genai.Part) (string, error) {
		chatCfg := &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
			Temperature:       genai.Ptr(c.temperature),
		}
		chat, err := client.Chats.Create(ctx, c.model, chatCfg, history)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}
		resp, err := chat.SendMessage(ctx, parts...)
		if err != nil {
			return "", fmt.Errorf("send message: %w", err)
		}
		return resp.Text(), nil
	}
	return c, nil
}

// Generate issues one completion for the current turn, with bounded retries
// on transient failures. The caller controls the overall deadline via ctx.
func (c *GenAIClient) Generate(ctx context.Context, profile *domain.Profile, history []domain.Message, message, imageURI, subject string) (string, error) {
	instruction := SystemInstruction(profile, subject)

	// The last history element is the current user message; slice it off so
	// it is not transmitted twice.
	past := history
	if len(past) > 0 {
		past = past[:len(past)-1]
	}
	remoteHistory := MapHistory(past)

	partPtrs := TurnParts(message, imageURI)
	parts := make([]genai.Part, len(partPtrs))
	for i, p := range partPtrs {
		parts[i] = *p
	}

	var lastErr error
	delay := 500 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying mentor completion", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("mentor completion aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		text, err := c.send(ctx, instruction, remoteHistory, parts)
		if err == nil {
			if text == "" {
				return "", ErrNoResponse
			}
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("mentor completion failed: %w", lastErr)
}

// Disabled is a Client for installations without a configured API key.
// Every call reports the missing credential as a regular error value.
type Disabled struct{}

// Generate always returns ErrMissingAPIKey.
func (Disabled) Generate(context.Context, *domain.Profile, []domain.Message, string, string, string) (string, error) {
	return "", ErrMissingAPIKey
}

// User-facing fallback strings rendered from typed errors. The chat core
// never produces these; only the presentation mapping below does.
const (
	configErrorText       = "Erreur de configuration: API Key manquante."
	connectivityErrorText = "Désolé, je rencontre une difficulté de connexion. Vérifions ta connexion internet ou réessayons."
	noResponseText        = "Je n'ai pas pu générer de réponse."
)

// UserFacingText maps a completion result to displayable content and a
// machine-readable kind (empty kind for a normal reply).
func UserFacingText(text string, err error) (content, kind string) {
	switch {
	case err == nil:
		return text, ""
	case errors.Is(err, ErrMissingAPIKey):
		return configErrorText, domain.KindConfigError
	case errors.Is(err, ErrNoResponse):
		return noResponseText, domain.KindEmpty
	default:
		return connectivityErrorText, domain.KindNetworkError
	}
}
