package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelConfig selects and configures the LLM provider for the AI path.
type ModelConfig struct {
	Provider        string // "ollama", "openai", "anthropic"
	Model           string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// NewModel creates a langchaingo model from provider configuration.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "ollama":
		model, err := ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return model, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, nil

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return model, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// LLM is the AI-backed predictor. Any model failure, parse failure, or
// out-of-range answer falls back to the deterministic formula; the flow
// degrades, it never breaks.
type LLM struct {
	model    llms.Model
	fallback Fallback
	logger   *slog.Logger
}

// Compile-time check that LLM implements Predictor.
var _ Predictor = (*LLM)(nil)

// NewLLM creates an AI-backed predictor.
func NewLLM(model llms.Model, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{model: model, logger: logger}
}

const systemPrompt = `You estimate how much a sun-drying session reduces a futon's
dust-mite risk score (0-100). Answer with a single JSON object:
{"score_reduction": <number between 10 and 40>}
Higher temperature, lower humidity, lower rain probability and longer duration
all increase the reduction. No prose, JSON only.`

type llmAnswer struct {
	ScoreReduction float64 `json:"score_reduction"`
}

// Predict asks the model for a score reduction and validates the answer.
func (p *LLM) Predict(ctx context.Context, req Request) (Outcome, error) {
	duration := req.Duration
	if duration == 0 {
		duration = req.Window.Duration()
	}

	userPrompt := fmt.Sprintf(
		"photo: %s\nbefore_score: %.2f\navg_temperature_c: %.1f\navg_humidity_percent: %.1f\navg_precipitation_probability: %.1f\nduration_hours: %.1f",
		req.PhotoRef, req.BeforeScore,
		req.Window.AvgTemperature, req.Window.AvgHumidity,
		req.Window.AvgPrecipitationProbability, duration.Hours(),
	)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := p.model.GenerateContent(ctx, messages)
	if err != nil {
		p.logger.Warn("predictor model call failed, using fallback", "error", err)
		return p.fallback.Predict(ctx, req)
	}
	if len(response.Choices) == 0 {
		p.logger.Warn("predictor model returned no choices, using fallback")
		return p.fallback.Predict(ctx, req)
	}

	answer, err := parseAnswer(response.Choices[0].Content)
	if err != nil {
		p.logger.Warn("predictor answer unparseable, using fallback", "error", err)
		return p.fallback.Predict(ctx, req)
	}
	if answer.ScoreReduction < MinReduction || answer.ScoreReduction > MaxReduction {
		p.logger.Warn("predictor answer out of range, using fallback",
			"score_reduction", answer.ScoreReduction)
		return p.fallback.Predict(ctx, req)
	}

	return clampOutcome(req.BeforeScore, answer.ScoreReduction), nil
}

// parseAnswer extracts the JSON object from a model response, tolerating
// surrounding prose or code fences.
func parseAnswer(content string) (llmAnswer, error) {
	var answer llmAnswer
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return answer, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &answer); err != nil {
		return answer, fmt.Errorf("unmarshal answer: %w", err)
	}
	return answer, nil
}
