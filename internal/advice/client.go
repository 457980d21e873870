package advice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
	"github.com/q950417/smart-diet-bot-clean/internal/nutrition"
)

const (
	// Fixed fallbacks: its callers rely on this client never failing hard.
	fallbackReply  = "抱歉，暫時無法回覆，請稍後再試～"
	fallbackAdvice = "抱歉，暫時無法生成飲食建議。"
)

// Client generates conversational replies and dietary advice with OpenAI.
// Every method fails soft: on any upstream error it returns a fixed fallback
// string instead of an error.
type Client struct {
	api     *openai.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	model   string
}

// New creates an advice client.
func New(api *openai.Client, model string, logger *slog.Logger, m *metrics.Metrics) *Client {
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &Client{
		api:     api,
		logger:  logger.With("component", "advice"),
		metrics: m,
		model:   model,
	}
}

// NutritionAdvice turns a resolved record into one short dietary
// recommendation sentence.
func (c *Client) NutritionAdvice(ctx context.Context, rec nutrition.Record) string {
	prompt := fmt.Sprintf(
		"以下是 %s 的營養資料：熱量 %.1f kcal、蛋白質 %.1f g、脂肪 %.1f g、碳水 %.1f g。\n用繁體中文給出 1 句 40 字內的飲食建議，不要重複提供數字。",
		rec.Name, rec.Calories, rec.Protein, rec.Fat, rec.Carbs,
	)
	text, err := c.complete(ctx, "advice", "你是專業營養師，回答保持簡短。", prompt)
	if err != nil {
		c.logger.Warn("nutrition advice failed", "error", err, "name", rec.Name)
		return fallbackAdvice
	}
	return text
}

// ChatReply answers free-form chat when a message was not a food lookup.
func (c *Client) ChatReply(ctx context.Context, query string) string {
	text, err := c.complete(ctx, "chat", "你是一個友善的營養聊天機器人，簡短回答。", query)
	if err != nil {
		c.logger.Warn("chat reply failed", "error", err)
		return fallbackReply
	}
	return text
}

func (c *Client) complete(ctx context.Context, kind, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		c.metrics.OpenAIRequests.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	c.metrics.OpenAIRequests.WithLabelValues(kind, "success").Inc()

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}
	return text, nil
}
