package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
)

const labelPrompt = `辨識這張照片中最主要的一種食物。` +
	`只回覆一個 JSON 物件，格式：{"label":"英文食物名稱","confidence":0.0}，` +
	`confidence 介於 0 到 1，不要任何其他文字。照片不是食物時 confidence 給低分。`

// Labeler converts a food photo into a candidate name with a confidence
// score, using an OpenAI vision model.
type Labeler struct {
	api     *openai.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	model   string
}

// New creates a vision labeler.
func New(api *openai.Client, model string, logger *slog.Logger, m *metrics.Metrics) *Labeler {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Labeler{
		api:     api,
		logger:  logger.With("component", "vision"),
		metrics: m,
		model:   model,
	}
}

type labelResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Label identifies the dominant food in the image.
func (l *Labeler) Label(ctx context.Context, image []byte) (string, float64, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := l.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: labelPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens:   64,
		Temperature: 0.2,
	})
	if err != nil {
		l.metrics.OpenAIRequests.WithLabelValues("vision", "error").Inc()
		return "", 0, fmt.Errorf("label image: %w", err)
	}
	l.metrics.OpenAIRequests.WithLabelValues("vision", "success").Inc()

	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("label image: no choices returned")
	}

	raw := normalizeModelJSON(resp.Choices[0].Message.Content)
	var result labelResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", 0, fmt.Errorf("parse label json: %w (snippet=%q)", err, raw)
	}
	if strings.TrimSpace(result.Label) == "" {
		return "", 0, fmt.Errorf("label json missing label")
	}

	l.logger.Debug("image labeled", "label", result.Label, "confidence", result.Confidence)
	return strings.TrimSpace(result.Label), result.Confidence, nil
}

// normalizeModelJSON strips markdown code fences and surrounding prose so the
// model output can be decoded as a single JSON object.
func normalizeModelJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
		if strings.HasPrefix(strings.ToLower(s), "json") {
			if idx := strings.IndexByte(s, '\n'); idx >= 0 {
				s = s[idx+1:]
			} else {
				s = ""
			}
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		if start := strings.Index(s, "{"); start >= 0 {
			if end := strings.LastIndex(s, "}"); end >= start {
				s = s[start : end+1]
			}
		}
	}
	return strings.TrimSpace(s)
}
