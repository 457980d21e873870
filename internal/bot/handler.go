package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/q950417/smart-diet-bot-clean/internal/advice"
	"github.com/q950417/smart-diet-bot-clean/internal/cache"
	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
	"github.com/q950417/smart-diet-bot-clean/internal/nutrition"
)

const (
	imageRateLimit  = 5
	imageRateWindow = 10 * time.Minute
)

// LineGateway sends replies back through the LINE messaging API.
type LineGateway interface {
	ReplyMessage(request *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// ContentDownloader fetches message attachments from the LINE blob API.
type ContentDownloader interface {
	GetMessageContent(messageID string) (*http.Response, error)
}

// Handler receives LINE webhook callbacks and turns them into nutrition
// replies. Each event is dispatched on its own goroutine so one slow
// resolution never blocks the rest of the batch.
type Handler struct {
	channelSecret string
	gateway       LineGateway
	blob          ContentDownloader
	resolver      *nutrition.Resolver
	advisor       *advice.Client
	cache         *cache.Redis
	metrics       *metrics.Metrics
	logger        *slog.Logger
	eventTimeout  time.Duration
}

// Config holds handler configuration.
type Config struct {
	ChannelSecret string
	EventTimeout  time.Duration
}

// NewHandler wires the webhook handler. redisCache may be nil; image rate
// limiting is then disabled.
func NewHandler(cfg Config, gateway LineGateway, blob ContentDownloader, resolver *nutrition.Resolver, advisor *advice.Client, redisCache *cache.Redis, m *metrics.Metrics, logger *slog.Logger) *Handler {
	timeout := cfg.EventTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Handler{
		channelSecret: cfg.ChannelSecret,
		gateway:       gateway,
		blob:          blob,
		resolver:      resolver,
		advisor:       advisor,
		cache:         redisCache,
		metrics:       m,
		logger:        logger.With("component", "bot"),
		eventTimeout:  timeout,
	}
}

// Callback is the LINE webhook entry point. Signature verification and event
// parsing are delegated to the SDK; events are acknowledged immediately and
// processed concurrently.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("webhook signature invalid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.logger.Error("webhook parse failed", "error", err)
		h.metrics.Errors.WithLabelValues("webhook_parse").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	for _, event := range cb.Events {
		go h.dispatch(event)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) dispatch(event webhook.EventInterface) {
	ctx, cancel := context.WithTimeout(context.Background(), h.eventTimeout)
	defer cancel()

	msgEvent, ok := event.(webhook.MessageEvent)
	if !ok {
		h.metrics.LineEvents.WithLabelValues("non_message").Inc()
		return
	}

	logger := h.logger.With("event_id", shortID())

	defer func() {
		if rec := recover(); rec != nil {
			// The user still deserves an answer when a handler blows up.
			logger.Error("event handler panicked", "panic", rec)
			h.metrics.Errors.WithLabelValues("dispatch_panic").Inc()
			h.reply(logger, msgEvent.ReplyToken, fallbackApology())
		}
	}()

	switch msg := msgEvent.Message.(type) {
	case webhook.TextMessageContent:
		h.metrics.LineEvents.WithLabelValues("text").Inc()
		h.handleText(ctx, logger, msgEvent.ReplyToken, msg.Text)
	case webhook.ImageMessageContent:
		h.metrics.LineEvents.WithLabelValues("image").Inc()
		h.handleImage(ctx, logger, msgEvent.ReplyToken, msg.Id, senderID(msgEvent.Source))
	default:
		h.metrics.LineEvents.WithLabelValues("unsupported").Inc()
		h.reply(logger, msgEvent.ReplyToken, "目前只支援文字和食物照片喔～")
	}
}

// handleText first treats the text as a food name; when nothing resolves it
// falls back to free-form chat.
func (h *Handler) handleText(ctx context.Context, logger *slog.Logger, replyToken, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	rec, ok := h.resolver.Resolve(ctx, nutrition.Query{Text: text})
	if ok {
		adv := h.advisor.NutritionAdvice(ctx, rec)
		h.reply(logger, replyToken, formatNutrition(rec, adv))
		return
	}

	h.reply(logger, replyToken, h.advisor.ChatReply(ctx, text))
}

func (h *Handler) handleImage(ctx context.Context, logger *slog.Logger, replyToken, messageID, userID string) {
	if !h.allowImageRequest(ctx, userID) {
		h.reply(logger, replyToken, "照片辨識先休息一下，幾分鐘後再試試～")
		return
	}

	data, err := h.downloadContent(messageID)
	if err != nil {
		logger.Error("download image failed", "error", err, "message_id", messageID)
		h.metrics.Errors.WithLabelValues("line_content").Inc()
		h.reply(logger, replyToken, "照片下載失敗，再傳一次試試？")
		return
	}

	rec, ok := h.resolver.Resolve(ctx, nutrition.Query{Image: data})
	if !ok {
		h.reply(logger, replyToken, "認不出這是什麼食物，換個角度再拍一張，或直接打字告訴我～")
		return
	}

	adv := h.advisor.NutritionAdvice(ctx, rec)
	h.reply(logger, replyToken, formatNutrition(rec, adv))
}

func (h *Handler) downloadContent(messageID string) ([]byte, error) {
	res, err := h.blob.GetMessageContent(messageID)
	if err != nil {
		return nil, fmt.Errorf("get message content: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read message content: %w", err)
	}
	return data, nil
}

func (h *Handler) allowImageRequest(ctx context.Context, userID string) bool {
	if h.cache == nil || userID == "" {
		return true
	}
	key := fmt.Sprintf("rl:image:%s", userID)
	return h.cache.Allow(ctx, key, imageRateLimit, imageRateWindow)
}

func (h *Handler) reply(logger *slog.Logger, replyToken, text string) {
	if _, err := h.gateway.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: truncateReply(text)},
		},
	}); err != nil {
		logger.Error("reply failed", "error", err)
		h.metrics.Errors.WithLabelValues("line_reply").Inc()
	}
}

func senderID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case *webhook.UserSource:
		return s.UserId
	default:
		return ""
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
