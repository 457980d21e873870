package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
)

const testChannelSecret = "test-channel-secret"

type fakeGateway struct {
	requests []*messaging_api.ReplyMessageRequest
}

func (g *fakeGateway) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	g.requests = append(g.requests, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

func newTestHandler(gateway LineGateway) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{ChannelSecret: testChannelSecret}
	return NewHandler(cfg, gateway, nil, nil, nil, nil, metrics.New("test", prometheus.NewRegistry()), logger)
}

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testChannelSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestCallbackRejectsInvalidSignature(t *testing.T) {
	h := newTestHandler(&fakeGateway{})

	body := `{"destination":"U0000","events":[]}`
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("x-line-signature", "bm90LWEtcmVhbC1zaWduYXR1cmU=")
	w := httptest.NewRecorder()

	h.Callback(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackAcceptsSignedRequest(t *testing.T) {
	h := newTestHandler(&fakeGateway{})

	body := `{"destination":"U0000","events":[]}`
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("x-line-signature", signBody(body))
	w := httptest.NewRecorder()

	h.Callback(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReplyTruncatesLongText(t *testing.T) {
	gateway := &fakeGateway{}
	h := newTestHandler(gateway)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h.reply(logger, "reply-token", strings.Repeat("字", maxReplyRunes+200))

	require.Len(t, gateway.requests, 1)
	req := gateway.requests[0]
	assert.Equal(t, "reply-token", req.ReplyToken)
	require.Len(t, req.Messages, 1)
	msg, ok := req.Messages[0].(messaging_api.TextMessage)
	require.True(t, ok)
	assert.Len(t, []rune(msg.Text), maxReplyRunes)
}

func TestSenderID(t *testing.T) {
	assert.Equal(t, "U1234", senderID(webhook.UserSource{UserId: "U1234"}))
	assert.Equal(t, "U1234", senderID(&webhook.UserSource{UserId: "U1234"}))
	assert.Equal(t, "", senderID(webhook.GroupSource{GroupId: "C1234"}))
	assert.Equal(t, "", senderID(nil))
}
