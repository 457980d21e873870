package spoonacular

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
	"github.com/q950417/smart-diet-bot-clean/internal/nutrition"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{BaseURL: srv.URL, APIKey: "test-key"}, logger, metrics.New("test", prometheus.NewRegistry()))
}

const searchBody = `{"results":[{"id":9040,"name":"banana"}]}`

const informationBody = `{
	"id": 9040,
	"name": "banana",
	"nutrition": {
		"nutrients": [
			{"name": "Calories", "amount": 89.44, "unit": "kcal"},
			{"name": "Protein", "amount": 1.09, "unit": "g"},
			{"name": "Fat", "amount": 0.33, "unit": "g"},
			{"name": "Carbohydrates", "amount": 22.84, "unit": "g"},
			{"name": "Fiber", "amount": 2.6, "unit": "g"}
		]
	}
}`

func TestEstimateRoundsToOneDecimal(t *testing.T) {
	var searchQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/food/ingredients/search":
			searchQuery = r.URL.Query().Get("query")
			assert.Equal(t, "1", r.URL.Query().Get("number"))
			assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
			io.WriteString(w, searchBody)
		case "/food/ingredients/9040/information":
			assert.Equal(t, "100", r.URL.Query().Get("amount"))
			assert.Equal(t, "g", r.URL.Query().Get("unit"))
			io.WriteString(w, informationBody)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	rec, err := c.Estimate(context.Background(), "banana")
	require.NoError(t, err)
	assert.Equal(t, "banana", searchQuery)
	assert.Equal(t, nutrition.Record{Name: "banana", Calories: 89.4, Protein: 1.1, Fat: 0.3, Carbs: 22.8}, rec)
}

func TestEstimateNoSearchResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[]}`)
	})

	_, err := c.Estimate(context.Background(), "plutonium")
	require.ErrorIs(t, err, nutrition.ErrNotFound)
}

func TestEstimateMissingNutrient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/food/ingredients/search" {
			io.WriteString(w, searchBody)
			return
		}
		io.WriteString(w, `{"id":9040,"name":"banana","nutrition":{"nutrients":[{"name":"Calories","amount":89.0,"unit":"kcal"}]}}`)
	})

	_, err := c.Estimate(context.Background(), "banana")
	require.ErrorIs(t, err, nutrition.ErrNotFound)
}

func TestEstimateServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := c.Estimate(context.Background(), "banana")
	require.Error(t, err)
	assert.NotErrorIs(t, err, nutrition.ErrNotFound)
}

func TestEstimateQuotaExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"daily points limit reached"}`, http.StatusPaymentRequired)
	})

	_, err := c.Estimate(context.Background(), "banana")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, nutrition.ErrNotFound)
}

func TestRecordFromInformationFallsBackToQueryName(t *testing.T) {
	info := informationResponse{}
	info.Nutrition.Nutrients = []struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
		Unit   string  `json:"unit"`
	}{
		{Name: "Calories", Amount: 52},
		{Name: "Protein", Amount: 0.3},
		{Name: "Fat", Amount: 0.2},
		{Name: "Carbohydrates", Amount: 13.8},
	}

	rec, err := recordFromInformation("apple", info)
	require.NoError(t, err)
	assert.Equal(t, "apple", rec.Name)
}
