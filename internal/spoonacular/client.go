package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
	"github.com/q950417/smart-diet-bot-clean/internal/nutrition"
)

const (
	defaultBaseURL = "https://api.spoonacular.com"
	defaultTimeout = 10 * time.Second

	// referenceAmountGrams is the serving basis for every estimate.
	referenceAmountGrams = "100"
)

// ErrQuotaExceeded indicates Spoonacular rejected the request because the
// daily points budget ran out.
var ErrQuotaExceeded = errors.New("spoonacular quota exceeded")

// Client provides typed access to the Spoonacular ingredient API.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *metrics.Metrics
}

// Config holds Spoonacular client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New creates a Spoonacular client.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		logger:  logger.With("component", "spoonacular"),
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}
}

type searchResponse struct {
	Results []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
}

type informationResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Nutrition struct {
		Nutrients []struct {
			Name   string  `json:"name"`
			Amount float64 `json:"amount"`
			Unit   string  `json:"unit"`
		} `json:"nutrients"`
	} `json:"nutrition"`
}

// Estimate looks the name up by ingredient search, then fetches its
// nutrition per 100 g. A name Spoonacular does not know, or a response
// missing any required nutrient, wraps nutrition.ErrNotFound; anything
// else (timeout, non-2xx, malformed payload) is a transient error.
func (c *Client) Estimate(ctx context.Context, name string) (nutrition.Record, error) {
	query := url.Values{}
	query.Set("query", name)
	query.Set("number", "1")

	var search searchResponse
	if err := c.get(ctx, "search", "/food/ingredients/search", query, &search); err != nil {
		return nutrition.Record{}, err
	}
	if len(search.Results) == 0 {
		return nutrition.Record{}, fmt.Errorf("ingredient %q: %w", name, nutrition.ErrNotFound)
	}

	infoQuery := url.Values{}
	infoQuery.Set("amount", referenceAmountGrams)
	infoQuery.Set("unit", "g")

	var info informationResponse
	path := fmt.Sprintf("/food/ingredients/%d/information", search.Results[0].ID)
	if err := c.get(ctx, "information", path, infoQuery, &info); err != nil {
		return nutrition.Record{}, err
	}

	return recordFromInformation(name, info)
}

// recordFromInformation converts the loose nutrient list into a strict
// record. The loose shape never leaks past this package.
func recordFromInformation(query string, info informationResponse) (nutrition.Record, error) {
	amounts := make(map[string]float64, len(info.Nutrition.Nutrients))
	for _, n := range info.Nutrition.Nutrients {
		amounts[n.Name] = n.Amount
	}

	rec := nutrition.Record{Name: info.Name}
	if rec.Name == "" {
		rec.Name = query
	}

	required := []struct {
		key  string
		dest *float64
	}{
		{"Calories", &rec.Calories},
		{"Protein", &rec.Protein},
		{"Fat", &rec.Fat},
		{"Carbohydrates", &rec.Carbs},
	}
	for _, field := range required {
		amount, ok := amounts[field.key]
		if !ok {
			return nutrition.Record{}, fmt.Errorf("ingredient %q missing nutrient %s: %w", query, field.key, nutrition.ErrNotFound)
		}
		*field.dest = round1(amount)
	}
	return rec, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, dest any) error {
	if c.apiKey != "" {
		query.Set("apiKey", c.apiKey)
	}
	reqURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.metrics.SpoonacularRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("spoonacular %s request: %w", endpoint, err)
	}
	defer res.Body.Close()

	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	c.metrics.SpoonacularRequests.WithLabelValues(endpoint, statusLabel).Inc()
	c.metrics.SpoonacularLatency.WithLabelValues(endpoint, statusLabel).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if res.StatusCode == http.StatusPaymentRequired {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, snippet(body))
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("spoonacular %s error %d: %s", endpoint, res.StatusCode, snippet(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// round1 keeps nutrient values at one decimal place so cached and displayed
// values stay stable across runs.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
