package nutrition

import "errors"

// ErrNotFound indicates that no nutrition data exists for a queried name.
// Upstream clients wrap it so the resolver can separate "unknown food" from
// transient transport failures.
var ErrNotFound = errors.New("nutrition data not found")

// Record holds the resolved nutrition facts for one food item, per 100 g.
type Record struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Query is a transient resolution request: a free-text food name, or an
// image whose label is still unknown. Exactly one field should be set.
type Query struct {
	Text  string
	Image []byte
}
