// Package discovery reads the aggregate file produced by the discovery step.
package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// DefaultPath is the aggregate location used when none is given.
const DefaultPath = "state/latest_discovery.json"

// ErrNotFound reports a missing aggregate file.
var ErrNotFound = errors.New("discovery file not found")

// Aggregate is the discovery output: items grouped by source.
type Aggregate struct {
	GeneratedAt string   `json:"generated_at,omitempty"`
	Sources     []Source `json:"sources"`
}

// Source is one discovery source and its candidate items.
type Source struct {
	ID    string                   `json:"id,omitempty"`
	Items []document.DiscoveryItem `json:"items"`
}

// Item is a discovery item together with the source that produced it.
type Item struct {
	document.DiscoveryItem
	SourceID string
}

// Load reads and decodes the aggregate at path. A missing file yields
// ErrNotFound; any other read or decode failure is returned wrapped.
func Load(path string) (Aggregate, error) {
	// #nosec G304 -- operator supplied path.
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Aggregate{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Aggregate{}, fmt.Errorf("read discovery file: %w", err)
	}
	var agg Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return Aggregate{}, fmt.Errorf("decode discovery file: %w", err)
	}
	return agg, nil
}

// Items flattens sources in order and keeps at most limit items. A limit <= 0
// keeps nothing.
func (a Aggregate) Items(limit int) []Item {
	var out []Item
	for _, src := range a.Sources {
		for _, it := range src.Items {
			if len(out) >= limit {
				return out
			}
			out = append(out, Item{DiscoveryItem: it, SourceID: src.ID})
		}
	}
	return out
}
