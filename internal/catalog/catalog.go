// Package catalog holds the static set of monitored items and the
// subscription index mapping items to interested subscribers. Both are
// built once at startup and never mutated afterwards.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"stockwatch/internal/config"
)

// Item is one monitored product. Immutable after construction and shared
// read-only by all pollers.
type Item struct {
	Key   string
	URL   string
	Attrs map[string]string
}

func (it *Item) String() string { return it.Key }

// BuildItems expands the catalog config into the full item set: explicit
// entries first, then the color/size grid (if declared). Keys must be
// unique across both sources.
func BuildItems(cfg config.CatalogConfig) ([]*Item, error) {
	seen := map[string]bool{}
	var items []*Item

	add := func(it *Item) error {
		if seen[it.Key] {
			return fmt.Errorf("catalog: duplicate item key %q", it.Key)
		}
		seen[it.Key] = true
		items = append(items, it)
		return nil
	}

	for _, ic := range cfg.Items {
		attrs := make(map[string]string, len(ic.Attrs))
		for k, v := range ic.Attrs {
			attrs[k] = v
		}
		if err := add(&Item{Key: ic.Key, URL: ic.URL, Attrs: attrs}); err != nil {
			return nil, err
		}
	}

	if cfg.URLTemplate != "" && len(cfg.Colors) > 0 && len(cfg.Sizes) > 0 {
		// Deterministic order regardless of map iteration.
		colors := make([]string, 0, len(cfg.Colors))
		for c := range cfg.Colors {
			colors = append(colors, c)
		}
		sort.Strings(colors)

		for _, color := range colors {
			for _, size := range cfg.Sizes {
				url := strings.NewReplacer(
					"{color}", color,
					"{size}", size,
					"{color_name}", cfg.Colors[color],
				).Replace(cfg.URLTemplate)
				it := &Item{
					Key:   color + size,
					URL:   url,
					Attrs: map[string]string{"color": color, "size": size},
				}
				if err := add(it); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("catalog: no items")
	}
	return items, nil
}
