// Package geo summarizes where dataset records come from.
package geo

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/mchmarny/dietpulse/pkg/table"
)

const (
	DefaultISO3Column = "ISO3"
	RegionColumn      = "Region"

	hundredPercent = 100
)

// CountedItem is a label with its record count and share of the total.
type CountedItem struct {
	Name    string  `json:"name" yaml:"name"`
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Options filters a country distribution.
type Options struct {
	// TopN keeps only the N most frequent countries when > 0.
	TopN int
	// MinCount drops countries with fewer records, defaults to 1.
	MinCount int
}

// CountryDistribution counts records per ISO3 code, most frequent first.
// A nil result means the column is absent.
func CountryDistribution(t *table.Table, col string, opts Options) []*CountedItem {
	if col == "" {
		col = DefaultISO3Column
	}
	if !t.HasColumn(col) {
		slog.Warn("country column not found", "column", col)
		return nil
	}

	minCount := opts.MinCount
	if minCount < 1 {
		minCount = 1
	}

	items := valueCounts(t.Column(col))
	kept := make([]*CountedItem, 0, len(items))
	for _, it := range items {
		if it.Count >= minCount {
			kept = append(kept, it)
		}
	}

	if len(kept) == 0 {
		slog.Warn("no countries meet the minimum count threshold", "min_count", minCount)
		return kept
	}

	if opts.TopN > 0 && len(kept) > opts.TopN {
		kept = kept[:opts.TopN]
	}
	return kept
}

// RegionDistribution maps each record's ISO3 code to a region, stores it in
// the Region column of t and returns the region counts. A nil result means
// there was nothing to map.
func RegionDistribution(t *table.Table, iso3Col string, regions map[string]string) []*CountedItem {
	if len(regions) == 0 {
		slog.Warn("region mapping (ISO3 -> region) required")
		return nil
	}
	if iso3Col == "" {
		iso3Col = DefaultISO3Column
	}
	if !t.HasColumn(iso3Col) {
		slog.Warn("country column not found", "column", iso3Col)
		return nil
	}

	vals := make([]table.Value, t.Len())
	for i := 0; i < t.Len(); i++ {
		vals[i] = table.Missing
		code, ok := label(t.Get(i, iso3Col))
		if !ok {
			continue
		}
		if r, ok := regions[code]; ok {
			vals[i] = table.Text(r)
		}
	}

	if err := t.SetColumn(RegionColumn, vals); err != nil {
		slog.Error("failed to set region column", "error", err)
		return nil
	}

	return valueCounts(vals)
}

// valueCounts counts non-missing labels sorted by count desc, then name.
func valueCounts(vals []table.Value) []*CountedItem {
	counts := make(map[string]int)
	total := 0
	for _, v := range vals {
		l, ok := label(v)
		if !ok {
			continue
		}
		counts[l]++
		total++
	}

	list := make([]*CountedItem, 0, len(counts))
	for k, c := range counts {
		list = append(list, &CountedItem{
			Name:    k,
			Count:   c,
			Percent: float64(c) / float64(total) * hundredPercent,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Count == list[j].Count {
			return list[i].Name < list[j].Name
		}
		return list[i].Count > list[j].Count
	})
	return list
}

func label(v table.Value) (string, bool) {
	switch v.Kind() {
	case table.KindText:
		s, _ := v.Text()
		s = strings.TrimSpace(s)
		return s, s != ""
	case table.KindNumber:
		return v.String(), true
	default:
		return "", false
	}
}
