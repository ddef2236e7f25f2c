package builder

import (
	"fmt"
	"slices"

	"github.com/nao1215/calibreport/internal/model"
	"golang.org/x/text/unicode/norm"
)

// NormalizeGroupKey returns the Unicode NFC form of key, so keys that render
// identically but differ in composition ("é" vs "é") land in one group.
func NormalizeGroupKey(key string) string {
	return norm.NFC.String(key)
}

// BuildGroups builds one report per group key.
//
// All configuration and records are validated up front exactly as in Build.
// Keys are normalized with NormalizeGroupKey; records without a key form the
// group with the empty key. The result is sorted by key.
func BuildGroups(records []model.EvaluationRecord, binCount int, strategy model.BinStrategy, opts ...Option) ([]model.GroupReport, error) {
	if err := ValidateConfig(binCount, strategy); err != nil {
		return nil, err
	}
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}

	buckets := make(map[string][]model.EvaluationRecord)
	for _, r := range records {
		key := NormalizeGroupKey(r.GroupKey)
		buckets[key] = append(buckets[key], r)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	cfg := newConfig(opts)
	groups := make([]model.GroupReport, 0, len(keys))
	for _, key := range keys {
		rep, err := build(canonicalize(buckets[key]), binCount, strategy, cfg)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", key, err)
		}
		groups = append(groups, model.GroupReport{Key: key, Report: rep})
	}
	return groups, nil
}
