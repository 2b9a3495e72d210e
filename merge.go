package ravel

import "fmt"

// Context is the long-lived key/value store a fragment is merged into. All
// writes go through [Extractor.MergeOne] and [Extractor.MergeAll], so every
// stored value is in storage form.
//
// A Context is a plain map owned by the caller; it carries no locking of its
// own. It round-trips through JSON, which is how it survives between the
// phases of an operation.
type Context map[string]Value

// MergeOne normalizes value and stores it under key, reporting whether the
// context observably changed: a new key or a different stored value counts as
// a change, re-storing an equal value does not. Nil values and the zero
// [Value] are skipped entirely and report no change, so a Context never
// holds a "no value" entry.
func (e *Extractor) MergeOne(ctx Context, key string, value any) (bool, error) {
	normalized, err := e.Normalize(value)
	if err != nil {
		return false, fmt.Errorf("merge %q: %w", key, err)
	}

	// nil values normalize to the zero Value
	if normalized.Kind() == KindNone {
		return false, nil
	}

	prev, exists := ctx[key]
	ctx[key] = normalized

	return !exists || prev != normalized, nil
}

// MergeOne merges a single entry using the default Extractor.
func MergeOne(ctx Context, key string, value any) (bool, error) {
	return std.MergeOne(ctx, key, value)
}

// MergeAll merges every entry of a fragment into ctx, reporting whether any
// of them changed it. It stops at the first normalization failure; entries
// merged before the failure stay merged.
func (e *Extractor) MergeAll(ctx Context, entries map[string]any) (bool, error) {
	var changed bool

	for key, value := range entries {
		ch, err := e.MergeOne(ctx, key, value)
		if err != nil {
			return changed, err
		}

		changed = changed || ch
	}

	return changed, nil
}

// MergeAll merges a fragment using the default Extractor.
func MergeAll(ctx Context, entries map[string]any) (bool, error) {
	return std.MergeAll(ctx, entries)
}
