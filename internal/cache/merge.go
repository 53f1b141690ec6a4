package cache

// MergeUnique appends the items of incoming whose key is not already
// present, preserving first-seen order. added counts the new items.
func MergeUnique[T any, K comparable](existing, incoming []T, key func(T) K) (merged []T, added int) {
	seen := make(map[K]struct{}, len(existing)+len(incoming))
	merged = make([]T, 0, len(existing)+len(incoming))
	for _, it := range existing {
		k := key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, it)
	}
	for _, it := range incoming {
		k := key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, it)
		added++
	}
	return merged, added
}

// Replace swaps the first item matching key for repl. ok is false when none matched.
func Replace[T any, K comparable](items []T, k K, key func(T) K, repl T) (out []T, ok bool) {
	for i, it := range items {
		if key(it) == k {
			items[i] = repl
			return items, true
		}
	}
	return items, false
}

// Remove drops every item matching k and returns the index of the first, or -1
func Remove[T any, K comparable](items []T, k K, key func(T) K) (out []T, index int) {
	index = -1
	out = items[:0]
	for i, it := range items {
		if key(it) == k {
			if index < 0 {
				index = i
			}
			continue
		}
		out = append(out, it)
	}
	return out, index
}

// Insert puts item at index, clamped to the list bounds
func Insert[T any](items []T, index int, item T) []T {
	if index < 0 || index > len(items) {
		index = len(items)
	}
	items = append(items, item)
	copy(items[index+1:], items[index:])
	items[index] = item
	return items
}
