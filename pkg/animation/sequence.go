package animation

import "iter"

// Prefixes yields full[:0], full[:step], full[:2*step] and so on, always
// ending with full itself. Ranging over the result again starts from the
// empty prefix. A step below 1 is treated as 1.
func Prefixes[T any](full []T, step int) iter.Seq[[]T] {
	if step < 1 {
		step = 1
	}

	return func(yield func([]T) bool) {
		n := 0
		for {
			if !yield(full[:n:n]) {
				return
			}
			if n == len(full) {
				return
			}
			n = min(n+step, len(full))
		}
	}
}
