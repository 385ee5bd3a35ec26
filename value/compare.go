package value

// Matches reports whether actual satisfies expected.
//
//   - null matches only null (absent map keys read as null).
//   - A mapping matches when actual is a mapping and every expected key matches;
//     keys the expectation does not name are ignored.
//   - A list matches a list of the same length. Inside JSON values the order is
//     irrelevant (multiset match); otherwise elements are compared pairwise.
//   - Scalars match on kind and value. A number never matches a string.
//
// Callers comparing column values start with insideJSON false.
func Matches(expected, actual Value, insideJSON bool) bool {
	switch expected.kind {
	case KindNull:
		return actual.kind == KindNull
	case KindMap:
		if actual.kind != KindMap {
			return false
		}

		for key, want := range expected.m {
			if !Matches(want, actual.m[key], true) {
				return false
			}
		}

		return true
	case KindList:
		if actual.kind != KindList || len(expected.list) != len(actual.list) {
			return false
		}

		if insideJSON {
			return matchUnordered(expected.list, actual.list)
		}

		for i := range expected.list {
			if !Matches(expected.list[i], actual.list[i], false) {
				return false
			}
		}

		return true
	case KindBool:
		return actual.kind == KindBool && expected.b == actual.b
	case KindNumber:
		return actual.kind == KindNumber && expected.n.Equal(actual.n)
	case KindString:
		return actual.kind == KindString && expected.s == actual.s
	default:
		return false
	}
}

// matchUnordered pairs every expected element with the first remaining actual element
// it matches. Consumed elements cannot satisfy a later expectation.
func matchUnordered(expected, actual []Value) bool {
	pool := make([]Value, len(actual))
	copy(pool, actual)

	for _, want := range expected {
		found := -1

		for i, candidate := range pool {
			if Matches(want, candidate, true) {
				found = i
				break
			}
		}

		if found < 0 {
			return false
		}

		pool = append(pool[:found], pool[found+1:]...)
	}

	return true
}

// Equal reports deep equality, with maps compared on all keys and lists in order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n.Equal(b.n)
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}

		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}

		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}

		for key, av := range a.m {
			bv, ok := b.m[key]
			if !ok || !Equal(av, bv) {
				return false
			}
		}

		return true
	default:
		return false
	}
}
