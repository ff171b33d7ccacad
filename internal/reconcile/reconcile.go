// Package reconcile brings a persisted child collection in line with a
// caller-submitted desired state.
package reconcile

// Pair links an existing element to the incoming element that shares its key
type Pair[E any, D any] struct {
	Existing E
	Incoming D
}

// Plan lists what has to happen to the existing collection
type Plan[E any, D any] struct {
	Updates []Pair[E, D]
	Inserts []D
	Deletes []E
}

// Reconcile matches incoming elements to existing ones by natural key.
// incomingKey reports ok=false for an element without a key, which is always
// inserted. Existing elements left unmatched are deleted, so a nil or empty
// incoming collection deletes everything.
//
// When two incoming elements share a key only the first is matched and the
// rest are treated as inserts; callers reject duplicate keys first.
func Reconcile[E any, D any, K comparable](
	existing []E,
	incoming []D,
	existingKey func(E) K,
	incomingKey func(D) (K, bool),
) Plan[E, D] {
	var plan Plan[E, D]

	index := make(map[K]int, len(existing))
	for i, e := range existing {
		index[existingKey(e)] = i
	}

	matched := make([]bool, len(existing))
	for _, d := range incoming {
		key, ok := incomingKey(d)
		if !ok {
			plan.Inserts = append(plan.Inserts, d)
			continue
		}
		i, found := index[key]
		if !found || matched[i] {
			plan.Inserts = append(plan.Inserts, d)
			continue
		}
		matched[i] = true
		plan.Updates = append(plan.Updates, Pair[E, D]{Existing: existing[i], Incoming: d})
	}

	for i, e := range existing {
		if !matched[i] {
			plan.Deletes = append(plan.Deletes, e)
		}
	}
	return plan
}

// Apply runs update on every matched pair and create on every insert, and
// returns the resulting collection: updated elements followed by new ones.
func (p Plan[E, D]) Apply(update func(E, D), create func(D) E) []E {
	result := make([]E, 0, len(p.Updates)+len(p.Inserts))
	for _, pair := range p.Updates {
		update(pair.Existing, pair.Incoming)
		result = append(result, pair.Existing)
	}
	for _, d := range p.Inserts {
		result = append(result, create(d))
	}
	return result
}
