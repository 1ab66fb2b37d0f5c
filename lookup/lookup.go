// Package lookup builds the read-only (KeyCode, state) -> Mapping
// resolution table and resolves it at O(k) per lookup, where k is the
// (typically small) number of candidates registered for that key.
package lookup

import (
	"fmt"

	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

// Evaluator is the minimal surface Find needs from a DeviceState: a
// pure predicate over a Condition. devstate.DeviceState satisfies this
// implicitly.
type Evaluator interface {
	Evaluate(c mapping.Condition) bool
}

// Table is an immutable KeyCode -> candidate-mapping-list index. It is
// built once per configuration and only ever read at runtime.
type Table struct {
	buckets map[keycode.KeyCode][]mapping.Mapping
}

// Build walks entries in DSL registration order, bucketing candidates
// by KeyCode while preserving that order, and asserts at most one
// unconditional mapping per key (spec.md invariant 3). It is a
// defense-in-depth re-check: the compiler (C4) already enforces
// DuplicateMapping, but Build runs again here because an artifact may
// have been produced by a different compiler version.
func Build(entries []mapping.Entry) (*Table, error) {
	t := &Table{buckets: make(map[keycode.KeyCode][]mapping.Mapping)}
	seenUnconditional := make(map[keycode.KeyCode]bool)

	for _, e := range entries {
		if !isConditional(e.Mapping) {
			if seenUnconditional[e.Key] {
				return nil, fmt.Errorf("lookup: duplicate unconditional mapping for key %s", e.Key)
			}
			seenUnconditional[e.Key] = true
		}
		t.buckets[e.Key] = append(t.buckets[e.Key], e.Mapping)
	}
	return t, nil
}

func isConditional(m mapping.Mapping) bool {
	_, ok := m.(mapping.Conditional)
	return ok
}

// Find resolves key against the candidate list, short-circuiting on
// the first candidate whose condition (if any) evaluates true. A
// Conditional with no matching branch simply falls through to the
// next candidate. A Find that exhausts the candidate list, or that
// has no entry for key at all, returns (nil, false): that is
// passthrough, not an error (spec.md section 7).
func (t *Table) Find(key keycode.KeyCode, ev Evaluator) (mapping.Mapping, bool) {
	candidates, ok := t.buckets[key]
	if !ok {
		return nil, false
	}
	for _, cand := range candidates {
		if m, ok := resolve(cand, ev); ok {
			return m, true
		}
	}
	return nil, false
}

// resolve descends through Conditional wrappers (at whatever depth the
// compiler produced them) until it reaches a concrete mapping, using
// Else only when the node that carries it evaluates false.
func resolve(m mapping.Mapping, ev Evaluator) (mapping.Mapping, bool) {
	cond, ok := m.(mapping.Conditional)
	if !ok {
		return m, true
	}
	if ev.Evaluate(cond.Condition) {
		return resolve(cond.Then, ev)
	}
	if cond.Else != nil {
		return resolve(cond.Else, ev)
	}
	return nil, false
}

// Len reports how many keys have at least one registered candidate.
// Diagnostic use only.
func (t *Table) Len() int {
	return len(t.buckets)
}
