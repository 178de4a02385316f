package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udisondev/elemcore/internal/model"
)

// AssertSnapshot проверяет значения элементов с допуском delta.
// Элементы, отсутствующие в want, не проверяются.
func AssertSnapshot(t testing.TB, want, got model.ElementSnapshot, delta float64) bool {
	t.Helper()

	ok := true
	for id, v := range want {
		ok = assert.InDeltaf(t, v, got.Value(id), delta, "element %s", id) && ok
	}
	return ok
}

// AssertHeld проверяет, что actor держит ровно модификаторы с указанными ID.
func AssertHeld(t testing.TB, sink *RecordingSink, actor model.ActorID, ids ...string) bool {
	t.Helper()

	held := sink.Held(actor)
	got := make([]string, 0, len(held))
	for id := range held {
		got = append(got, id)
	}
	if ids == nil {
		ids = []string{}
	}
	return assert.ElementsMatch(t, ids, got, "modifiers held by actor %d", actor)
}
