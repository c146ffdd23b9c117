package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vrcnotify/internal/model"
)

func TestDedupGuardFirstObservationIsNew(t *testing.T) {
	g := NewDedupGuard()
	assert.Empty(t, g.LastNotified())
	assert.True(t, g.IsNew(model.GroupInstance{InstanceID: "A"}))
}

func TestDedupGuardMarkThenSameIDIsOld(t *testing.T) {
	g := NewDedupGuard()
	a := model.GroupInstance{InstanceID: "A"}

	g.MarkNotified(a)
	assert.False(t, g.IsNew(a))
	assert.Equal(t, "A", g.LastNotified())

	b := model.GroupInstance{InstanceID: "B"}
	assert.True(t, g.IsNew(b))

	g.MarkNotified(b)
	assert.False(t, g.IsNew(b))
	assert.True(t, g.IsNew(a), "going back to a previous instance counts as new again")
}
