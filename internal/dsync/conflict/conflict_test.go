package conflict

import (
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/stretchr/testify/assert"
)

func changesWith(modified, removed []string) *model.LocalChanges {
	c := model.NewLocalChanges()
	for _, k := range modified {
		c.Modified[model.SyncItemKey(k)] = struct{}{}
	}
	for _, k := range removed {
		c.Removed[model.SyncItemKey(k)] = struct{}{}
	}
	return c
}

func TestIsConflictModifiedIsUnconditional(t *testing.T) {
	r := New()
	c := changesWith([]string{"a"}, nil)
	assert.True(t, r.IsConflict(c, "a", false))
	assert.True(t, r.IsConflict(c, "a", true))
}

func TestIsConflictRemovedOnlyWhenNotDelete(t *testing.T) {
	r := New()
	c := changesWith(nil, []string{"a"})
	assert.True(t, r.IsConflict(c, "a", false))
	assert.False(t, r.IsConflict(c, "a", true))
}

func TestIsConflictNoMatch(t *testing.T) {
	r := New()
	c := changesWith([]string{"a"}, []string{"b"})
	assert.False(t, r.IsConflict(c, "z", false))
}

func TestLocalSideWins(t *testing.T) {
	r := New()
	assert.True(t, r.LocalSideWins(model.PreferLocal))
	assert.False(t, r.LocalSideWins(model.PreferRemote))
}

func TestRevertLocalChangeRemoveLocal(t *testing.T) {
	r := New()
	c := changesWith([]string{"a"}, nil)
	r.RevertLocalChange(c, "a", RemoveLocal)
	_, ok := c.Modified["a"]
	assert.False(t, ok)
}

func TestRevertLocalChangeModifyToAdd(t *testing.T) {
	r := New()
	c := changesWith([]string{"a"}, nil)
	r.RevertLocalChange(c, "a", ModifyToAdd)
	_, inModified := c.Modified["a"]
	_, inAdded := c.Added["a"]
	assert.False(t, inModified)
	assert.True(t, inAdded)
}
