package typeutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	set := NewSet("i:1", "u:a")
	assert.True(t, set.Contain("i:1", "u:a"))
	assert.False(t, set.Contain("i:1", "u:b"))
	assert.True(t, set.TryInsert("u:b"))
	assert.False(t, set.TryInsert("u:b"))
	assert.Equal(t, 3, set.Len())

	clone := set.Clone()
	set.Remove("u:a")
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 3, clone.Len())

	elems := clone.Collect()
	sort.Strings(elems)
	assert.Equal(t, []string{"i:1", "u:a", "u:b"}, elems)

	n := 0
	clone.Range(func(string) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestConcurrentSet(t *testing.T) {
	set := NewConcurrentSet[string]()
	assert.True(t, set.Insert("ValueError"))
	assert.False(t, set.Insert("ValueError"))
	set.Upsert("EOFError", "OverflowError")
	assert.True(t, set.Contain("EOFError", "ValueError"))
	assert.True(t, set.TryRemove("OverflowError"))
	assert.False(t, set.TryRemove("OverflowError"))
	set.Remove("EOFError")

	elems := set.Collect()
	assert.Equal(t, []string{"ValueError"}, elems)

	count := 0
	set.Range(func(string) bool {
		count++
		return true
	})
	assert.Equal(t, 1, count)
}
