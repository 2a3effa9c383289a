package marshal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	data, err := Dumps(NewList(Int(1), Int(2)), 3)
	require.NoError(t, err)
	records, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Offset: 0, Size: 15, Tag: TagList, Ref: true, Depth: 1, RefIndex: 0},
		{Offset: 5, Size: 5, Tag: TagInt, Depth: 2, RefIndex: -1},
		{Offset: 10, Size: 5, Tag: TagInt, Depth: 2, RefIndex: -1},
	}, records)
	assert.Equal(t, "00000000 &list           size=15 ref=0", records[0].String())
	assert.Equal(t, "00000005    int            size=5", records[1].String())
}

func TestInspectBackReference(t *testing.T) {
	l := NewList()
	l.Items = []Value{l}
	data, err := Dumps(l, 3)
	require.NoError(t, err)
	records, err := Inspect(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, TagRef, records[1].Tag)
	assert.Equal(t, 0, records[1].RefIndex)
}

func TestInspectError(t *testing.T) {
	records, err := Inspect([]byte{'[', 2, 0, 0, 0, 'i', 1, 0, 0, 0, 'Q'})
	assert.Error(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, TagInt, records[1].Tag)
	assert.Equal(t, -1, records[2].RefIndex)
}
