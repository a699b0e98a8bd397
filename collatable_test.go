package edb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollatable_IntOrdering(t *testing.T) {
	values := []int64{
		-1 << 63, -1 << 40, -(1 << 32), -65536, -256, -1, 0,
		1, 255, 256, 65536, 1 << 32, 1 << 40, (1 << 63) - 1,
	}
	for i := 1; i < len(values); i++ {
		lo := NewCollatable(values[i-1])
		hi := NewCollatable(values[i])
		require.Negativef(t, lo.Cmp(hi), "expected %d < %d in byte order", values[i-1], values[i])
	}
}

func TestCollatable_RoundTrip(t *testing.T) {
	c := NewCollatable(nil, true, false, int64(-42), int64(42), "hello")
	items := c.Items()
	require.Len(t, items, 6)
	require.True(t, items[0].Null)
	require.True(t, items[1].Bool)
	require.False(t, items[2].Bool)
	require.Equal(t, int64(-42), items[3].Int)
	require.Equal(t, int64(42), items[4].Int)
	require.Equal(t, "hello", items[5].Str)
}

func TestCollatable_TupleOrderingIsLexicographic(t *testing.T) {
	a := NewCollatable("alice", int64(1))
	b := NewCollatable("alice", int64(2))
	c := NewCollatable("bob", int64(0))
	require.Negative(t, a.Cmp(b))
	require.Negative(t, b.Cmp(c))
}

func TestCollatable_AtPastEndIsNull(t *testing.T) {
	c := NewCollatable("x")
	item := c.At(5)
	require.True(t, item.Null)
}

func TestCollatable_Concat(t *testing.T) {
	a := NewCollatable("alice")
	b := NewCollatable(int64(7))
	a.Concat(b)
	require.Equal(t, []Item{{Str: "alice", IsStr: true}, {Int: 7, IsInt: true}}, a.Items())
}
