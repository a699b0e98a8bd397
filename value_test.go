package edb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueView_AsIntRoundTrip(t *testing.T) {
	gen := &generation{}
	buf32 := make([]byte, 4)
	var in32 int32 = -7
	binary.NativeEndian.PutUint32(buf32, uint32(in32))
	v32 := newValueView(buf32, gen)
	n32, err := v32.AsInt32()
	require.NoError(t, err)
	require.Equal(t, int32(-7), n32)

	buf64 := make([]byte, 8)
	var in64 int64 = -7
	binary.NativeEndian.PutUint64(buf64, uint64(in64))
	v64 := newValueView(buf64, gen)
	n64, err := v64.AsInt64()
	require.NoError(t, err)
	require.Equal(t, int64(-7), n64)
}

func TestValueView_AsIntBadSize(t *testing.T) {
	gen := &generation{}
	v := newValueView([]byte{1, 2, 3}, gen)
	_, err := v.AsInt32()
	require.True(t, IsKind(err, KindBadValueSize))
}

func TestValueView_NilAndOwned(t *testing.T) {
	gen := &generation{}
	nilView := newValueView(nil, gen)
	require.True(t, nilView.IsNil())
	require.Nil(t, nilView.Owned())

	raw := []byte("hello")
	v := newValueView(raw, gen)
	owned := v.Owned()
	require.Equal(t, raw, owned)
	raw[0] = 'X'
	require.NotEqual(t, raw, owned)
}
