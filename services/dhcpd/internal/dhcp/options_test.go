package dhcp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want Options
	}{
		{
			name: "empty",
			raw:  nil,
			want: Options{},
		},
		{
			name: "pad bytes skipped",
			raw:  []byte{0, 0, 53, 1, 1, 0, 255},
			want: Options{53: {1}},
		},
		{
			name: "end stops parsing",
			raw:  []byte{53, 1, 3, 255, 50, 4, 10, 0, 0, 10},
			want: Options{53: {3}},
		},
		{
			name: "last occurrence wins",
			raw:  []byte{53, 1, 1, 53, 1, 3, 255},
			want: Options{53: {3}},
		},
		{
			name: "zero length value",
			raw:  []byte{53, 0, 255},
			want: Options{53: {}},
		},
		{
			name: "missing terminator",
			raw:  []byte{53, 1, 1, 54, 4, 10, 0, 0, 1},
			want: Options{53: {1}, 54: {10, 0, 0, 1}},
		},
		{
			name: "truncated before length byte",
			raw:  []byte{53, 1, 1, 50},
			want: Options{53: {1}},
		},
		{
			name: "message type cut short",
			raw:  []byte{53, 2, 1},
			want: Options{},
		},
		{
			name: "truncated value",
			raw:  []byte{53, 1, 1, 50, 4, 10, 0},
			want: Options{53: {1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseOptions(tt.raw))
		})
	}
}

func TestParseOptionsDoesNotAliasInput(t *testing.T) {
	raw := []byte{50, 4, 10, 0, 0, 10, 255}
	opts := ParseOptions(raw)
	raw[2] = 99
	require.Equal(t, []byte{10, 0, 0, 10}, opts[50])
}

func TestBuildOptions(t *testing.T) {
	got := BuildOptions([]Option{
		{Code: 53, Value: []byte{2}},
		{Code: 3, Value: nil},
		{Code: 54, Value: []byte{10, 0, 0, 1}},
	})
	require.Equal(t, []byte{53, 1, 2, 54, 4, 10, 0, 0, 1, 255}, got)

	require.Equal(t, []byte{255}, BuildOptions(nil))
}

func TestBuildOptionsClipsLongValues(t *testing.T) {
	got := BuildOptions([]Option{{Code: 12, Value: bytes.Repeat([]byte{'a'}, 300)}})
	require.Len(t, got, 2+255+1)
	require.Equal(t, byte(255), got[1])
}

func TestOptionsRoundTrip(t *testing.T) {
	lists := [][]Option{
		{
			{Code: 53, Value: []byte{5}},
			{Code: 54, Value: []byte{192, 168, 1, 1}},
			{Code: 51, Value: []byte{0, 0, 14, 16}},
			{Code: 1, Value: []byte{255, 255, 255, 0}},
			{Code: 3, Value: []byte{192, 168, 1, 1}},
			{Code: 6, Value: []byte{8, 8, 8, 8}},
		},
		{
			{Code: 12, Value: []byte("bmc-rack3")},
			{Code: 61, Value: []byte{}},
			{Code: 12, Value: []byte("bmc-rack4")},
		},
		{},
	}

	for _, list := range lists {
		want := Options{}
		for _, o := range list {
			want[o.Code] = o.Value
		}
		require.Equal(t, want, ParseOptions(BuildOptions(list)))
	}
}
