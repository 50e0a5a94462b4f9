package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_Encode(t *testing.T) {
	for _, c := range []Cursor{{}, {Position: 42}, {Position: 7, Reverse: true}} {
		got, err := DecodeCursor(c.Encode())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestDecodeCursor_invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "empty", cursor: ""},
		{name: "not base64", cursor: "%%%"},
		{name: "no position", cursor: "cj0x"},  // r=1
		{name: "negative", cursor: "cD0tMQ=="}, // p=-1
		{name: "garbage", cursor: "bG9s"},      // lol
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.cursor)
			assert.Equal(t, ErrInvalidCursor, err)
		})
	}
}

func TestNewPage(t *testing.T) {
	cur := func(pos int64, rev bool) *Cursor { return &Cursor{Position: pos, Reverse: rev} }

	tests := []struct {
		name     string
		q        PageQuery
		ids      []int64
		hasMore  bool
		wantNext *Cursor
		wantPrev *Cursor
	}{
		{name: "empty list", q: PageQuery{Limit: 2}},
		{name: "single page", q: PageQuery{Limit: 2}, ids: []int64{1, 2}},
		{name: "first page", q: PageQuery{Limit: 2}, ids: []int64{1, 2}, hasMore: true, wantNext: cur(2, false)},
		{
			name: "middle page", q: PageQuery{Cursor: cur(2, false), Limit: 2}, ids: []int64{3, 4}, hasMore: true,
			wantNext: cur(4, false), wantPrev: cur(3, true),
		},
		{name: "last page", q: PageQuery{Cursor: cur(4, false), Limit: 2}, ids: []int64{5}, wantPrev: cur(5, true)},
		{name: "past the end", q: PageQuery{Cursor: cur(9, false), Limit: 2}, wantPrev: cur(10, true)},
		{
			name: "back to the middle", q: PageQuery{Cursor: cur(5, true), Limit: 2}, ids: []int64{3, 4}, hasMore: true,
			wantNext: cur(4, false), wantPrev: cur(3, true),
		},
		{name: "back to the start", q: PageQuery{Cursor: cur(3, true), Limit: 2}, ids: []int64{1, 2}, wantNext: cur(2, false)},
		{name: "before the start", q: PageQuery{Cursor: cur(1, true), Limit: 2}, wantNext: cur(0, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage(tt.q, tt.ids, tt.hasMore)
			assert.Equal(t, tt.wantNext, page.Next, "next")
			assert.Equal(t, tt.wantPrev, page.Previous, "previous")
		})
	}
}
