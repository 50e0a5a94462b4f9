package core

import (
	"encoding/base64"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is an opaque position in a list ordered by ascending ID.
// A forward cursor selects rows after Position, a reverse one rows before it.
type Cursor struct {
	Position int64
	Reverse  bool
}

// Encode returns the url-safe representation of the cursor.
func (c Cursor) Encode() string {
	v := make(url.Values)
	v.Set("p", strconv.FormatInt(c.Position, 10))
	if c.Reverse {
		v.Set("r", "1")
	}
	return base64.URLEncoding.EncodeToString([]byte(v.Encode()))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	v, err := url.ParseQuery(string(raw))
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	pos, err := strconv.ParseInt(v.Get("p"), 10, 64)
	if err != nil || pos < 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{Position: pos, Reverse: v.Get("r") == "1"}, nil
}

// PageQuery asks a repository for at most Limit rows starting at Cursor (nil means the first page).
type PageQuery struct {
	Cursor *Cursor
	Limit  int
}

// Page wraps one page of results together with the cursors of its neighbours.
type Page struct {
	Next     *Cursor
	Previous *Cursor
}

// NewPage computes the neighbour cursors of a page.
// ids are the IDs of the fetched rows in ascending order, hasMore reports whether
// the repository found rows beyond the requested limit in the direction of the query.
func NewPage(q PageQuery, ids []int64, hasMore bool) Page {
	var page Page
	reverse := q.Cursor != nil && q.Cursor.Reverse

	if len(ids) == 0 {
		if q.Cursor != nil {
			if reverse {
				page.Next = &Cursor{Position: q.Cursor.Position - 1}
			} else {
				page.Previous = &Cursor{Position: q.Cursor.Position + 1, Reverse: true}
			}
		}
		return page
	}

	first, last := ids[0], ids[len(ids)-1]
	if reverse {
		page.Next = &Cursor{Position: last}
		if hasMore {
			page.Previous = &Cursor{Position: first, Reverse: true}
		}
		return page
	}

	if hasMore {
		page.Next = &Cursor{Position: last}
	}
	if q.Cursor != nil {
		page.Previous = &Cursor{Position: first, Reverse: true}
	}
	return page
}
