package echoapi

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cmeonline/enrollments/core"
)

var (
	pageSizeParam = "page_size"
	cursorParam   = "cursor"
)

// Pagination binds the `page_size` and `cursor` query params.
type Pagination struct {
	Query core.PageQuery
}

// Bind falls back to defaultSize for missing or invalid page sizes. An undecodable cursor is an error.
func (p *Pagination) Bind(ctx echo.Context, defaultSize int) error {
	p.Query.Limit = defaultSize
	if size, err := strconv.Atoi(ctx.QueryParam(pageSizeParam)); err == nil && size > 0 {
		p.Query.Limit = size
	}

	if raw := ctx.QueryParam(cursorParam); raw != "" {
		cursor, err := core.DecodeCursor(raw)
		if err != nil {
			return errInvalidCursor
		}
		p.Query.Cursor = &cursor
	}
	return nil
}

// pageURL returns the absolute URL of the current request pointing at cursor, or nil without a cursor.
func pageURL(ctx echo.Context, cursor *core.Cursor) *string {
	if cursor == nil {
		return nil
	}
	req := ctx.Request()
	q := make(url.Values)
	for k, v := range req.URL.Query() {
		q[k] = v
	}
	q.Set(cursorParam, cursor.Encode())

	u := url.URL{
		Scheme:   ctx.Scheme(),
		Host:     req.Host,
		Path:     req.URL.Path,
		RawQuery: q.Encode(),
	}
	s := u.String()
	return &s
}

type pageResponse struct {
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

func newPageResponse(ctx echo.Context, page core.Page, results interface{}) pageResponse {
	return pageResponse{
		Next:     pageURL(ctx, page.Next),
		Previous: pageURL(ctx, page.Previous),
		Results:  results,
	}
}
