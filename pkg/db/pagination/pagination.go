// Package pagination implements opaque cursor paging for list
// endpoints. Cursors encode the snowflake ID of the last returned row;
// IDs are time ordered, so "id < cursor" walks newest to oldest.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

var ErrInvalidCursor = errors.New("invalid_page_token")

// Pagination binds the paging query parameters of a list request.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size to [1, MaxPageSize].
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// After decodes the cursor into the exclusive lower bound for the next
// page. A zero ID means the first page.
func (p Pagination) After() (snowflake.ID, error) {
	if p.PageToken == "" {
		return 0, nil
	}
	cursor, err := decodeCursor(p.PageToken)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	return id, nil
}

// PageInfo is returned alongside every page.
type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

type cursor struct {
	ID string `json:"id"`
}

func encodeCursor(c cursor) string {
	b, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(b)
}

func decodeCursor(token string) (*cursor, error) {
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// BuildPage trims an over-fetched result set to the page limit and
// derives the cursor for the following page. Callers query limit+1
// rows to learn whether more remain.
func BuildPage[T any](rows []T, limit int, lastID func(T) snowflake.ID) ([]T, *PageInfo) {
	info := &PageInfo{}
	if len(rows) > limit {
		info.HasMore = true
		rows = rows[:limit]
	}
	if len(rows) > 0 && info.HasMore {
		info.NextPageToken = encodeCursor(cursor{ID: lastID(rows[len(rows)-1]).String()})
	}
	return rows, info
}
