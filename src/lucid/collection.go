package lucid

import (
	"context"
	"math"
)

// Pagination describes one page of a paginated result.
type Pagination struct {
	Total    int64 `json:"total"`
	PerPage  int   `json:"perPage"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
}

func newPagination(total int64, page, perPage int) *Pagination {
	return &Pagination{
		Total:    total,
		PerPage:  perPage,
		Page:     page,
		LastPage: int(math.Ceil(float64(total) / float64(perPage))),
	}
}

// Collection is an ordered result set.
type Collection struct {
	Rows  []*Model
	Pages *Pagination
}

func NewCollection(rows ...*Model) *Collection {
	if rows == nil {
		rows = []*Model{}
	}
	return &Collection{Rows: rows}
}

func (c *Collection) Size() int {
	return len(c.Rows)
}

func (c *Collection) IsEmpty() bool {
	return len(c.Rows) == 0
}

// First returns the first row or nil.
func (c *Collection) First() *Model {
	if len(c.Rows) == 0 {
		return nil
	}
	return c.Rows[0]
}

// Last returns the last row or nil.
func (c *Collection) Last() *Model {
	if len(c.Rows) == 0 {
		return nil
	}
	return c.Rows[len(c.Rows)-1]
}

// Ids returns the primary key of every row in order.
func (c *Collection) Ids() []interface{} {
	ids := make([]interface{}, len(c.Rows))
	for i, m := range c.Rows {
		ids[i] = m.ID()
	}
	return ids
}

// Load eager loads relations onto every row. All rows must share one model type.
func (c *Collection) Load(ctx context.Context, relations ...interface{}) error {
	if len(c.Rows) == 0 {
		return nil
	}
	loader := newEagerLoader()
	if err := loader.add(relations...); err != nil {
		return err
	}
	return loader.load(ctx, c.Rows[0].typ, c.Rows)
}
