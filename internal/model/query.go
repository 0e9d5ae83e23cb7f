package model

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListQuery is the normalized form of a list request. Filters only take
// effect for keys the resource whitelists.
type ListQuery struct {
	TenantID       *int64
	Search         string
	Filters        map[string]string
	Limit          int
	Offset         int
	IncludeDeleted bool
}

func (q ListQuery) Page() (limit, offset int) {
	limit, offset = q.Limit, q.Offset
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type ListResult[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
}
