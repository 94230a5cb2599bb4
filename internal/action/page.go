package action

const (
	MaxPageSize = 100
	// MaxPage keeps Offset far from int overflow.
	MaxPage = 1_000_000
)

type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Paging is a normalized page request.
type Paging struct {
	Page     int
	PageSize int
}

// NewPaging clamps page to 1..MaxPage and pageSize to 1..MaxPageSize, falling back to def.
func NewPaging(page, pageSize, def int) Paging {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = def
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Paging{Page: page, PageSize: pageSize}
}

func (p Paging) Limit() int  { return p.PageSize }
func (p Paging) Offset() int { return (p.Page - 1) * p.PageSize }

func NewPage[T any](items []T, total int, p Paging) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}
