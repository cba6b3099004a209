package domain

import "strings"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageQuery 通用分页参数（query 绑定）
type PageQuery struct {
	Page   int    `form:"page"   binding:"omitempty,min=1"`
	Limit  int    `form:"limit"  binding:"omitempty,min=1,max=100"`
	SortBy string `form:"sortBy" binding:"omitempty,max=32"`
	Order  string `form:"order"  binding:"omitempty,oneof=asc desc ASC DESC"`
}

// Normalize 填默认值；sortBy 必须在白名单内，否则回落到 defSort
func (p PageQuery) Normalize(allowed []string, defSort, defOrder string) PageQuery {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	ok := false
	for _, a := range allowed {
		if p.SortBy == a {
			ok = true
			break
		}
	}
	if !ok {
		p.SortBy = defSort
	}
	p.Order = strings.ToLower(p.Order)
	if p.Order != "asc" && p.Order != "desc" {
		p.Order = defOrder
	}
	return p
}

func (p PageQuery) Offset() int { return (p.Page - 1) * p.Limit }

func (p PageQuery) Desc() bool { return p.Order == "desc" }

type Pagination struct {
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	SortBy     string `json:"sortBy"`
	Order      string `json:"order"`
	TotalPages int    `json:"totalPages"`
	HasNext    bool   `json:"hasNext"`
	HasPrev    bool   `json:"hasPrev"`
}

func NewPagination(p PageQuery, total int64) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		SortBy:     p.SortBy,
		Order:      p.Order,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
