package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"
)

const (
	generalQueryTimeout = 60 * time.Second
	defaultPageSize     = 30
	maxPageSize         = 1000
)

// Pagination describes one page of a list result
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// dbWithTimeout bounds a read with the general query timeout
func dbWithTimeout(ctx context.Context, db *gorm.DB) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, generalQueryTimeout)
	return db.WithContext(ctx), cancel
}

func getPage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

func getPageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}

func getTotalPages(totalRows, pageSize int) int {
	return int(math.Ceil(float64(totalRows) / float64(pageSize)))
}

// paginate resolves the window of the requested page over n rows.
// start never passes n, so a huge page number yields an empty window.
func paginate(n, page, pageSize int) (int, int, Pagination) {
	page = getPage(page)
	pageSize = getPageSize(pageSize)

	start := n
	if page-1 <= n/pageSize {
		start = min((page-1)*pageSize, n)
	}
	end := min(start+pageSize, n)
	return start, end, Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalRows:  n,
		TotalPages: getTotalPages(n, pageSize),
	}
}
