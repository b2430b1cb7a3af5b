package pagination

// Page-number pagination used by the song catalog. Unlike cursors, an out of
// range page is not an error: callers get an empty page with totals intact.

const DefaultPageSize = 10

// PageRequest is a 1-based page number and a page size.
type PageRequest struct {
	Number int
	Size   int
}

// NormalizePageSize applies the default for non-positive sizes and caps at max
// when max is positive.
func NormalizePageSize(size, fallback, max int) int {
	if fallback <= 0 {
		fallback = DefaultPageSize
	}
	if size <= 0 {
		size = fallback
	}
	if max > 0 && size > max {
		size = max
	}
	return size
}

// TotalPages is ceil(count / size); zero rows means zero pages.
func TotalPages(count int64, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	return int((count + int64(size) - 1) / int64(size))
}

// InRange reports whether page addresses an existing page.
func (p PageRequest) InRange(totalPages int) bool {
	return p.Number >= 1 && p.Number <= totalPages
}

// Offset is the number of rows preceding the page. Only meaningful when the
// page is in range.
func (p PageRequest) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
