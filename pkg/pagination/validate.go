package pagination

const (
	// DefaultLimit is used when the caller omits a page size.
	DefaultLimit = 20

	// MaxLimit is the hard ceiling on a single page size.
	MaxLimit = 100
)

// Validate clamps pagination arguments: page is at least 1, a missing
// or non-positive limit becomes DefaultLimit, and limit never exceeds
// MaxLimit.
func Validate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return page, limit
}
