package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Offset int
}

// Normalize clamps the inputs into valid bounds: limit falls back to the
// default when unset and is capped at the maximum; a negative offset becomes
// zero.
func (p Params) Normalize() Params {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Meta describes the page that was returned relative to the full result set.
type Meta struct {
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewMeta derives page metadata from normalized params and the total count.
func NewMeta(params Params, total int64) Meta {
	params = params.Normalize()
	return Meta{
		Total:       total,
		Limit:       params.Limit,
		Offset:      params.Offset,
		HasNext:     int64(params.Offset+params.Limit) < total,
		HasPrevious: params.Offset > 0,
	}
}
