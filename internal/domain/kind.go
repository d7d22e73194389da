package domain

// Domain identifies which part of the model a result object belongs to.
type Domain string

const (
	// Domain1D covers the channel network: nodes and channels.
	Domain1D Domain = "1d"
	// Domain2D covers plot output objects extracted from the 2D grid.
	Domain2D Domain = "2d"
	// DomainRL covers reporting location objects.
	DomainRL Domain = "rl"
)

// Domains lists all domains in query priority order. When a bare id exists
// in more than one domain, the earlier domain wins any single-object lookup.
var Domains = []Domain{Domain1D, Domain2D, DomainRL}

// Geometry classifies a result object spatially.
type Geometry string

const (
	GeomPoint   Geometry = "point"
	GeomLine    Geometry = "line"
	GeomPolygon Geometry = "polygon"
)

// SupportsLongProfile reports whether a domain carries network connectivity.
// Only the 1D channel network does; 2D and RL objects are free-standing.
func (d Domain) SupportsLongProfile() bool {
	return d == Domain1D
}

// kindLabel returns the column-name prefix for a result object:
// "node" and "channel" for the 1D network by geometry, "po" for 2D plot
// output, "rl" for reporting locations.
func kindLabel(d Domain, g Geometry) string {
	switch d {
	case Domain1D:
		if g == GeomPoint {
			return "node"
		}
		return "channel"
	case Domain2D:
		return "po"
	default:
		return "rl"
	}
}
