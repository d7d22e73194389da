// Package domain models hydraulic model result stores and the queries run
// against them.
//
// # Result Stores
//
// A result store is the post-processed output of a flood model run. One run
// produces time-series results across up to three domains:
//
//	1D  - the channel network: nodes (points, e.g. water level) and
//	      channels (lines, e.g. flow, velocity). Channels carry static
//	      attributes too: length, inverts, obverts, connected node ids.
//	2D  - plot output objects extracted from the 2D grid: points, lines,
//	      and polygons placed by the modeller.
//	RL  - reporting locations: a second family of point/line/polygon
//	      extraction objects with their own result tables.
//
// The same object id may appear in more than one domain, so every query
// passes through a slash-delimited filter expression that can pin down the
// domain ("1d", "2d"/"po", "rl"/"0d"), the geometry ("point", "line",
// "polygon"/"region"), an attribute ("max", "min", "static", "temporal"),
// a data type, or an id. "channel" and "node" are shorthand for 1d/line and
// 1d/point. See [Resolve].
//
// # Data Type Names
//
// Result files spell data types inconsistently ("h", "Water Level",
// "max water level", "Hmax"). [Normalize] maps every spelling onto one
// canonical vocabulary, carrying max/min/tmax/tmin modifiers through as
// canonical prefixes. Unknown names pass through lower-cased so callers can
// still query vendor-specific types.
//
// # Time
//
// All result times are stored as hours relative to the run reference time.
// Queries choose between relative hours and absolute timestamps
// (reference time + offset). Values below -99998 are the dry/no-data
// sentinel and are surfaced as NaN.
//
// # Long Profiles
//
// [ChannelGraph] walks the 1D network downstream to assemble long profiles:
// ordered channel runs from one or more upstream ids to a downstream target
// or outlet, melted into per-node rows with cumulative chainage offsets and
// optional data columns (bed level, pipe obverts, maxima, or a temporal
// snapshot at a requested time).
package domain
