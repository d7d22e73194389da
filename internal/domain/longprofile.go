package domain

import (
	"math"
	"sort"
	"strings"
)

// ChannelRecord holds the static attributes of one 1D channel. IsPit
// marks pit channels, which hang off a node without joining the flow
// path; stores mark these with blank channel adjacency columns.
type ChannelRecord struct {
	ID       string
	USNode   string
	DSNode   string
	Length   float64
	USInvert float64
	DSInvert float64
	USObvert float64
	DSObvert float64
	IsPipe   bool
	IsPit    bool
}

// NodeRecord holds the static attributes of one 1D node.
type NodeRecord struct {
	ID       string
	BedLevel float64
	TopLevel float64
}

// ChannelGraph answers downstream-connectivity queries over the 1D
// network. Ids are matched case-insensitively; results carry the
// case-correct ids from the store.
type ChannelGraph struct {
	channels map[string]ChannelRecord // keyed lower-cased id
	order    []string
	byUSNode map[string][]string // lower node id -> channel ids upstream-connected there
	byDSNode map[string][]string
}

// NewChannelGraph indexes the channel records for traversal.
func NewChannelGraph(channels []ChannelRecord) *ChannelGraph {
	g := &ChannelGraph{
		channels: make(map[string]ChannelRecord, len(channels)),
		byUSNode: make(map[string][]string),
		byDSNode: make(map[string][]string),
	}
	for _, c := range channels {
		key := strings.ToLower(c.ID)
		if _, ok := g.channels[key]; ok {
			continue
		}
		g.channels[key] = c
		g.order = append(g.order, c.ID)
		us := strings.ToLower(c.USNode)
		ds := strings.ToLower(c.DSNode)
		g.byUSNode[us] = append(g.byUSNode[us], c.ID)
		g.byDSNode[ds] = append(g.byDSNode[ds], c.ID)
	}
	return g
}

// Empty reports whether the store carried no channel network.
func (g *ChannelGraph) Empty() bool {
	return len(g.order) == 0
}

// Lookup finds a channel by id, case-insensitively.
func (g *ChannelGraph) Lookup(id string) (ChannelRecord, bool) {
	c, ok := g.channels[strings.ToLower(id)]
	return c, ok
}

// downstream lists the channels whose upstream node is the given
// channel's downstream node. Pit channels never continue a flow path.
func (g *ChannelGraph) downstream(id string) []string {
	c, ok := g.Lookup(id)
	if !ok {
		return nil
	}
	var out []string
	for _, next := range g.byUSNode[strings.ToLower(c.DSNode)] {
		if d, ok := g.Lookup(next); ok && !d.IsPit {
			out = append(out, d.ID)
		}
	}
	return out
}

// trace walks downstream from id1, collecting every complete path. A path
// completes at the target id2, at an outlet (no downstream channel, only
// when no target is set), or when the next channel already occurs in the
// current path (a loop). Paths that dead-end while a target is set are
// dropped.
func (g *ChannelGraph) trace(id1, id2 string) [][]string {
	var paths [][]string
	target := strings.ToLower(id2)

	type frame struct {
		id   string
		path []string
	}
	stack := []frame{{id: id1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := f.path
		if !containsID(path, f.id) {
			path = append(append([]string(nil), path...), f.id)
		}
		next := g.downstream(f.id)
		if len(next) == 0 {
			if id2 == "" {
				paths = append(paths, path)
			}
			continue
		}
		looped := false
		for _, d := range next {
			if id2 != "" && strings.ToLower(d) == target {
				done := path
				if !containsID(done, d) {
					done = append(append([]string(nil), done...), d)
				}
				paths = append(paths, done)
				continue
			}
			if containsID(path, d) {
				// Several looping downstreams finish with the same
				// path; record it once.
				if !looped {
					paths = append(paths, path)
					looped = true
				}
				continue
			}
			stack = append(stack, frame{id: d, path: path})
		}
	}
	return paths
}

func containsID(path []string, id string) bool {
	for _, have := range path {
		if strings.EqualFold(have, id) {
			return true
		}
	}
	return false
}

// Connect traces the channel run between two ids. With an empty id2 every
// path to an outlet is returned. When id2 is set and unreachable
// downstream of id1, the swapped direction is tried before giving up.
func (g *ChannelGraph) Connect(id1, id2 string) ([][]string, bool) {
	c1, ok := g.Lookup(id1)
	if !ok {
		return nil, false
	}
	if id2 == "" {
		paths := g.trace(c1.ID, "")
		return paths, len(paths) > 0
	}
	c2, ok := g.Lookup(id2)
	if !ok {
		return nil, false
	}
	if paths := g.trace(c1.ID, c2.ID); len(paths) > 0 {
		return paths, true
	}
	if paths := g.trace(c2.ID, c1.ID); len(paths) > 0 {
		return paths, true
	}
	return nil, false
}

// ConnectAll builds the branch set for one or more ids.
//
// One id traces to the outlet. Two ids trace between themselves. With
// three or more, a mutually connected pair anchors the profile: the
// downstream end of that pair becomes the shared target and every other
// id is connected to it, each upstream id contributing its own branches.
// Extra ids that cannot reach the anchor are skipped and returned in the
// second result; the error is reserved for id sets with no mutually
// connected pair at all.
func (g *ChannelGraph) ConnectAll(ids []string) ([]Branch, []string, error) {
	switch len(ids) {
	case 0:
		return nil, nil, &ConnectivityError{}
	case 1:
		paths, ok := g.Connect(ids[0], "")
		if !ok {
			return nil, nil, &ConnectivityError{IDs: ids}
		}
		return numberBranches(nil, paths), nil, nil
	case 2:
		paths, ok := g.Connect(ids[0], ids[1])
		if !ok {
			return nil, nil, &ConnectivityError{IDs: ids}
		}
		return numberBranches(nil, paths), nil, nil
	}

	anchor, rest, ok := g.findAnchor(ids)
	if !ok {
		return nil, nil, &ConnectivityError{IDs: ids}
	}
	var branches []Branch
	var skipped []string
	for _, id := range rest {
		paths, ok := g.Connect(id, anchor)
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		branches = numberBranches(branches, paths)
	}
	return branches, skipped, nil
}

// findAnchor locates a connected pair among the ids and returns the
// downstream end of that pair plus the remaining ids to connect to it.
func (g *ChannelGraph) findAnchor(ids []string) (string, []string, bool) {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			paths := g.traceBetween(ids[i], ids[j])
			if paths == nil {
				continue
			}
			// The last channel of any path is the downstream end.
			last := paths[0][len(paths[0])-1]
			rest := make([]string, 0, len(ids)-1)
			for _, id := range ids {
				if !strings.EqualFold(id, last) {
					rest = append(rest, id)
				}
			}
			return last, rest, true
		}
	}
	return "", nil, false
}

func (g *ChannelGraph) traceBetween(id1, id2 string) [][]string {
	c1, ok1 := g.Lookup(id1)
	c2, ok2 := g.Lookup(id2)
	if !ok1 || !ok2 {
		return nil
	}
	if paths := g.trace(c1.ID, c2.ID); len(paths) > 0 {
		return paths
	}
	if paths := g.trace(c2.ID, c1.ID); len(paths) > 0 {
		return paths
	}
	return nil
}

// Branch is one ordered upstream-to-downstream channel run.
type Branch struct {
	ID       int
	Channels []string
}

// numberBranches appends paths as branches with fresh 0-based ids per
// call group, continuing the numbering already present in branches.
func numberBranches(branches []Branch, paths [][]string) []Branch {
	next := 0
	for _, b := range branches {
		if b.ID >= next {
			next = b.ID + 1
		}
	}
	for _, p := range paths {
		branches = append(branches, Branch{ID: next, Channels: p})
		next++
	}
	return branches
}

// ProfileEntry is one plotted vertex of a long profile: a channel end at
// a node, with the cumulative chainage offset along its branch.
type ProfileEntry struct {
	BranchID int
	Channel  string
	Node     string
	Offset   float64
}

// ProfileColumn is one data column aligned with a profile's entries.
type ProfileColumn struct {
	Name   string
	Values []float64
}

// ProfileFrame is an assembled long profile: interleaved upstream and
// downstream node rows per channel, offsets resetting at each branch,
// plus any requested data columns.
type ProfileFrame struct {
	Entries []ProfileEntry
	Columns []ProfileColumn
}

// Column returns a data column by name.
func (f *ProfileFrame) Column(name string) ([]float64, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// BranchIDs returns the distinct branch ids in entry order.
func (f *ProfileFrame) BranchIDs() []int {
	var out []int
	seen := make(map[int]struct{})
	for _, e := range f.Entries {
		if _, ok := seen[e.BranchID]; ok {
			continue
		}
		seen[e.BranchID] = struct{}{}
		out = append(out, e.BranchID)
	}
	sort.Ints(out)
	return out
}

// BuildProfile melts branches into per-node rows. Each channel
// contributes its upstream then downstream node; offsets accumulate
// channel lengths and reset at each new branch.
func (g *ChannelGraph) BuildProfile(branches []Branch) *ProfileFrame {
	frame := &ProfileFrame{}
	for _, b := range branches {
		offset := 0.0
		for _, id := range b.Channels {
			c, ok := g.Lookup(id)
			if !ok {
				continue
			}
			frame.Entries = append(frame.Entries,
				ProfileEntry{BranchID: b.ID, Channel: c.ID, Node: c.USNode, Offset: offset},
				ProfileEntry{BranchID: b.ID, Channel: c.ID, Node: c.DSNode, Offset: offset + c.Length},
			)
			offset += c.Length
		}
	}
	return frame
}

// AddBedLevel appends the channel invert column: upstream inverts on
// upstream rows, downstream inverts on downstream rows.
func (f *ProfileFrame) AddBedLevel(g *ChannelGraph) {
	vals := make([]float64, len(f.Entries))
	for i, e := range f.Entries {
		c, ok := g.Lookup(e.Channel)
		if !ok {
			vals[i] = math.NaN()
			continue
		}
		if i%2 == 0 {
			vals[i] = c.USInvert
		} else {
			vals[i] = c.DSInvert
		}
	}
	f.Columns = append(f.Columns, ProfileColumn{Name: "bed level", Values: vals})
}

// AddPipes appends the pipe obvert column. Non-pipe channels get NaN so
// plots break the line between culverts.
func (f *ProfileFrame) AddPipes(g *ChannelGraph) {
	vals := make([]float64, len(f.Entries))
	for i, e := range f.Entries {
		c, ok := g.Lookup(e.Channel)
		if !ok || !c.IsPipe {
			vals[i] = math.NaN()
			continue
		}
		if i%2 == 0 {
			vals[i] = c.USObvert
		} else {
			vals[i] = c.DSObvert
		}
	}
	f.Columns = append(f.Columns, ProfileColumn{Name: "pipes", Values: vals})
}

// AddPits appends the pit invert column: at each node, the invert of a
// pit channel draining there, NaN elsewhere.
func (f *ProfileFrame) AddPits(g *ChannelGraph) {
	vals := make([]float64, len(f.Entries))
	for i, e := range f.Entries {
		vals[i] = math.NaN()
		for _, id := range g.byDSNode[strings.ToLower(e.Node)] {
			c, ok := g.Lookup(id)
			if ok && c.IsPit {
				vals[i] = c.DSInvert
				break
			}
		}
	}
	f.Columns = append(f.Columns, ProfileColumn{Name: "pits", Values: vals})
}

// AddNodeColumn appends a column of per-node values looked up from vals,
// NaN for nodes without an entry. Used for node maxima and temporal
// snapshots.
func (f *ProfileFrame) AddNodeColumn(name string, vals map[string]float64) {
	out := make([]float64, len(f.Entries))
	for i, e := range f.Entries {
		v, ok := vals[strings.ToLower(e.Node)]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	f.Columns = append(f.Columns, ProfileColumn{Name: name, Values: out})
}
