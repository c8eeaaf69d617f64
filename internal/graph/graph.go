// Package graph maintains the in-memory link index: each note's outgoing
// [[links]] and, for every existing note, the notes that link to it.
package graph

import (
	"sort"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
)

type set map[string]struct{}

// Index is the forward/backward link index. Keys are normalized titles
// (parser.Normalize). The backward map is always the transpose of the
// forward map restricted to targets that exist as notes.
//
// Index is not safe for concurrent use.
type Index struct {
	titles   map[string]string   // key -> display title of existing notes
	forward  map[string][]string // key -> raw targets in body order, repeats kept
	inbound  map[string]set      // target key -> source keys, resolved or not
	backward map[string]set      // note key -> source keys resolving to it
}

// New returns an empty index.
func New() *Index {
	g := &Index{}
	g.reset()
	return g
}

func (g *Index) reset() {
	g.titles = make(map[string]string)
	g.forward = make(map[string][]string)
	g.inbound = make(map[string]set)
	g.backward = make(map[string]set)
}

// Rebuild discards all state and recomputes both maps from notes.
func (g *Index) Rebuild(notes []*models.Note) {
	g.reset()
	for _, n := range notes {
		g.titles[parser.Normalize(n.Title)] = n.Title
	}
	for _, n := range notes {
		g.addEdges(parser.Normalize(n.Title), n.Body)
	}
	for key := range g.titles {
		g.refresh(key)
	}
}

// Put records title with the given body, replacing the edges derived from
// its previous body. Only backward entries of the old and new targets, and
// of title itself, are recomputed.
func (g *Index) Put(title, body string) {
	key := parser.Normalize(title)
	affected := g.dropEdges(key)
	g.titles[key] = title
	for t := range g.addEdges(key, body) {
		affected[t] = struct{}{}
	}
	// A new title may resolve links that already pointed at it.
	affected[key] = struct{}{}
	for t := range affected {
		g.refresh(t)
	}
}

// Remove deletes title and its outgoing edges. Links from other notes to
// title stay in their raw link lists but no longer resolve.
func (g *Index) Remove(title string) {
	key := parser.Normalize(title)
	if _, ok := g.titles[key]; !ok {
		return
	}
	affected := g.dropEdges(key)
	delete(g.titles, key)
	affected[key] = struct{}{}
	for t := range affected {
		g.refresh(t)
	}
}

// Has reports whether title is a known note.
func (g *Index) Has(title string) bool {
	_, ok := g.titles[parser.Normalize(title)]
	return ok
}

// Resolve returns the display title a link target resolves to.
func (g *Index) Resolve(target string) (string, bool) {
	t, ok := g.titles[parser.Normalize(target)]
	return t, ok
}

// RawLinks returns every link occurrence in title's body, in order.
func (g *Index) RawLinks(title string) []string {
	raw := g.forward[parser.Normalize(title)]
	out := make([]string, len(raw))
	copy(out, raw)
	return out
}

// Links returns title's outgoing link targets without repeats, in order of
// first appearance. Unresolved targets are included.
func (g *Index) Links(title string) []string {
	return parser.Dedup(g.forward[parser.Normalize(title)])
}

// Split partitions title's deduplicated links into resolved display titles
// and unresolved raw targets.
func (g *Index) Split(title string) (resolved, unresolved []string) {
	resolved, unresolved = []string{}, []string{}
	for _, l := range g.Links(title) {
		if t, ok := g.Resolve(l); ok {
			resolved = append(resolved, t)
		} else {
			unresolved = append(unresolved, l)
		}
	}
	return resolved, unresolved
}

// Backlinks returns the display titles of notes linking to title, sorted
// alphabetically (case-insensitive, display title breaks ties).
func (g *Index) Backlinks(title string) []string {
	return g.sortedTitles(g.backward[parser.Normalize(title)])
}

// Titles returns every known note title, sorted like Backlinks.
func (g *Index) Titles() []string {
	keys := make(set, len(g.titles))
	for k := range g.titles {
		keys[k] = struct{}{}
	}
	return g.sortedTitles(keys)
}

// Edges returns every resolved edge once, sorted by source then target.
func (g *Index) Edges() []models.Edge {
	var out []models.Edge
	for target, sources := range g.backward {
		for src := range sources {
			out = append(out, models.Edge{Source: g.titles[src], Target: g.titles[target]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ka, kb := parser.Normalize(a.Source), parser.Normalize(b.Source); ka != kb {
			return ka < kb
		}
		return parser.Normalize(a.Target) < parser.Normalize(b.Target)
	})
	return out
}

// Snapshot is a comparable copy of the index state.
type Snapshot struct {
	Forward  map[string][]string
	Backward map[string][]string
}

// Snapshot copies both maps; backward sources are listed as sorted keys.
func (g *Index) Snapshot() Snapshot {
	s := Snapshot{
		Forward:  make(map[string][]string, len(g.forward)),
		Backward: make(map[string][]string, len(g.backward)),
	}
	for k, v := range g.forward {
		s.Forward[k] = append([]string(nil), v...)
	}
	for k, v := range g.backward {
		keys := make([]string, 0, len(v))
		for src := range v {
			keys = append(keys, src)
		}
		sort.Strings(keys)
		s.Backward[k] = keys
	}
	return s
}

// addEdges parses body as key's outgoing links and returns the target keys.
func (g *Index) addEdges(key, body string) set {
	raw := parser.ExtractLinks(body)
	targets := make(set, len(raw))
	if len(raw) > 0 {
		g.forward[key] = raw
	}
	for _, l := range raw {
		t := parser.Normalize(l)
		targets[t] = struct{}{}
		if g.inbound[t] == nil {
			g.inbound[t] = make(set)
		}
		g.inbound[t][key] = struct{}{}
	}
	return targets
}

// dropEdges removes key's outgoing edges and returns the old target keys.
func (g *Index) dropEdges(key string) set {
	old := make(set)
	for _, l := range g.forward[key] {
		t := parser.Normalize(l)
		old[t] = struct{}{}
		if src := g.inbound[t]; src != nil {
			delete(src, key)
			if len(src) == 0 {
				delete(g.inbound, t)
			}
		}
	}
	delete(g.forward, key)
	return old
}

// refresh recomputes the backward entry for one target key.
func (g *Index) refresh(target string) {
	src := g.inbound[target]
	if _, exists := g.titles[target]; !exists || len(src) == 0 {
		delete(g.backward, target)
		return
	}
	cp := make(set, len(src))
	for s := range src {
		cp[s] = struct{}{}
	}
	g.backward[target] = cp
}

func (g *Index) sortedTitles(keys set) []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, g.titles[k])
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := parser.Normalize(out[i]), parser.Normalize(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i] < out[j]
	})
	return out
}
