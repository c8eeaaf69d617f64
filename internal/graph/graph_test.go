package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/quill/internal/models"
)

func notes(pairs ...string) []*models.Note {
	var out []*models.Note
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &models.Note{Title: pairs[i], Body: pairs[i+1]})
	}
	return out
}

func TestRebuild_LinksAndBacklinks(t *testing.T) {
	g := New()
	g.Rebuild(notes(
		"A", "see [[B]] and [[Missing]]",
		"B", "hi",
		"C", "also [[b]]",
	))

	assert.Equal(t, []string{"B", "Missing"}, g.Links("A"))
	assert.Equal(t, []string{"A", "C"}, g.Backlinks("B"))
	assert.Empty(t, g.Backlinks("Missing"), "unresolved targets have no backward entry")
	assert.Empty(t, g.Backlinks("A"))
}

func TestRebuild_Idempotent(t *testing.T) {
	set := notes(
		"One", "[[Two]] [[Three]] [[two]]",
		"Two", "[[One]]",
		"Three", "[[Nowhere]]",
	)
	g := New()
	g.Rebuild(set)
	first := g.Snapshot()
	for i := 0; i < 3; i++ {
		g.Rebuild(set)
		assert.Equal(t, first, g.Snapshot())
	}
}

func TestRawLinksKeepRepeats(t *testing.T) {
	g := New()
	g.Put("A", "[[B]] then [[b]] then [[C]] then [[B]]")

	assert.Equal(t, []string{"B", "b", "C", "B"}, g.RawLinks("A"))
	assert.Equal(t, []string{"B", "C"}, g.Links("A"))
}

func TestPut_CaseInsensitiveResolution(t *testing.T) {
	g := New()
	g.Put("Project Ideas", "...")
	g.Put("Journal", "today: [[ project ideas ]]")

	assert.Equal(t, []string{"Journal"}, g.Backlinks("Project Ideas"))
	assert.Equal(t, []string{"Journal"}, g.Backlinks("PROJECT IDEAS"))

	resolved, unresolved := g.Split("Journal")
	assert.Equal(t, []string{"Project Ideas"}, resolved)
	assert.Empty(t, unresolved)
}

func TestPut_NewNoteResolvesExistingLinks(t *testing.T) {
	g := New()
	g.Put("A", "see [[B]]")
	assert.Empty(t, g.Backlinks("B"))

	g.Put("B", "hi")
	assert.Equal(t, []string{"A"}, g.Backlinks("B"))
}

func TestPut_EditMovesEdges(t *testing.T) {
	g := New()
	g.Rebuild(notes("A", "[[B]]", "B", "", "C", ""))
	require.Equal(t, []string{"A"}, g.Backlinks("B"))

	g.Put("A", "now [[C]] only")
	assert.Empty(t, g.Backlinks("B"))
	assert.Equal(t, []string{"A"}, g.Backlinks("C"))
	assert.Equal(t, []string{"C"}, g.Links("A"))
}

func TestPut_MatchesRebuild(t *testing.T) {
	g := New()
	g.Put("A", "[[B]] [[C]]")
	g.Put("B", "[[A]]")
	g.Put("C", "[[A]] [[B]]")
	g.Put("A", "[[C]] [[D]]")
	g.Put("D", "")

	fresh := New()
	fresh.Rebuild(notes("A", "[[C]] [[D]]", "B", "[[A]]", "C", "[[A]] [[B]]", "D", ""))
	assert.Equal(t, fresh.Snapshot(), g.Snapshot())
}

func TestRemove_LeavesRawLinkUnresolved(t *testing.T) {
	g := New()
	g.Rebuild(notes("A", "see [[B]]", "B", "back to [[A]]"))

	g.Remove("B")

	assert.False(t, g.Has("B"))
	assert.Equal(t, []string{"B"}, g.Links("A"), "raw link survives deletion")
	assert.Empty(t, g.Backlinks("A"), "deleted note no longer links anywhere")
	assert.Empty(t, g.Backlinks("B"))
	for _, e := range g.Edges() {
		assert.NotEqual(t, "B", e.Source)
		assert.NotEqual(t, "B", e.Target)
	}
	for _, sources := range g.Snapshot().Backward {
		assert.NotContains(t, sources, "b")
	}
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	g := New()
	g.Put("A", "[[B]]")
	before := g.Snapshot()
	g.Remove("nope")
	assert.Equal(t, before, g.Snapshot())
}

func TestSelfLink(t *testing.T) {
	g := New()
	g.Put("Loop", "[[loop]]")
	assert.Equal(t, []string{"Loop"}, g.Backlinks("Loop"))

	g.Remove("Loop")
	assert.Empty(t, g.Snapshot().Backward)
	assert.Empty(t, g.Snapshot().Forward)
}

func TestBacklinksAlphabetical(t *testing.T) {
	g := New()
	g.Put("Hub", "")
	g.Put("zeta", "[[Hub]]")
	g.Put("Alpha", "[[Hub]]")
	g.Put("beta", "[[hub]]")

	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, g.Backlinks("Hub"))
}

func TestRenameAsRemovePut(t *testing.T) {
	g := New()
	g.Rebuild(notes("A", "x", "Other", "ref [[A]]"))

	g.Remove("A")
	g.Put("A2", "x")

	assert.Empty(t, g.Backlinks("A2"), "references are not rewritten")
	resolved, unresolved := g.Split("Other")
	assert.Empty(t, resolved)
	assert.Equal(t, []string{"A"}, unresolved)
}

func TestEdgesAndTitles(t *testing.T) {
	g := New()
	g.Rebuild(notes("b", "[[a]] [[a]] [[zz]]", "a", "[[B]]"))

	assert.Equal(t, []string{"a", "b"}, g.Titles())
	assert.Equal(t, []models.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "a"},
	}, g.Edges())
}
