package discovery

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// fakeSession serves canned result pages.
type fakeSession struct {
	pages [][]models.SearchResult
	idx   int
}

func (f *fakeSession) Search(ctx context.Context, keywords string) ([]models.SearchResult, error) {
	f.idx = 0
	return f.current(), nil
}

func (f *fakeSession) NextPage(ctx context.Context) ([]models.SearchResult, error) {
	f.idx++
	return f.current(), nil
}

func (f *fakeSession) current() []models.SearchResult {
	if f.idx >= len(f.pages) {
		return nil
	}
	return f.pages[f.idx]
}

func (f *fakeSession) IsAuthenticated(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeSession) Visit(ctx context.Context, c models.Candidate) (*models.ProfileSnapshot, error) {
	return &models.ProfileSnapshot{ExternalID: c.ExternalID}, nil
}
func (f *fakeSession) Connect(ctx context.Context, message string) error { return nil }
func (f *fakeSession) Follow(ctx context.Context) error                  { return nil }
func (f *fakeSession) CurrentUserProfile(ctx context.Context) (*models.TargetProfile, error) {
	return nil, nil
}
func (f *fakeSession) Close() {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result(id, name, headline string) models.SearchResult {
	return models.SearchResult{Locator: "https://example.com/in/" + id, ExternalID: id, Name: name, Headline: headline}
}

func drain(t *testing.T, s *Stream) []models.Candidate {
	t.Helper()
	var out []models.Candidate
	for {
		c, ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestRelevanceOrdering(t *testing.T) {
	fs := &fakeSession{pages: [][]models.SearchResult{{
		result("a", "Jo Smith", "engineering manager"),
		result("b", "Pat Jones", "Product Manager at Acme"),
		result("c", "Sam Lee", "product lead"),
	}}}
	s := New(fs, "product manager", testLogger())
	got := drain(t, s)

	require.Len(t, got, 3)
	// b matches both terms and the verbatim phrase; a and c one term each,
	// source order preserved for the tie.
	assert.Equal(t, "b", got[0].ExternalID)
	assert.Equal(t, 40, got[0].Weight)
	assert.Equal(t, "a", got[1].ExternalID)
	assert.Equal(t, 10, got[1].Weight)
	assert.Equal(t, "c", got[2].ExternalID)
}

func TestZeroMatchDiscardMultiTerm(t *testing.T) {
	fs := &fakeSession{pages: [][]models.SearchResult{{
		result("x", "Alex Kim", "Product Manager"),
		result("y", "Dana Fox", "veterinarian"),
		result("z", "Ed Wu", "chef"),
	}}}
	s := New(fs, "product manager", testLogger())
	got := drain(t, s)

	require.Len(t, got, 1, "zero-relevance candidates are dropped for multi-term queries")
	assert.Equal(t, "x", got[0].ExternalID)
}

func TestSingleTermKeepsAll(t *testing.T) {
	fs := &fakeSession{pages: [][]models.SearchResult{{
		result("x", "Alex Kim", "golang engineer"),
		result("y", "Dana Fox", "veterinarian"),
	}}}
	s := New(fs, "golang", testLogger())
	got := drain(t, s)

	require.Len(t, got, 2, "single-term queries keep zero-match results")
	assert.Equal(t, "x", got[0].ExternalID)
}

func TestPaginationAndDedup(t *testing.T) {
	fs := &fakeSession{pages: [][]models.SearchResult{
		{result("a", "A", "golang"), result("b", "B", "golang")},
		{result("b", "B", "golang"), result("c", "C", "golang")},
		{},
	}}
	s := New(fs, "golang", testLogger())
	got := drain(t, s)

	ids := []string{}
	for _, c := range got {
		ids = append(ids, c.ExternalID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids, "repeats across pages are deduplicated")

	// After exhaustion, Next keeps reporting done.
	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyFirstPageExhausts(t *testing.T) {
	fs := &fakeSession{pages: [][]models.SearchResult{}}
	s := New(fs, "golang", testLogger())
	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
