package usecase

import (
	"context"
	"testing"

	"github.com/orderdesk/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(names ...string) []domain.MatchCandidate {
	out := make([]domain.MatchCandidate, len(names))
	for i, n := range names {
		out[i] = domain.MatchCandidate{Name: n, Ref: i}
	}
	return out
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Leche Entera", "Leche Entera", 1.0},
		{"case folded", "leche entera", "LECHE ENTERA", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "Leche", "", 0.0},
		{"nothing shared", "abc", "xyz", 0.0},
		{"punctuation counts", "Coca Cola 1.5L", "Coca-Cola 1.5 L", 26.0 / 29.0},
		{"suffix", "leche entera", "Leche Entera 1L", 24.0 / 27.0},
		{"accented letters are runes", "jamón", "jamon", 0.8},
		{"decomposed accent is composed first", "Jamo\u0301n", "jamón", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSelectBestMatch_Scenarios(t *testing.T) {
	t.Run("punctuation variant matches by similarity", func(t *testing.T) {
		result := SelectBestMatch("Coca Cola 1.5L", candidates("Coca-Cola 1.5 L", "Sprite 1.5L"), 0.8, 0.5)

		assert.Equal(t, domain.SimilarityMatch, result.Method)
		assert.Equal(t, 0, result.Index)
		assert.Equal(t, "Coca-Cola 1.5 L", result.Candidate.Name)
		assert.InDelta(t, 26.0/29.0, result.Score, 1e-9)
	})

	t.Run("closest flavour wins by similarity", func(t *testing.T) {
		result := SelectBestMatch(
			"yogur bebible frutilla 180g",
			candidates("Yogur Bebible Durazno 180g", "Yogur Bebible Frutilla x180g"),
			0.8, 0.5,
		)

		assert.Equal(t, domain.SimilarityMatch, result.Method)
		assert.Equal(t, 1, result.Index)
		assert.Greater(t, result.Score, 0.98)
	})

	t.Run("same flavours fall back to the first overlapping candidate", func(t *testing.T) {
		result := SelectBestMatch(
			"yogur bebible frutilla 180g",
			candidates("Yogur Bebible Durazno 180g", "Yogur Bebible Frutilla x180g"),
			0.99, 0.5,
		)

		assert.Equal(t, domain.TokenOverlapMatch, result.Method)
		assert.Equal(t, 0, result.Index)
		assert.Equal(t, 1.0, result.Score)
	})

	t.Run("empty target never matches by overlap", func(t *testing.T) {
		result := SelectBestMatch("", candidates("Leche", "Pan"), 0.8, 0.5)

		assert.Equal(t, domain.NoMatch, result.Method)
		assert.Equal(t, -1, result.Index)
		assert.False(t, result.Matched())
	})

	t.Run("no candidates", func(t *testing.T) {
		result := SelectBestMatch("Leche", nil, 0.8, 0.5)

		assert.Equal(t, domain.NoMatchResult(), result)
	})

	t.Run("reordered words match by overlap", func(t *testing.T) {
		result := SelectBestMatch(
			"Mayonesa Hellmanns 500g",
			candidates("Ketchup Hellmann's 500 g", "Hellmann's Mayonesa Clásica 500 g"),
			0.8, 0.5,
		)

		assert.Equal(t, domain.TokenOverlapMatch, result.Method)
		assert.Equal(t, 1, result.Index)
	})

	t.Run("nothing close enough", func(t *testing.T) {
		result := SelectBestMatch("Papas Lays", candidates("Doritos", "Coca Cola 2L"), 0.8, 0.5)

		assert.False(t, result.Matched())
	})
}

func TestSelectBestMatch_OverlapShortCircuit(t *testing.T) {
	// "Yogur Leche 1L" shares half the target words, "Leche Entera 1L" all of them,
	// but the first passing candidate is taken.
	result := SelectBestMatch("leche entera", candidates("Yogur Leche 1L", "Leche Entera 1L"), 0.95, 0.5)

	assert.Equal(t, domain.TokenOverlapMatch, result.Method)
	assert.Equal(t, 0, result.Index)
	assert.Equal(t, "Yogur Leche 1L", result.Candidate.Name)
}

func TestSelectBestMatch_SimilarityTieGoesToFirst(t *testing.T) {
	result := SelectBestMatch("Leche Entera", candidates("Pan", "leche entera", "LECHE ENTERA"), 0.8, 0.5)

	assert.Equal(t, domain.SimilarityMatch, result.Method)
	assert.Equal(t, 1, result.Index)
	assert.Equal(t, 1, result.Candidate.Ref)
}

func TestSelectBestMatch_ThresholdBoundaryIsInclusive(t *testing.T) {
	score := Similarity("leche entera", "Leche Entera 1L")

	result := SelectBestMatch("leche entera", candidates("Leche Entera 1L"), score, 1.0)

	assert.Equal(t, domain.SimilarityMatch, result.Method)
}

func TestSelectBestMatch_KeepsRef(t *testing.T) {
	items := []domain.MatchCandidate{
		{Name: "Pan Lactal", Ref: "row-7"},
		{Name: "Leche Entera 1L", Ref: map[string]any{"selector": "#line-2"}},
	}

	result := SelectBestMatch("leche entera", items, 0.8, 0.5)

	require.True(t, result.Matched())
	assert.Equal(t, map[string]any{"selector": "#line-2"}, result.Candidate.Ref)
}

func TestNewMatchingService(t *testing.T) {
	tests := []struct {
		name        string
		config      MatchConfig
		wantSim     float64
		wantOverlap float64
	}{
		{"provided thresholds", MatchConfig{SimilarityThreshold: 0.9, OverlapThreshold: 0.6}, 0.9, 0.6},
		{"zero falls back", MatchConfig{}, DefaultSimilarityThreshold, DefaultOverlapThreshold},
		{"negative falls back", MatchConfig{SimilarityThreshold: -1, OverlapThreshold: -0.5}, DefaultSimilarityThreshold, DefaultOverlapThreshold},
		{"above one falls back", MatchConfig{SimilarityThreshold: 1.5, OverlapThreshold: 2}, DefaultSimilarityThreshold, DefaultOverlapThreshold},
		{"one is allowed", MatchConfig{SimilarityThreshold: 1, OverlapThreshold: 1}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, overlap := NewMatchingService(tt.config).Thresholds()

			assert.Equal(t, tt.wantSim, sim)
			assert.Equal(t, tt.wantOverlap, overlap)
		})
	}
}

func TestFindBestMatch(t *testing.T) {
	svc := NewMatchingService(MatchConfig{EnableDebugLogging: true})
	ctx := context.Background()

	t.Run("returns the accepted candidate", func(t *testing.T) {
		result, err := svc.FindBestMatch(ctx, "Coca Cola 1.5L", candidates("Sprite 1.5L", "Coca-Cola 1.5 L"))

		require.NoError(t, err)
		assert.Equal(t, 1, result.Index)
		assert.Equal(t, domain.SimilarityMatch, result.Method)
	})

	t.Run("returns ErrNoMatch with a NoMatch result", func(t *testing.T) {
		result, err := svc.FindBestMatch(ctx, "Papas Lays", candidates("Doritos"))

		assert.ErrorIs(t, err, domain.ErrNoMatch)
		assert.Equal(t, domain.NoMatchResult(), result)
	})

	t.Run("returns ErrNoMatch for an empty candidate list", func(t *testing.T) {
		_, err := svc.FindBestMatch(ctx, "Leche", nil)

		assert.ErrorIs(t, err, domain.ErrNoMatch)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.FindBestMatch(cancelled, "Leche", candidates("Leche"))

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("stops between candidates once cancelled", func(t *testing.T) {
		quiet := NewMatchingService(MatchConfig{})
		cancelling := &cancelAfterCtx{Context: ctx, after: 2}

		result, err := quiet.FindBestMatch(cancelling, "Queso", candidates("Leche", "Pan", "Queso"))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, result.Matched())
		assert.Equal(t, 3, cancelling.calls, "entry check plus one check per scored candidate")
	})

	t.Run("per-call thresholds override the configured ones", func(t *testing.T) {
		result, err := svc.FindBestMatchWith(ctx, "leche entera", candidates("Yogur Leche 1L", "Leche Entera 1L"), 0.95, 0.5)

		require.NoError(t, err)
		assert.Equal(t, domain.TokenOverlapMatch, result.Method)
		assert.Equal(t, 0, result.Index)
	})
}

// cancelAfterCtx reports cancellation once Err has been called more than after times
type cancelAfterCtx struct {
	context.Context
	after int
	calls int
}

func (c *cancelAfterCtx) Err() error {
	c.calls++
	if c.calls > c.after {
		return context.Canceled
	}
	return nil
}
