package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/orderdesk/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

// Acceptance thresholds used when none are configured
const (
	DefaultSimilarityThreshold = 0.8
	DefaultOverlapThreshold    = 0.5
)

// Similarity scores two product names in [0,1] after NFC composition and case
// folding: twice the longest common subsequence over the combined rune length.
// Two empty names are identical and score 1.
func Similarity(name1, name2 string) float64 {
	a := strings.ToLower(norm.NFC.String(name1))
	b := strings.ToLower(norm.NFC.String(name2))

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1.0
	}

	return 2 * float64(edlib.LCS(a, b)) / float64(total)
}

// SelectBestMatch picks the candidate that corresponds to target.
//
// The highest similarity score wins if it reaches similarityThreshold (ties go to
// the earliest candidate). Otherwise the first candidate, in input order, sharing
// at least overlapThreshold of the target's words is accepted with score 1.
// The fallback stops at the first passing candidate and does not look for a
// better overlap further down the list.
func SelectBestMatch(
	target string,
	candidates []domain.MatchCandidate,
	similarityThreshold float64,
	overlapThreshold float64,
) domain.MatchResult {
	result, _ := selectBestMatch(context.Background(), target, candidates, similarityThreshold, overlapThreshold)
	return result
}

// selectBestMatch is SelectBestMatch checking ctx before each candidate
func selectBestMatch(
	ctx context.Context,
	target string,
	candidates []domain.MatchCandidate,
	similarityThreshold float64,
	overlapThreshold float64,
) (domain.MatchResult, error) {
	if len(candidates) == 0 {
		return domain.NoMatchResult(), nil
	}

	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return domain.NoMatchResult(), err
		}
		score := Similarity(target, c.Name)
		if bestIdx < 0 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestScore >= similarityThreshold {
		return domain.MatchResult{
			Method:    domain.SimilarityMatch,
			Candidate: candidates[bestIdx],
			Index:     bestIdx,
			Score:     bestScore,
		}, nil
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return domain.NoMatchResult(), err
		}
		if TokenOverlap(target, c.Name, overlapThreshold) {
			return domain.MatchResult{
				Method:    domain.TokenOverlapMatch,
				Candidate: c,
				Index:     i,
				Score:     1.0,
			}, nil
		}
	}

	return domain.NoMatchResult(), nil
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	SimilarityThreshold float64
	OverlapThreshold    float64
	EnableDebugLogging  bool
}

// MatchingService locates a sheet product among the line items of an order
type MatchingService struct {
	similarityThreshold float64
	overlapThreshold    float64
	enableDebugLogging  bool
}

// NewMatchingService creates a new matching service with the given configuration.
// Thresholds outside (0,1] fall back to the defaults.
func NewMatchingService(config MatchConfig) *MatchingService {
	return &MatchingService{
		similarityThreshold: thresholdOrDefault(config.SimilarityThreshold, DefaultSimilarityThreshold),
		overlapThreshold:    thresholdOrDefault(config.OverlapThreshold, DefaultOverlapThreshold),
		enableDebugLogging:  config.EnableDebugLogging,
	}
}

func thresholdOrDefault(v, def float64) float64 {
	if v <= 0 || v > 1 {
		return def
	}
	return v
}

// Thresholds returns the similarity and overlap thresholds in use
func (s *MatchingService) Thresholds() (similarity, overlap float64) {
	return s.similarityThreshold, s.overlapThreshold
}

// FindBestMatch runs SelectBestMatch with the configured thresholds.
// A NoMatch result is returned together with domain.ErrNoMatch.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	target string,
	candidates []domain.MatchCandidate,
) (domain.MatchResult, error) {
	return s.FindBestMatchWith(ctx, target, candidates, s.similarityThreshold, s.overlapThreshold)
}

// FindBestMatchWith is FindBestMatch with per-call thresholds
func (s *MatchingService) FindBestMatchWith(
	ctx context.Context,
	target string,
	candidates []domain.MatchCandidate,
	similarityThreshold float64,
	overlapThreshold float64,
) (domain.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.NoMatchResult(), err
	}

	if s.enableDebugLogging {
		s.logCandidates(ctx, target, candidates)
	}

	result, err := selectBestMatch(ctx, target, candidates, similarityThreshold, overlapThreshold)
	if err != nil {
		return result, err
	}

	if !result.Matched() {
		log.Info().
			Str("component", "match").
			Str("target", target).
			Int("candidates", len(candidates)).
			Msg("no candidate matched")
		return result, domain.ErrNoMatch
	}

	log.Debug().
		Str("component", "match").
		Str("target", target).
		Str("candidate", result.Candidate.Name).
		Stringer("method", result.Method).
		Float64("score", result.Score).
		Msg("candidate accepted")

	return result, nil
}

func (s *MatchingService) logCandidates(ctx context.Context, target string, candidates []domain.MatchCandidate) {
	for i, c := range candidates {
		if ctx.Err() != nil {
			return
		}
		overlap, _ := OverlapFraction(target, c.Name)
		log.Debug().
			Str("component", "match").
			Str("target", target).
			Int("index", i).
			Str("candidate", c.Name).
			Float64("similarity", Similarity(target, c.Name)).
			Float64("overlap", overlap).
			Msg("candidate evaluation")
	}
}
