package domain

import "fmt"

// MatchCandidate is a product line as rendered on an order page.
// Ref is owned by the caller (usually an element handle) and is returned untouched.
type MatchCandidate struct {
	Name string `json:"name"`
	Ref  any    `json:"ref,omitempty"`
}

// MatchMethod tells which strategy accepted a candidate
type MatchMethod int

const (
	// NoMatch means neither strategy accepted a candidate
	NoMatch MatchMethod = iota
	// SimilarityMatch means the top character-similarity score cleared the threshold
	SimilarityMatch
	// TokenOverlapMatch means the word-overlap fallback accepted the candidate
	TokenOverlapMatch
)

func (m MatchMethod) String() string {
	switch m {
	case SimilarityMatch:
		return "similarity"
	case TokenOverlapMatch:
		return "token_overlap"
	default:
		return "none"
	}
}

// MarshalText makes the method readable in JSON payloads
func (m MatchMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MatchResult is the outcome of selecting a candidate for a target product name.
// The zero value is a NoMatch.
type MatchResult struct {
	Method    MatchMethod    `json:"method"`
	Candidate MatchCandidate `json:"candidate"`
	Index     int            `json:"index"`
	Score     float64        `json:"score"`
}

// Matched reports whether a candidate was accepted
func (r MatchResult) Matched() bool {
	return r.Method != NoMatch
}

// NoMatchResult returns the canonical NoMatch value
func NoMatchResult() MatchResult {
	return MatchResult{Method: NoMatch, Index: -1}
}

// UnmarshalText accepts the names produced by MarshalText
func (m *MatchMethod) UnmarshalText(text []byte) error {
	switch string(text) {
	case "similarity":
		*m = SimilarityMatch
	case "token_overlap":
		*m = TokenOverlapMatch
	case "none", "":
		*m = NoMatch
	default:
		return fmt.Errorf("%w: unknown match method %q", ErrInvalidRequest, text)
	}
	return nil
}
