package model

// MatchCandidate is a ranked buyer for a seller's waste description. It is a
// transient projection recomputed on demand, never persisted as authoritative
// state.
type MatchCandidate struct {
	BuyerID          string
	CategoryDetected Category
	Reason           string
	MatchScore       float64
}
