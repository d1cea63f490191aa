package model

// Decision is the resolver's three-way verdict for one entity.
type Decision string

const (
	DecisionNew     Decision = "new"
	DecisionMatch   Decision = "match"
	DecisionAbstain Decision = "abstain"
)

// Resolution records the resolver's verdict for one document-global entity.
// TargetID is the durable identifier to use going forward; it is empty for
// abstain, in which case PotentialMatch may carry the nearest candidate's
// identifier for manual review.
type Resolution struct {
	Entity         *Entity  `json:"entity"`
	Decision       Decision `json:"decision"`
	TargetID       string   `json:"target_id,omitempty"`
	Score          float64  `json:"score"`
	PotentialMatch string   `json:"potential_match,omitempty"`
}
