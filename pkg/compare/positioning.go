// Package compare relates result sets to each other.
package compare

import "fmt"

// PositionKind classifies the logical relationship of two result sets.
type PositionKind int

const (
	PositionImplication PositionKind = iota
	PositionComplements
	PositionSame
	PositionQInR
	PositionRInQ
	PositionDisjoint
)

func (k PositionKind) String() string {
	switch k {
	case PositionComplements:
		return "complements"
	case PositionSame:
		return "same"
	case PositionQInR:
		return "q_in_r"
	case PositionRInQ:
		return "r_in_q"
	case PositionDisjoint:
		return "disjoint"
	default:
		return "implication"
	}
}

// Positioning is the outcome of InferPositioning.
type Positioning struct {
	Kind PositionKind
	Text string

	// QImpliesR is P(r | q) in percent, RImpliesQ is P(q | r) in percent.
	// Both are only set for PositionImplication.
	QImpliesR float64
	RImpliesQ float64
}

// InferPositioning classifies two result sets from their intersection
// matrix:
//
//	m00 = |q and r|    m01 = |q and !r|
//	m10 = |!q and r|   m11 = |!q and !r|
//
// Rules are tried in order and the first match wins; several share zero
// patterns, so the order is part of the contract.
func InferPositioning(q, r string, m00, m01, m10, m11 int) Positioning {
	switch {
	case m00 == 0 && m11 == 0 && m01 > 0 && m10 > 0:
		return Positioning{Kind: PositionComplements,
			Text: fmt.Sprintf("the query %s is the complement of %s and vice versa.", q, r)}
	case m01 == 0 && m10 == 0 && m00 > 0 && m11 > 0:
		return Positioning{Kind: PositionSame,
			Text: fmt.Sprintf("the query %s and %s identify the same result set.", q, r)}
	case m01 == 0 && m10 > 0 && m00 > 0 && m11 > 0:
		return Positioning{Kind: PositionQInR,
			Text: fmt.Sprintf("the query %s is included in query %s.", q, r)}
	case m10 == 0 && m01 > 0 && m00 > 0 && m11 > 0:
		return Positioning{Kind: PositionRInQ,
			Text: fmt.Sprintf("the query %s is included in query %s.", r, q)}
	case m00 == 0 && m01 > 0 && m10 > 0 && m11 > 0:
		return Positioning{Kind: PositionDisjoint,
			Text: fmt.Sprintf("the query %s and %s identify distinct result sets.", q, r)}
	}

	qr := percent(m00, m00+m01)
	rq := percent(m00, m00+m10)
	return Positioning{
		Kind:      PositionImplication,
		Text:      fmt.Sprintf("%s --> %s with %.3f %% %s --> %s with %.3f %%", q, r, qr, r, q, rq),
		QImpliesR: qr,
		RImpliesQ: rq,
	}
}

// percent returns 0 for an empty denominator.
func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
