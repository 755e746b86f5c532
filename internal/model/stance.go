package model

// StanceLabel is the run-file label derived from an item's average stance.
type StanceLabel string

const (
	StanceFirst   StanceLabel = "FIRST"   // pro first object
	StanceSecond  StanceLabel = "SECOND"  // pro second object
	StanceNeutral StanceLabel = "NEUTRAL" // balanced
	StanceNo      StanceLabel = "NO"      // no stance
)

// StanceLabel returns the label for the item's average stance relative to the query.
// Queries without comparative objects always yield StanceNo. The second result is false when
// the item carries no stance annotation.
func (r RankedItem) StanceLabel(q Query) (StanceLabel, bool) {
	if !r.HasStances() {
		return "", false
	}
	if !q.Comparative() {
		return StanceNo, true
	}
	stance, ok := r.AverageStance()
	switch {
	case !ok:
		return StanceNo, true
	case stance > 0:
		return StanceFirst, true
	case stance < 0:
		return StanceSecond, true
	default:
		return StanceNeutral, true
	}
}
