package litter

// Cat is one of the two known cats. Identity is never stored; it is
// recomputed from a weight every time via Classify.
type Cat string

const (
	Margarita Cat = "Margarita"
	Paloma    Cat = "Paloma"
)

const (
	// PalomaThreshold splits the cats: anything at or above is Paloma.
	PalomaThreshold = 13.0

	// MinNotifyWeight is the reading a weight must strictly exceed to be
	// announced. Lighter readings are still consumed by the watermark.
	MinNotifyWeight = 10.0
)

// Cats returns the fixed report order.
func Cats() []Cat { return []Cat{Margarita, Paloma} }

func (c Cat) String() string { return string(c) }

// Classify maps a weight in pounds to a cat.
//
// The cats are told apart by weight alone, so readings near the threshold
// will be misattributed when their weights overlap.
func Classify(weightLbs float64) Cat {
	if weightLbs < PalomaThreshold {
		return Margarita
	}
	return Paloma
}

// ShouldNotify reports whether a reading is heavy enough to announce.
func ShouldNotify(weightLbs float64) bool {
	return weightLbs > MinNotifyWeight
}
