package router

// Tier is a provider's capability class, totally ordered NoLLM < Tiny <
// Small < Medium < Large, per spec.md §3/§9.
type Tier int

const (
	NoLLM Tier = iota
	Tiny
	Small
	Medium
	Large
)

func (t Tier) String() string {
	switch t {
	case NoLLM:
		return "NoLLM"
	case Tiny:
		return "Tiny"
	case Small:
		return "Small"
	case Medium:
		return "Medium"
	case Large:
		return "Large"
	default:
		return "Unknown"
	}
}

// AllTiersFrom returns every tier from start through Large, inclusive,
// in ascending order — the walk order routing uses on fallback.
func AllTiersFrom(start Tier) []Tier {
	tiers := make([]Tier, 0, int(Large-start)+1)
	for t := start; t <= Large; t++ {
		tiers = append(tiers, t)
	}
	return tiers
}

// AssessTier implements the heuristic starting-tier table from spec.md §9.
func AssessTier(t Task) Tier {
	size := t.PayloadSize()

	switch t.Variant {
	case VariantClassification:
		return Tiny
	case VariantQuestion:
		if size <= 50 {
			return Tiny
		}
		return Small
	case VariantCodeReview:
		switch {
		case size <= 500:
			return Tiny
		case size <= 2000:
			return Small
		default:
			return Medium
		}
	case VariantCodeGeneration:
		switch {
		case size <= 500:
			return Small
		case size <= 2000:
			return Medium
		default:
			return Large
		}
	default:
		return Small
	}
}
