package forecast

import (
	"sort"

	"go-inventory-insights/internal/model"
)

// Signals are the metric values the recommendation table looks at.
type Signals struct {
	RiskScore         int
	DaysUntilStockout int
	Trend             model.Trend
	Velocity          float64
	IsPerishable      bool
}

func SignalsFrom(m model.Metrics, isPerishable bool) Signals {
	return Signals{
		RiskScore:         m.RiskScore,
		DaysUntilStockout: m.DaysUntilStockout,
		Trend:             m.Trend,
		Velocity:          m.Velocity,
		IsPerishable:      isPerishable,
	}
}

// Rule is one row of the decision table.
type Rule struct {
	Name    string
	Match   func(Signals) bool
	Outcome func(Signals) model.Recommendation
}

// DefaultRules is evaluated top-down. Rows are listed in non-increasing
// priority so the first match is also the primary recommendation.
var DefaultRules = []Rule{
	{
		Name:  "urgent_markdown",
		Match: func(s Signals) bool { return s.RiskScore >= 85 && s.DaysUntilStockout <= 7 },
		Outcome: func(s Signals) model.Recommendation {
			return model.Recommendation{
				Action:          model.ActionUrgentMarkdown,
				Priority:        model.PriorityCritical,
				Message:         pick(s.IsPerishable, "Mark down 40% now to clear stock before it expires", "Mark down 40% now to move remaining stock"),
				Icon:            "alert-octagon",
				DiscountPercent: 40,
			}
		},
	},
	{
		Name:  "moderate_markdown",
		Match: func(s Signals) bool { return s.RiskScore >= 65 && s.DaysUntilStockout <= 14 },
		Outcome: func(s Signals) model.Recommendation {
			return model.Recommendation{
				Action:          model.ActionModerateMarkdown,
				Priority:        model.PriorityHigh,
				Message:         pick(s.IsPerishable, "Apply a 20% markdown to sell through before expiry", "Apply a 20% markdown to speed up sell-through"),
				Icon:            "tag",
				DiscountPercent: 20,
			}
		},
	},
	{
		Name:  "restock_soon",
		Match: func(s Signals) bool { return s.DaysUntilStockout <= 7 && s.Velocity > 0 },
		Outcome: func(s Signals) model.Recommendation {
			return model.Recommendation{
				Action:   model.ActionRestockSoon,
				Priority: model.PriorityHigh,
				Message:  "Stock runs out within a week at the current sales rate; reorder now",
				Icon:     "truck",
			}
		},
	},
	{
		Name:  "reduce_order",
		Match: func(s Signals) bool { return s.Trend == model.TrendDecreasing && s.RiskScore >= 50 },
		Outcome: func(s Signals) model.Recommendation {
			return model.Recommendation{
				Action:   model.ActionReduceOrder,
				Priority: model.PriorityMedium,
				Message:  "Demand is falling; reduce the next order quantity",
				Icon:     "trending-down",
			}
		},
	},
	{
		Name: "overstocked",
		Match: func(s Signals) bool {
			return s.DaysUntilStockout >= 90 && (s.Trend == model.TrendStable || s.Trend == model.TrendDecreasing)
		},
		Outcome: func(s Signals) model.Recommendation {
			return model.Recommendation{
				Action:   model.ActionOverstocked,
				Priority: model.PriorityLow,
				Message:  pick(s.IsPerishable, "More than 90 days of stock on hand; watch expiry dates", "More than 90 days of stock on hand; pause reordering"),
				Icon:     "package",
			}
		},
	},
}

func monitorClosely(Signals) model.Recommendation {
	return model.Recommendation{
		Action:   model.ActionMonitorClosely,
		Priority: model.PriorityLow,
		Message:  "No action needed; keep monitoring",
		Icon:     "eye",
	}
}

// Recommend evaluates DefaultRules.
func Recommend(s Signals) []model.Recommendation {
	return RecommendWith(DefaultRules, s)
}

// RecommendWith returns every matching outcome ordered by priority, most
// urgent first. Ties keep table order. monitor_closely is returned only when
// nothing else applies.
func RecommendWith(rules []Rule, s Signals) []model.Recommendation {
	var out []model.Recommendation
	for _, r := range rules {
		if r.Match(s) {
			out = append(out, r.Outcome(s))
		}
	}
	if len(out) == 0 {
		return []model.Recommendation{monitorClosely(s)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
