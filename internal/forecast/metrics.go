// Package forecast turns a product's sale history into demand metrics, a
// risk score and a prioritized list of recommended actions. Everything here is
// a pure function of its inputs.
package forecast

import (
	"fmt"
	"math"
	"time"

	"go-inventory-insights/internal/model"
)

// NoStockoutSignal is reported as daysUntilStockout when nothing is selling.
const NoStockoutSignal = 999

const day = 24 * time.Hour

// Config holds the tunables of the metric pipeline.
type Config struct {
	WindowDays        int
	MinDataPoints     int
	MovingAverageDays int
	TrendThreshold    float64
	StockoutWeight    float64
	ExpiryWeight      float64
	RiskHorizonDays   float64
}

func DefaultConfig() Config {
	return Config{
		WindowDays:        30,
		MinDataPoints:     5,
		MovingAverageDays: 7,
		TrendThreshold:    0.10,
		StockoutWeight:    0.6,
		ExpiryWeight:      0.4,
		RiskHorizonDays:   60,
	}
}

// Input is everything a prediction depends on. CategoryVelocity is the average
// per-product daily velocity of the product's category over the same window and
// is only used when the product itself has too few sales.
type Input struct {
	Product          model.Product
	Sales            []model.Sale
	CategoryVelocity float64
	AsOf             time.Time
}

type Result struct {
	Forecast   model.Forecast
	Metrics    model.Metrics
	DataPoints int
	Warning    *string
	Metadata   model.PredictionMetadata
}

// Compute derives all metrics for one product. Identical inputs always give
// identical results.
func Compute(in Input, cfg Config) Result {
	window := cfg.WindowDays
	if window <= 0 {
		window = DefaultConfig().WindowDays
	}

	daily := make([]int, window) // index 0 is the most recent 24h
	dataPoints := 0
	total := 0
	for _, s := range in.Sales {
		if s.SaleDate.After(in.AsOf) {
			continue
		}
		idx := int(in.AsOf.Sub(s.SaleDate) / day)
		if idx >= window {
			continue
		}
		daily[idx] += s.QuantitySold
		total += s.QuantitySold
		dataPoints++
	}

	res := Result{DataPoints: dataPoints}
	res.Metrics.SalesLast30Days = total

	velocity := float64(total) / float64(window)
	if dataPoints < cfg.MinDataPoints {
		velocity = in.CategoryVelocity
		res.Metadata.UsedCategoryFallback = true
		res.Metadata.OriginalDataPoints = dataPoints
		res.Warning = fallbackWarning(dataPoints, window, in.Product.Category)
	}

	res.Metrics.Velocity = round2(velocity)
	res.Metrics.MovingAverage = round2(movingAverage(daily, cfg.MovingAverageDays))
	res.Metrics.Trend = trend(daily, cfg.TrendThreshold)
	res.Metrics.DaysUntilStockout = daysUntilStockout(in.Product.CurrentStock(), velocity)
	res.Metrics.RiskScore = riskScore(in, res.Metrics.DaysUntilStockout, cfg)

	res.Forecast = model.Forecast{
		Next7Days:  int(math.Round(velocity * 7)),
		Next14Days: int(math.Round(velocity * 14)),
		Next30Days: int(math.Round(velocity * 30)),
		Confidence: confidence(dataPoints),
	}
	return res
}

func fallbackWarning(dataPoints, window int, category string) *string {
	var msg string
	if category == "" {
		msg = fmt.Sprintf("only %d sales in the last %d days and no category to estimate from; forecast is unreliable", dataPoints, window)
	} else {
		msg = fmt.Sprintf("only %d sales in the last %d days; velocity estimated from category %q", dataPoints, window, category)
	}
	return &msg
}

func movingAverage(daily []int, days int) float64 {
	if days <= 0 {
		return 0
	}
	if days > len(daily) {
		days = len(daily)
	}
	sum := 0
	for i := 0; i < days; i++ {
		sum += daily[i]
	}
	return float64(sum) / float64(days)
}

// trend compares the mean daily quantity of the recent half of the window
// with the earlier half. A change of exactly the threshold is stable.
func trend(daily []int, threshold float64) model.Trend {
	half := len(daily) / 2
	if half == 0 {
		return model.TrendStable
	}
	recent, earlier := 0, 0
	for i, q := range daily {
		if i < half {
			recent += q
		} else {
			earlier += q
		}
	}
	recentAvg := float64(recent) / float64(half)
	earlierAvg := float64(earlier) / float64(len(daily)-half)

	if earlierAvg == 0 {
		if recentAvg > 0 {
			return model.TrendIncreasing
		}
		return model.TrendStable
	}
	change := (recentAvg - earlierAvg) / earlierAvg
	switch {
	case change > threshold:
		return model.TrendIncreasing
	case change < -threshold:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

func daysUntilStockout(stock int, velocity float64) int {
	if velocity <= 0 {
		return NoStockoutSignal
	}
	if stock <= 0 {
		return 0
	}
	days := math.Floor(float64(stock) / velocity)
	if days > NoStockoutSignal {
		return NoStockoutSignal
	}
	return int(days)
}

// urgency maps a number of days onto 0..100: 0 days is maximal, the horizon
// or beyond contributes nothing.
func urgency(days, horizon float64) float64 {
	if horizon <= 0 {
		return 0
	}
	return clamp((horizon-days)/horizon, 0, 1) * 100
}

func riskScore(in Input, stockoutDays int, cfg Config) int {
	stockout := urgency(float64(stockoutDays), cfg.RiskHorizonDays)

	score := stockout
	if expiry, ok := in.Product.EarliestExpiry(); ok && in.Product.IsPerishable {
		weights := cfg.StockoutWeight + cfg.ExpiryWeight
		if weights > 0 {
			daysToExpiry := expiry.Sub(in.AsOf).Hours() / 24
			expiryTerm := urgency(daysToExpiry, cfg.RiskHorizonDays)
			score = (cfg.StockoutWeight*stockout + cfg.ExpiryWeight*expiryTerm) / weights
		}
	}
	return int(math.Round(clamp(score, 0, 100)))
}

func confidence(dataPoints int) model.Confidence {
	switch {
	case dataPoints >= 30:
		return model.ConfidenceHigh
	case dataPoints >= 10:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
