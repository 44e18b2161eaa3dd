package services

import (
	"fmt"
	"math"
	"slices"

	"paydash/internal/models"
)

// Insight rule thresholds.
const (
	lowApprovalRate       = 70.0
	highApprovalRate      = 85.0
	minPSPVolume          = 5
	minDeclineReasonCount = 5
	trendThreshold        = 10.0
	trendEscalation       = 25.0
	highAverageAmount     = 100.0
)

// DeriveInsights evaluates the fixed rule set over a filtered transaction set
// and returns the emitted insights ordered by priority, rule order breaking
// ties. Pure and total: empty input yields no insights, never an error.
func DeriveInsights(txs []models.Transaction) []models.Insight {
	groups := dedupeOrders(txs)
	approved, declined, totalAmount := tallyOutcomes(groups)

	insights := make([]models.Insight, 0, 7)

	if insight, ok := approvalRateInsight(approved, declined); ok {
		insights = append(insights, insight)
	}
	if insight, ok := bestPSPInsight(txs); ok {
		insights = append(insights, insight)
	}
	if insight, ok := peakHourInsight(txs); ok {
		insights = append(insights, insight)
	}
	if insight, ok := topCountryInsight(txs, totalAmount); ok {
		insights = append(insights, insight)
	}
	if insight, ok := topDeclineReasonInsight(txs); ok {
		insights = append(insights, insight)
	}
	if insight, ok := revenueTrendInsight(txs); ok {
		insights = append(insights, insight)
	}
	if insight, ok := highAverageInsight(approved, totalAmount); ok {
		insights = append(insights, insight)
	}

	slices.SortStableFunc(insights, func(a, b models.Insight) int {
		return priorityRank(a.Priority) - priorityRank(b.Priority)
	})

	return insights
}

func priorityRank(priority string) int {
	switch priority {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}

func approvalRateInsight(approved, declined int) (models.Insight, bool) {
	if approved+declined == 0 {
		return models.Insight{}, false
	}

	rate := approvalRate(approved, declined)
	switch {
	case rate < lowApprovalRate:
		return models.Insight{
			ID:             "approval-rate-low",
			Type:           models.InsightWarning,
			Priority:       models.PriorityHigh,
			Title:          "Low approval rate",
			Description:    fmt.Sprintf("Overall approval rate is %.1f%%, below the %.0f%% threshold.", rate, lowApprovalRate),
			Recommendation: "Review decline reasons and PSP routing for the affected traffic.",
		}, true
	case rate > highApprovalRate:
		return models.Insight{
			ID:          "approval-rate-high",
			Type:        models.InsightSuccess,
			Priority:    models.PriorityLow,
			Title:       "Healthy approval rate",
			Description: fmt.Sprintf("Overall approval rate is %.1f%%, above the %.0f%% benchmark.", rate, highApprovalRate),
		}, true
	}
	return models.Insight{}, false
}

func bestPSPInsight(txs []models.Transaction) (models.Insight, bool) {
	var best models.DimensionStat
	found := false

	for _, stat := range DimensionStats(txs, func(tx models.Transaction) string { return tx.PSPName }) {
		if stat.ApprovedCount+stat.DeclinedCount < minPSPVolume {
			continue
		}
		if !found || stat.ApprovalRate > best.ApprovalRate {
			best = stat
			found = true
		}
	}

	if !found {
		return models.Insight{}, false
	}

	return models.Insight{
		ID:             "best-psp",
		Type:           models.InsightSuccess,
		Priority:       models.PriorityMedium,
		Title:          "Best performing PSP",
		Description:    fmt.Sprintf("%s has the highest approval rate at %.1f%% across %d orders.", best.Name, best.ApprovalRate, best.ApprovedCount+best.DeclinedCount),
		Recommendation: fmt.Sprintf("Consider routing more traffic through %s.", best.Name),
	}, true
}

func peakHourInsight(txs []models.Transaction) (models.Insight, bool) {
	buckets := hourlyBuckets(txs)

	peak := buckets[0]
	for _, bucket := range buckets[1:] {
		if bucket.Amount > peak.Amount {
			peak = bucket
		}
	}

	if peak.Amount <= 0 {
		return models.Insight{}, false
	}

	return models.Insight{
		ID:          "peak-hour",
		Type:        models.InsightInfo,
		Priority:    models.PriorityLow,
		Title:       "Peak revenue hour",
		Description: fmt.Sprintf("Hour %02d:00 generates the most approved revenue (%.2f).", peak.Hour, peak.Amount),
	}, true
}

func topCountryInsight(txs []models.Transaction, totalAmount float64) (models.Insight, bool) {
	stats := DimensionStats(txs, func(tx models.Transaction) string { return tx.CountryDisplayName })
	if len(stats) < 2 || totalAmount <= 0 {
		return models.Insight{}, false
	}

	top := stats[0]
	share := top.ApprovedAmount / totalAmount * 100

	return models.Insight{
		ID:          "top-country",
		Type:        models.InsightInfo,
		Priority:    models.PriorityMedium,
		Title:       "Top revenue country",
		Description: fmt.Sprintf("%s accounts for %.1f%% of approved revenue.", top.Name, share),
	}, true
}

func topDeclineReasonInsight(txs []models.Transaction) (models.Insight, bool) {
	counts := make(map[string]int)
	for _, tx := range txs {
		if tx.Status == models.StatusDeclined && tx.DeclineReason != "" {
			counts[tx.DeclineReason]++
		}
	}

	var topReason string
	topCount := 0
	for reason, count := range counts {
		if count > topCount || (count == topCount && reason < topReason) {
			topReason = reason
			topCount = count
		}
	}

	if topCount <= minDeclineReasonCount {
		return models.Insight{}, false
	}

	return models.Insight{
		ID:             "top-decline-reason",
		Type:           models.InsightWarning,
		Priority:       models.PriorityMedium,
		Title:          "Dominant decline reason",
		Description:    fmt.Sprintf("%q caused %d declines.", topReason, topCount),
		Recommendation: "Investigate whether this decline reason is recoverable through retries or routing.",
	}, true
}

func revenueTrendInsight(txs []models.Transaction) (models.Insight, bool) {
	daily := timeBuckets(txs, dailyKey)
	if len(daily) < 2 {
		return models.Insight{}, false
	}

	previous := daily[len(daily)-2]
	latest := daily[len(daily)-1]
	if previous.Amount <= 0 {
		return models.Insight{}, false
	}

	change := (latest.Amount - previous.Amount) / previous.Amount * 100
	if math.Abs(change) <= trendThreshold {
		return models.Insight{}, false
	}

	insight := models.Insight{
		ID:       "revenue-trend",
		Priority: models.PriorityMedium,
	}

	if change > 0 {
		insight.Type = models.InsightSuccess
		insight.Title = "Revenue trending up"
		insight.Description = fmt.Sprintf("Approved revenue grew %.1f%% on %s compared to %s.", change, latest.Key, previous.Key)
	} else {
		insight.Type = models.InsightWarning
		insight.Title = "Revenue trending down"
		insight.Description = fmt.Sprintf("Approved revenue dropped %.1f%% on %s compared to %s.", -change, latest.Key, previous.Key)
		insight.Recommendation = "Check PSP health and decline reasons for the latest day."
	}

	if math.Abs(change) > trendEscalation {
		insight.Priority = models.PriorityHigh
		if change < 0 {
			insight.Type = models.InsightDanger
		}
	}

	return insight, true
}

func highAverageInsight(approved int, totalAmount float64) (models.Insight, bool) {
	if approved == 0 {
		return models.Insight{}, false
	}

	average := totalAmount / float64(approved)
	if average <= highAverageAmount {
		return models.Insight{}, false
	}

	return models.Insight{
		ID:          "high-average-value",
		Type:        models.InsightInfo,
		Priority:    models.PriorityLow,
		Title:       "High average transaction value",
		Description: fmt.Sprintf("Approved orders average %.2f, above the %.0f benchmark.", average, highAverageAmount),
	}, true
}
