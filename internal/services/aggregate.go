package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"paydash/internal/models"
)

// orderOutcome is the resolved state of one merchant order across all of its
// PSP attempts. An approved attempt anywhere in the group overrides every
// declined attempt, and the group's amount is the first approved row's amount
// so retried approvals never double-count revenue.
type orderOutcome struct {
	approved bool
	declined bool
	amount   float64
}

// dedupeOrders groups transactions by merchant order identity and resolves
// each group's effective outcome. Input order decides which approved amount
// wins within a group.
func dedupeOrders(txs []models.Transaction) map[string]*orderOutcome {
	groups := make(map[string]*orderOutcome)
	for _, tx := range txs {
		outcome := groups[tx.MerchantOrderID]
		if outcome == nil {
			outcome = &orderOutcome{}
			groups[tx.MerchantOrderID] = outcome
		}
		switch tx.Status {
		case models.StatusApproved:
			if !outcome.approved {
				outcome.approved = true
				outcome.amount = tx.Amount
			}
		case models.StatusDeclined:
			outcome.declined = true
		}
	}
	return groups
}

// tallyOutcomes reduces order groups to counts and total approved amount.
func tallyOutcomes(groups map[string]*orderOutcome) (approved, declined int, amount float64) {
	for _, outcome := range groups {
		if outcome.approved {
			approved++
			amount += outcome.amount
		} else if outcome.declined {
			declined++
		}
	}
	return approved, declined, amount
}

// approvalRate is approved/(approved+declined) as a percentage, 0 when there
// is nothing to rate.
func approvalRate(approved, declined int) float64 {
	total := approved + declined
	if total == 0 {
		return 0
	}
	return float64(approved) / float64(total) * 100
}

// Aggregate computes every derived view over an already-filtered transaction
// set. It is total: any input, including nil, produces a fully populated
// zero-value result.
func Aggregate(txs []models.Transaction) *models.AggregateResult {
	groups := dedupeOrders(txs)
	approved, declined, amount := tallyOutcomes(groups)

	return &models.AggregateResult{
		KPI:             kpiSnapshot(txs, approved, declined, amount),
		PSPs:            DimensionStats(txs, func(tx models.Transaction) string { return tx.PSPName }),
		Countries:       DimensionStats(txs, func(tx models.Transaction) string { return tx.CountryDisplayName }),
		MidAliases:      DimensionStats(txs, func(tx models.Transaction) string { return tx.MidAlias }),
		Hourly:          hourlyBuckets(txs),
		Daily:           timeBuckets(txs, dailyKey),
		Weekly:          timeBuckets(txs, weeklyKey),
		Monthly:         timeBuckets(txs, monthlyKey),
		StatusBreakdown: statusBreakdown(approved, declined),
		FilteredCount:   len(txs),
	}
}

func kpiSnapshot(txs []models.Transaction, approved, declined int, amount float64) models.KPISnapshot {
	countries := make(map[string]struct{})
	customers := make(map[string]struct{})
	activeDays := make(map[string]struct{})
	activeHoursByDay := make(map[string]map[int]struct{})

	for _, tx := range txs {
		if tx.Status != models.StatusApproved {
			continue
		}
		if tx.CountryDisplayName != "" {
			countries[tx.CountryDisplayName] = struct{}{}
		}
		if tx.Email != "" {
			customers[tx.Email] = struct{}{}
		}
		activeDays[tx.LocalDate] = struct{}{}
		hours := activeHoursByDay[tx.LocalDate]
		if hours == nil {
			hours = make(map[int]struct{})
			activeHoursByDay[tx.LocalDate] = hours
		}
		hours[tx.LocalHour] = struct{}{}
	}

	average, unit := averageAmount(amount, activeDays, activeHoursByDay)

	return models.KPISnapshot{
		ApprovedCount:       approved,
		DeclinedCount:       declined,
		ApprovalRate:        approvalRate(approved, declined),
		TotalApprovedAmount: amount,
		UniqueCountries:     len(countries),
		UniqueCustomers:     len(customers),
		AverageAmount:       average,
		AverageAmountUnit:   unit,
	}
}

// averageAmount divides the total approved amount by the number of active
// local days with approved activity; when exactly one day is active it
// divides by that day's distinct active hours instead.
func averageAmount(total float64, activeDays map[string]struct{}, activeHoursByDay map[string]map[int]struct{}) (float64, string) {
	switch len(activeDays) {
	case 0:
		return 0, "per day"
	case 1:
		for day := range activeDays {
			hours := len(activeHoursByDay[day])
			if hours == 0 {
				return 0, "per hour"
			}
			return total / float64(hours), "per hour"
		}
	}
	return total / float64(len(activeDays)), "per day"
}

// DimensionStats re-runs the deduplication rule independently inside each
// dimension value's own rows, so the override semantics hold per slice.
func DimensionStats(txs []models.Transaction, key func(models.Transaction) string) []models.DimensionStat {
	byValue := make(map[string][]models.Transaction)
	for _, tx := range txs {
		value := key(tx)
		if value == "" {
			continue
		}
		byValue[value] = append(byValue[value], tx)
	}

	stats := make([]models.DimensionStat, 0, len(byValue))
	for value, rows := range byValue {
		approved, declined, amount := tallyOutcomes(dedupeOrders(rows))
		stats = append(stats, models.DimensionStat{
			Name:           value,
			ApprovedCount:  approved,
			DeclinedCount:  declined,
			ApprovedAmount: amount,
			ApprovalRate:   approvalRate(approved, declined),
		})
	}

	slices.SortFunc(stats, func(a, b models.DimensionStat) int {
		if a.ApprovedAmount != b.ApprovedAmount {
			if a.ApprovedAmount > b.ApprovedAmount {
				return -1
			}
			return 1
		}
		if a.ApprovedCount != b.ApprovedCount {
			return b.ApprovedCount - a.ApprovedCount
		}
		return strings.Compare(a.Name, b.Name)
	})

	return stats
}

// Time-bucket views count raw approved rows per bucket, without the
// merchant-order override applied by the count rollups.

func hourlyBuckets(txs []models.Transaction) []models.HourlyBucket {
	buckets := make([]models.HourlyBucket, 24)
	for hour := range buckets {
		buckets[hour].Hour = hour
	}
	for _, tx := range txs {
		if tx.Status != models.StatusApproved {
			continue
		}
		if tx.LocalHour < 0 || tx.LocalHour > 23 {
			continue
		}
		buckets[tx.LocalHour].Count++
		buckets[tx.LocalHour].Amount += tx.Amount
	}
	return buckets
}

func timeBuckets(txs []models.Transaction, key func(models.Transaction) string) []models.TimeBucket {
	byKey := make(map[string]*models.TimeBucket)
	for _, tx := range txs {
		if tx.Status != models.StatusApproved {
			continue
		}
		k := key(tx)
		if k == "" {
			continue
		}
		bucket := byKey[k]
		if bucket == nil {
			bucket = &models.TimeBucket{Key: k}
			byKey[k] = bucket
		}
		bucket.Count++
		bucket.Amount += tx.Amount
	}

	buckets := make([]models.TimeBucket, 0, len(byKey))
	for _, bucket := range byKey {
		buckets = append(buckets, *bucket)
	}
	slices.SortFunc(buckets, func(a, b models.TimeBucket) int {
		return strings.Compare(a.Key, b.Key)
	})
	return buckets
}

func dailyKey(tx models.Transaction) string {
	return tx.LocalDate
}

func weeklyKey(tx models.Transaction) string {
	day, err := time.Parse("2006-01-02", tx.LocalDate)
	if err != nil {
		return ""
	}
	year, week := day.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthlyKey(tx models.Transaction) string {
	if len(tx.LocalDate) < 7 {
		return ""
	}
	return tx.LocalDate[:7]
}

func statusBreakdown(approved, declined int) []models.StatusSlice {
	total := approved + declined
	breakdown := []models.StatusSlice{
		{Status: models.StatusApproved, Count: approved},
		{Status: models.StatusDeclined, Count: declined},
	}
	if total > 0 {
		breakdown[0].Percent = float64(approved) / float64(total) * 100
		breakdown[1].Percent = float64(declined) / float64(total) * 100
	}
	return breakdown
}

// Granularity picks the display granularity for the selected date-range span.
// Every granularity is always computed; this only drives which one a view
// shows by default.
func Granularity(startDate, endDate string) string {
	start, errStart := time.Parse("2006-01-02", startDate)
	end, errEnd := time.Parse("2006-01-02", endDate)
	if errStart != nil || errEnd != nil || end.Before(start) {
		return "monthly"
	}

	days := int(end.Sub(start).Hours()/24) + 1
	switch {
	case days <= 1:
		return "hourly"
	case days <= 30:
		return "daily"
	case days <= 90:
		return "weekly"
	default:
		return "monthly"
	}
}

// CountryDetailFor runs the country-scoped drill-down: the same deduplication
// rule restricted to the selected country's rows, plus per-PSP and daily
// slices inside that subset.
func CountryDetailFor(txs []models.Transaction, country string) models.CountryDetail {
	rows := make([]models.Transaction, 0)
	for _, tx := range txs {
		if tx.CountryDisplayName == country {
			rows = append(rows, tx)
		}
	}

	approved, declined, amount := tallyOutcomes(dedupeOrders(rows))

	return models.CountryDetail{
		Country: country,
		Stat: models.DimensionStat{
			Name:           country,
			ApprovedCount:  approved,
			DeclinedCount:  declined,
			ApprovedAmount: amount,
			ApprovalRate:   approvalRate(approved, declined),
		},
		PSPs:  DimensionStats(rows, func(tx models.Transaction) string { return tx.PSPName }),
		Daily: timeBuckets(rows, dailyKey),
	}
}
