package services

import (
	"strings"
	"time"

	"paydash/internal/models"
)

// MethodMap classifies PSP names into payment method categories. Keys are
// lowercased PSP names; anything unmapped defaults to Card. The mapping is
// injected from configuration, never hardcoded at call sites.
type MethodMap map[string]string

// MethodFor returns the method category for a PSP name.
func (m MethodMap) MethodFor(pspName string) string {
	if method, ok := m[strings.ToLower(pspName)]; ok {
		return method
	}
	return models.MethodCard
}

// ApplyFilters evaluates a filter state against the transaction set and
// returns the matching subset in input order. Dimensions combine with AND;
// values within one dimension combine with OR; an empty set is no constraint.
// One pass over the input with prebuilt membership sets.
func ApplyFilters(txs []models.Transaction, filter models.FilterState, loc *time.Location, methods MethodMap) []models.Transaction {
	if filter.IsZero() {
		out := make([]models.Transaction, len(txs))
		copy(out, txs)
		return out
	}

	psps := toSet(filter.PSPs)
	countries := toSet(filter.Countries)
	statuses := toSet(filter.Statuses)
	cardTypes := toSet(filter.CardTypes)
	midAliases := toSet(filter.MidAliases)
	methodSet := toSet(filter.Methods)

	startBound, endBound := dateBounds(filter.StartDate, filter.EndDate, loc)

	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !startBound.IsZero() && tx.ProcessingInstant.Before(startBound) {
			continue
		}
		if !endBound.IsZero() && !tx.ProcessingInstant.Before(endBound) {
			continue
		}
		if !matches(psps, tx.PSPName) {
			continue
		}
		if !matches(countries, tx.CountryDisplayName) {
			continue
		}
		if !matches(statuses, tx.Status) {
			continue
		}
		if !matches(cardTypes, tx.CardType) {
			continue
		}
		if !matches(midAliases, tx.MidAlias) {
			continue
		}
		if len(methodSet) > 0 {
			if _, ok := methodSet[methods.MethodFor(tx.PSPName)]; !ok {
				continue
			}
		}
		out = append(out, tx)
	}

	return out
}

// dateBounds converts local calendar days into instant bounds: start-of-day
// for the start date and start-of-next-day for the end date, both in the
// active timezone, making the range inclusive on both sides. A missing or
// malformed date leaves that side unconstrained.
func dateBounds(startDate, endDate string, loc *time.Location) (time.Time, time.Time) {
	var start, end time.Time

	if startDate != "" {
		if day, err := time.ParseInLocation("2006-01-02", startDate, loc); err == nil {
			start = day
		}
	}
	if endDate != "" {
		if day, err := time.ParseInLocation("2006-01-02", endDate, loc); err == nil {
			end = day.AddDate(0, 0, 1)
		}
	}

	return start, end
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, value string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[value]
	return ok
}
