package models

import "time"

// Transaction status values the pipeline treats specially. Anything else is
// carried through verbatim but counts toward neither approvals nor declines.
const (
	StatusApproved = "approved"
	StatusDeclined = "declined"
)

// Payment method categories derived from the PSP name.
const (
	MethodCard   = "Card"
	MethodCrypto = "Crypto"
	MethodP2P    = "P2P"
)

// RawRecord is one uploaded row before normalization: column name to raw cell
// text, exactly as decoded from the file. Absent columns are absent keys.
type RawRecord map[string]string

// Transaction is the canonical, immutable form of one uploaded row.
// ProcessingInstant is the single source of truth for time; LocalDate and
// LocalHour are projections in the active timezone and are re-derived, never
// shifted, when the timezone changes.
type Transaction struct {
	ID                 string    `json:"id"`
	ProcessingInstant  time.Time `json:"processing_instant"`
	LocalDate          string    `json:"local_date"`
	LocalHour          int       `json:"local_hour"`
	PSPName            string    `json:"psp_name"`
	Country            string    `json:"country"`
	CountryDisplayName string    `json:"country_display_name"`
	Email              string    `json:"email"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	Status             string    `json:"status"`
	CardType           string    `json:"card_type"`
	LastFourDigits     string    `json:"last_four_digits"`
	DeclineReason      string    `json:"decline_reason"`
	MidAlias           string    `json:"mid_alias"`
	Type               string    `json:"type"`
	TransactionID      string    `json:"transaction_id"`
	PSPOrderID         string    `json:"psp_order_id"`
	MerchantOrderID    string    `json:"merchant_order_id"`
	BIN                string    `json:"bin"`
	PaymentMethod      string    `json:"payment_method"`
}

// FilterState is a snapshot of the user-selected constraints. Every set-valued
// field is an inclusive any-of predicate; an empty slice means unconstrained.
// Dates are local calendar days ("2006-01-02") in the active timezone.
type FilterState struct {
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	PSPs       []string `json:"psps"`
	Countries  []string `json:"countries"`
	Statuses   []string `json:"statuses"`
	CardTypes  []string `json:"card_types"`
	MidAliases []string `json:"mid_aliases"`
	Methods    []string `json:"methods"`
}

// IsZero reports whether no constraint is active.
func (f FilterState) IsZero() bool {
	return f.StartDate == "" && f.EndDate == "" &&
		len(f.PSPs) == 0 && len(f.Countries) == 0 && len(f.Statuses) == 0 &&
		len(f.CardTypes) == 0 && len(f.MidAliases) == 0 && len(f.Methods) == 0
}

// KPISnapshot is the top-line summary over merchant-order-deduplicated groups.
type KPISnapshot struct {
	ApprovedCount       int     `json:"approved_count"`
	DeclinedCount       int     `json:"declined_count"`
	ApprovalRate        float64 `json:"approval_rate"`
	TotalApprovedAmount float64 `json:"total_approved_amount"`
	UniqueCountries     int     `json:"unique_countries"`
	UniqueCustomers     int     `json:"unique_customers"`
	AverageAmount       float64 `json:"average_amount"`
	AverageAmountUnit   string  `json:"average_amount_unit"`
}

// DimensionStat is one rollup row for a categorical dimension (PSP, country,
// MID alias). Counts follow the same deduplication rule as the KPI snapshot,
// scoped to the dimension value's own rows.
type DimensionStat struct {
	Name           string  `json:"name"`
	ApprovedCount  int     `json:"approved_count"`
	DeclinedCount  int     `json:"declined_count"`
	ApprovedAmount float64 `json:"approved_amount"`
	ApprovalRate   float64 `json:"approval_rate"`
}

// HourlyBucket is one of the 24 fixed hour-of-day buckets.
type HourlyBucket struct {
	Hour   int     `json:"hour"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// TimeBucket is one daily/weekly/monthly bucket keyed by its local calendar
// label ("2024-03-01", "2024-W09", "2024-03").
type TimeBucket struct {
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// StatusSlice is one slice of the approved/declined distribution.
type StatusSlice struct {
	Status  string  `json:"status"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// AggregateResult bundles every derived view over one filtered transaction
// set. It is recomputed from scratch on every filter or timezone change.
type AggregateResult struct {
	KPI             KPISnapshot     `json:"kpi"`
	PSPs            []DimensionStat `json:"psps"`
	Countries       []DimensionStat `json:"countries"`
	MidAliases      []DimensionStat `json:"mid_aliases"`
	Hourly          []HourlyBucket  `json:"hourly"`
	Daily           []TimeBucket    `json:"daily"`
	Weekly          []TimeBucket    `json:"weekly"`
	Monthly         []TimeBucket    `json:"monthly"`
	StatusBreakdown []StatusSlice   `json:"status_breakdown"`
	FilteredCount   int             `json:"filtered_count"`
}

// CountryDetail is the country-scoped drill-down produced when the user
// selects a country: the same deduplication rule restricted to that country's
// rows, with per-PSP and daily slices.
type CountryDetail struct {
	Country string          `json:"country"`
	Stat    DimensionStat   `json:"stat"`
	PSPs    []DimensionStat `json:"psps"`
	Daily   []TimeBucket    `json:"daily"`
}

// Insight severity tags and priorities.
const (
	InsightSuccess = "success"
	InsightWarning = "warning"
	InsightDanger  = "danger"
	InsightInfo    = "info"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Insight is one heuristic recommendation derived from the filtered data.
type Insight struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
}
