package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"paydash/internal/models"
)

// Accepted processing_date layouts, tried in order. All are interpreted as
// UTC; the raw data never carries a local-time meaning.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"01/02/2006 15:04:05",
}

var (
	regionNamer = display.Regions(language.English)
	titleCaser  = cases.Title(language.English)
)

// Normalizer maps raw uploaded records into canonical transactions.
type Normalizer struct {
	DefaultCurrency string
}

// NormalizeResult carries the canonical transactions plus the count of rows
// quarantined for an unparseable processing date. Quarantined rows are
// excluded rather than given an invalid instant, so they can never corrupt
// downstream aggregates.
type NormalizeResult struct {
	Transactions []models.Transaction
	Quarantined  int
}

// Normalize converts records in input order. It is pure: no side effects,
// same inputs always produce the same output.
func (n Normalizer) Normalize(records []models.RawRecord, loc *time.Location) NormalizeResult {
	result := NormalizeResult{
		Transactions: make([]models.Transaction, 0, len(records)),
	}

	for _, record := range records {
		tx, ok := n.NormalizeRecord(record, loc)
		if !ok {
			result.Quarantined++
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	return result
}

// NormalizeRecord builds one canonical transaction. The second return value
// is false when the row must be quarantined.
func (n Normalizer) NormalizeRecord(record models.RawRecord, loc *time.Location) (models.Transaction, bool) {
	instant, ok := parseUTCDate(record["processing_date"])
	if !ok {
		return models.Transaction{}, false
	}

	id := record["id"]
	if id == "" {
		id = uuid.NewString()
	}

	currency := record["currency"]
	if currency == "" {
		currency = n.DefaultCurrency
	}

	country := record["country"]
	localDate, localHour := Localize(instant, loc)

	tx := models.Transaction{
		ID:                 id,
		ProcessingInstant:  instant,
		LocalDate:          localDate,
		LocalHour:          localHour,
		PSPName:            record["pspName"],
		Country:            country,
		CountryDisplayName: CountryDisplayName(country),
		Email:              record["email"],
		Amount:             parseAmount(record["amount"]),
		Currency:           currency,
		Status:             record["status"],
		CardType:           record["cardType"],
		LastFourDigits:     record["lastFourDigits"],
		DeclineReason:      record["declineReason"],
		MidAlias:           record["midAlias"],
		Type:               record["type"],
		TransactionID:      record["transactionId"],
		PSPOrderID:         record["pspOrderId"],
		MerchantOrderID:    record["merchantOrderId"],
		BIN:                record["bin"],
		PaymentMethod:      record["paymentMethod"],
	}

	if tx.MerchantOrderID == "" {
		tx.MerchantOrderID = tx.TransactionID
	}
	if tx.MerchantOrderID == "" {
		tx.MerchantOrderID = tx.ID
	}

	return tx, true
}

// Relocalize re-derives the timezone-dependent projections of every
// transaction from its processing instant. The instants themselves are never
// shifted; only their labeling changes.
func Relocalize(txs []models.Transaction, loc *time.Location) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	for i, tx := range txs {
		tx.LocalDate, tx.LocalHour = Localize(tx.ProcessingInstant, loc)
		out[i] = tx
	}
	return out
}

// Localize projects an absolute instant onto a local calendar date and hour.
func Localize(instant time.Time, loc *time.Location) (string, int) {
	local := instant.In(loc)
	return local.Format("2006-01-02"), local.Hour()
}

// CountryDisplayName expands a 2-letter country code into its English region
// name. Unknown codes and free-text tokens fall back to title casing, so two
// raw spellings of the same country collapse to one display name.
func CountryDisplayName(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}

	if len(token) == 2 && isAlpha(token) {
		if region, err := language.ParseRegion(token); err == nil {
			if name := regionNamer.Name(region); name != "" {
				return name
			}
		}
	}

	return titleCaser.String(strings.ToLower(token))
}

func parseUTCDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseAmount(raw string) float64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil || amount < 0 {
		return 0
	}
	return amount
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
