package services

import (
	"testing"
	"time"

	"paydash/internal/models"
)

var testMethods = MethodMap{
	"coinspaid": models.MethodCrypto,
	"paytora":   models.MethodP2P,
}

func filterFixture() []models.Transaction {
	return []models.Transaction{
		{ID: "1", ProcessingInstant: time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC), PSPName: "acme_pay", CountryDisplayName: "Germany", Status: models.StatusApproved, CardType: "visa", MidAlias: "mid-a"},
		{ID: "2", ProcessingInstant: time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC), PSPName: "coinspaid", CountryDisplayName: "Germany", Status: models.StatusDeclined, CardType: "mastercard", MidAlias: "mid-b"},
		{ID: "3", ProcessingInstant: time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC), PSPName: "paytora", CountryDisplayName: "France", Status: models.StatusApproved, CardType: "visa", MidAlias: "mid-a"},
	}
}

func ids(txs []models.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestApplyFilters_EmptyFilterReturnsAll(t *testing.T) {
	txs := filterFixture()

	got := ApplyFilters(txs, models.FilterState{}, time.UTC, testMethods)

	if len(got) != len(txs) {
		t.Errorf("got %d transactions, want %d", len(got), len(txs))
	}
}

func TestApplyFilters_Dimensions(t *testing.T) {
	txs := filterFixture()

	tests := []struct {
		name   string
		filter models.FilterState
		want   []string
	}{
		{"psp", models.FilterState{PSPs: []string{"acme_pay"}}, []string{"1"}},
		{"country", models.FilterState{Countries: []string{"Germany"}}, []string{"1", "2"}},
		{"status", models.FilterState{Statuses: []string{models.StatusApproved}}, []string{"1", "3"}},
		{"card type", models.FilterState{CardTypes: []string{"visa"}}, []string{"1", "3"}},
		{"mid alias", models.FilterState{MidAliases: []string{"mid-b"}}, []string{"2"}},
		{"method crypto", models.FilterState{Methods: []string{models.MethodCrypto}}, []string{"2"}},
		{"method card default", models.FilterState{Methods: []string{models.MethodCard}}, []string{"1"}},
		{"and across dimensions", models.FilterState{Countries: []string{"Germany"}, Statuses: []string{models.StatusApproved}}, []string{"1"}},
		{"or within dimension", models.FilterState{PSPs: []string{"acme_pay", "paytora"}}, []string{"1", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(ApplyFilters(txs, tt.filter, time.UTC, testMethods))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestApplyFilters_DateRangeUsesLocalDayBoundaries(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatal(err)
	}

	// 19:00 UTC is 01:00 on Jan 2 in Dhaka (UTC+6); 17:00 UTC is still Jan 1.
	txs := []models.Transaction{
		{ID: "in", ProcessingInstant: time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)},
		{ID: "out", ProcessingInstant: time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)},
	}

	filter := models.FilterState{StartDate: "2024-01-02", EndDate: "2024-01-02"}

	got := ApplyFilters(txs, filter, dhaka, testMethods)

	if len(got) != 1 || got[0].ID != "in" {
		t.Fatalf("got %v, want [in]", ids(got))
	}

	// The same instants evaluated in UTC both fall on Jan 1.
	gotUTC := ApplyFilters(txs, filter, time.UTC, testMethods)
	if len(gotUTC) != 0 {
		t.Errorf("in UTC no transaction falls on Jan 2, got %v", ids(gotUTC))
	}
}

func TestApplyFilters_OpenEndedDateRange(t *testing.T) {
	txs := filterFixture()

	got := ApplyFilters(txs, models.FilterState{StartDate: "2024-02-01"}, time.UTC, testMethods)
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("start-only range: got %v, want [3]", ids(got))
	}

	got = ApplyFilters(txs, models.FilterState{EndDate: "2024-01-31"}, time.UTC, testMethods)
	if len(got) != 2 {
		t.Errorf("end-only range: got %v, want [1 2]", ids(got))
	}
}

func TestApplyFilters_Monotonicity(t *testing.T) {
	txs := filterFixture()

	base := models.FilterState{Countries: []string{"Germany"}}
	narrowed := models.FilterState{Countries: []string{"Germany"}, Statuses: []string{models.StatusApproved}}

	baseLen := len(ApplyFilters(txs, base, time.UTC, testMethods))
	narrowedLen := len(ApplyFilters(txs, narrowed, time.UTC, testMethods))

	if narrowedLen > baseLen {
		t.Errorf("adding a constraint grew the result: %d > %d", narrowedLen, baseLen)
	}
}

func TestApplyFilters_Idempotent(t *testing.T) {
	txs := filterFixture()
	filter := models.FilterState{Statuses: []string{models.StatusApproved}}

	first := ids(ApplyFilters(txs, filter, time.UTC, testMethods))
	second := ids(ApplyFilters(txs, filter, time.UTC, testMethods))

	if len(first) != len(second) {
		t.Fatalf("repeated calls differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("repeated calls differ: %v vs %v", first, second)
			break
		}
	}
}

func TestMethodMap_MethodFor(t *testing.T) {
	tests := []struct {
		psp  string
		want string
	}{
		{"coinspaid", models.MethodCrypto},
		{"CoinsPaid", models.MethodCrypto},
		{"paytora", models.MethodP2P},
		{"acme_pay", models.MethodCard},
		{"", models.MethodCard},
	}

	for _, tt := range tests {
		if got := testMethods.MethodFor(tt.psp); got != tt.want {
			t.Errorf("MethodFor(%q) = %q, want %q", tt.psp, got, tt.want)
		}
	}
}
