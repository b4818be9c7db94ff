package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIsDue_EmptyMonthsMeansEveryMonth(t *testing.T) {
	item := Item{Months: Months{}}
	for m := 0; m < 12; m++ {
		if !IsDue(item, m) {
			t.Errorf("IsDue(empty, %d) = false, want true", m)
		}
	}
	if !IsDue(Item{}, 3) {
		t.Errorf("nil months should behave like empty months")
	}
}

func TestIsDue_Membership(t *testing.T) {
	item := Item{Months: MustMonths(0, 6)}
	for m := 0; m < 12; m++ {
		want := m == 0 || m == 6
		if got := IsDue(item, m); got != want {
			t.Errorf("IsDue([0 6], %d) = %v, want %v", m, got, want)
		}
	}
}

func TestIsDue_TreatsMonthsAsSet(t *testing.T) {
	a := Item{Months: Months{6, 0, 6}}
	b := Item{Months: Months{0, 6}}
	for m := 0; m < 12; m++ {
		if IsDue(a, m) != IsDue(b, m) {
			t.Errorf("month %d: duplicate/reordered months changed the result", m)
		}
	}
}

func TestContribution(t *testing.T) {
	tests := []struct {
		name  string
		item  Item
		month int
		want  string
	}{
		{"due and unpaid", Item{Amount: MustMoney("50")}, 3, "50.00"},
		{"due and paid", Item{Amount: MustMoney("50"), IsPaid: true}, 3, "0.00"},
		{"not due", Item{Amount: MustMoney("20"), Months: MustMonths(0, 6)}, 2, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Contribution(tt.item, tt.month).String(); got != tt.want {
				t.Errorf("Contribution() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReminderInMonth(t *testing.T) {
	tests := []struct {
		name     string
		reminder time.Time
		year     int
		month    int
		want     time.Time
	}{
		{
			name:     "same day next month",
			reminder: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
			year:     2024,
			month:    3,
			want:     time.Date(2024, 4, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "day 31 into February of a leap year",
			reminder: time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC),
			year:     2024,
			month:    1,
			want:     time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "day 31 into April",
			reminder: time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC),
			year:     2024,
			month:    3,
			want:     time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "across the year boundary",
			reminder: time.Date(2024, 12, 5, 8, 0, 0, 0, time.UTC),
			year:     2025,
			month:    0,
			want:     time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReminderInMonth(tt.reminder, tt.year, tt.month); !got.Equal(tt.want) {
				t.Errorf("ReminderInMonth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthsJSON(t *testing.T) {
	var ms Months
	if err := json.Unmarshal([]byte(`[6,0,6]`), &ms); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := json.Marshal(ms)
	if string(b) != "[0,6]" {
		t.Fatalf("expected normalized [0,6], got %s", b)
	}
	if err := json.Unmarshal([]byte(`[{"id":3,"name":"April"}]`), &ms); err == nil {
		t.Fatalf("legacy month objects must not decode as the current schema")
	}
	if err := json.Unmarshal([]byte(`[12]`), &ms); err == nil {
		t.Fatalf("expected error for month 12")
	}
	b, _ = json.Marshal(Months(nil))
	if string(b) != "[]" {
		t.Fatalf("nil months should encode as [], got %s", b)
	}
}

func TestMonthsDescribe(t *testing.T) {
	if got := MustMonths().Describe(); got != "Happens every month" {
		t.Errorf("empty: %q", got)
	}
	if got := MustMonths(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11).Describe(); got != "Happens every month" {
		t.Errorf("full: %q", got)
	}
	if got := MustMonths(6, 0).Describe(); got != "January, July" {
		t.Errorf("partial: %q", got)
	}
}

func TestSettingsDefaults(t *testing.T) {
	if CurrencyOrDefault("XYZ") != EUR || CurrencyOrDefault("USD") != USD {
		t.Errorf("currency fallback broken")
	}
	if LocaleOrDefault("") != English || LocaleOrDefault("pt") != Portuguese {
		t.Errorf("locale fallback broken")
	}
}
