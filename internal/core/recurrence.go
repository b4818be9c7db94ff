package core

import "time"

// IsDue reports whether item falls due in the given zero-based month.
// An item without months is due every month. Months are treated as a set,
// so order and duplicates do not matter.
func IsDue(item Item, month int) bool {
	return item.Months.Includes(month)
}

// Contribution is what item adds to the amount left in month:
// its amount when due and unpaid, zero otherwise.
func Contribution(item Item, month int) Money {
	if !IsDue(item, month) || item.IsPaid {
		return Money{}
	}
	return item.Amount
}

// MonthOf returns the zero-based month index of t.
func MonthOf(t time.Time) int {
	return int(t.Month()) - 1
}

// ReminderInMonth moves a reminder to the same day and clock time in the given
// zero-based month of year. Days past the end of the target month are clamped
// to its last day (a reminder on the 31st lands on Feb 28/29).
func ReminderInMonth(reminder time.Time, year, month int) time.Time {
	loc := reminder.Location()
	targetMonth := time.Month(NormalizeMonth(month) + 1)

	targetDay := reminder.Day()
	lastDayOfMonth := time.Date(year, targetMonth+1, 0, 0, 0, 0, 0, loc).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}

	return time.Date(year, targetMonth, targetDay,
		reminder.Hour(), reminder.Minute(), reminder.Second(), reminder.Nanosecond(), loc)
}
