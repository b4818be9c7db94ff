package core

import "slices"

// Currency is the display currency code. It never affects amounts.
type Currency string

// Locale is the UI language.
type Locale string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	BRL Currency = "BRL"

	English    Locale = "en"
	Portuguese Locale = "pt"

	DefaultCurrency = EUR
	DefaultLocale   = English
)

var (
	supportedCurrencies = []Currency{EUR, USD, GBP, BRL}
	supportedLocales    = []Locale{English, Portuguese}
)

// SupportedCurrencies lists the currencies a user can pick.
func SupportedCurrencies() []Currency { return slices.Clone(supportedCurrencies) }

// SupportedLocales lists the locales a user can pick.
func SupportedLocales() []Locale { return slices.Clone(supportedLocales) }

func (c Currency) IsValid() bool { return slices.Contains(supportedCurrencies, c) }
func (l Locale) IsValid() bool   { return slices.Contains(supportedLocales, l) }

// CurrencyOrDefault returns c when supported, DefaultCurrency otherwise.
func CurrencyOrDefault(c string) Currency {
	if cur := Currency(c); cur.IsValid() {
		return cur
	}
	return DefaultCurrency
}

// LocaleOrDefault returns l when supported, DefaultLocale otherwise.
func LocaleOrDefault(l string) Locale {
	if loc := Locale(l); loc.IsValid() {
		return loc
	}
	return DefaultLocale
}
