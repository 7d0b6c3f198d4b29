// Package pricing holds the money value objects and the pure aggregation
// functions that turn loaded records (listings, collections, discounts) into
// pricing snapshots. Everything here is deterministic: same inputs, same
// output, and amounts never go below zero.
package pricing

import "github.com/shopspring/decimal"

// Money is an amount in a specific currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney builds a Money value.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// ZeroMoney is the zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Sub subtracts o from m, flooring at zero. Currencies must match; this is
// an internal aggregation helper, not general money arithmetic.
func (m Money) Sub(o Money) Money {
	a := m.Amount.Sub(o.Amount)
	if a.IsNegative() {
		a = decimal.Zero
	}
	return Money{Amount: a, Currency: m.Currency}
}

// LessThan reports m < o by amount.
func (m Money) LessThan(o Money) bool { return m.Amount.LessThan(o.Amount) }

// Equal reports amount and currency equality.
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// TaxedMoney is an amount with its net and gross sides. Tax computation is
// an external concern; this layer builds flat values (net == gross).
type TaxedMoney struct {
	Net   Money
	Gross Money
}

// FlatTaxed wraps m as an untaxed TaxedMoney.
func FlatTaxed(m Money) TaxedMoney { return TaxedMoney{Net: m, Gross: m} }

// Sub subtracts o side-by-side, flooring both sides at zero.
func (t TaxedMoney) Sub(o TaxedMoney) TaxedMoney {
	return TaxedMoney{Net: t.Net.Sub(o.Net), Gross: t.Gross.Sub(o.Gross)}
}

// MoneyRange is an inclusive [Start, Stop] amount range.
type MoneyRange struct {
	Start Money
	Stop  Money
}

// TaxedMoneyRange is an inclusive range of taxed amounts.
type TaxedMoneyRange struct {
	Start TaxedMoney
	Stop  TaxedMoney
}

// CurrencyConverter localizes an amount into another currency. Implemented
// by an external collaborator; ok is false when no rate is known.
type CurrencyConverter interface {
	Convert(m Money, toCurrency string) (Money, bool)
}

func convertTaxed(conv CurrencyConverter, t TaxedMoney, currency string) (TaxedMoney, bool) {
	if conv == nil || currency == "" || currency == t.Net.Currency {
		return TaxedMoney{}, false
	}
	net, ok := conv.Convert(t.Net, currency)
	if !ok {
		return TaxedMoney{}, false
	}
	gross, ok := conv.Convert(t.Gross, currency)
	if !ok {
		return TaxedMoney{}, false
	}
	return TaxedMoney{Net: net, Gross: gross}, true
}
