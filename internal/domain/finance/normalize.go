package finance

import (
	"fmt"

	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CurrencyNormalization is the canonical multi-currency shape of a payment
// amount: the entered amount, its currency, the applied exchange rate, and
// the reporting-currency equivalent.
type CurrencyNormalization struct {
	Amount            decimal.Decimal      `json:"amount"`
	Currency          valueobject.Currency `json:"currency"`
	ExchangeRate      decimal.Decimal      `json:"exchange_rate"`
	AmountInReporting decimal.Decimal      `json:"amount_in_reporting"`
}

// NormalizeCurrency converts a payment amount entered in an arbitrary currency
// into its reporting-currency equivalent.
//
// When the payment currency equals the reporting currency the exchange rate is
// forced to exactly 1.0 regardless of what the caller supplied; callers are
// not trusted to zero this out themselves. Otherwise the rate must be positive,
// and the reporting amount is amount x rate unless an explicit override is
// supplied, in which case the override is trusted as-is (an upstream system
// may have computed it with higher precision).
//
// Pure function: no I/O, no side effects.
func NormalizeCurrency(
	amount decimal.Decimal,
	currency valueobject.Currency,
	exchangeRate decimal.Decimal,
	override *decimal.Decimal,
	reportingCurrency valueobject.Currency,
) (CurrencyNormalization, error) {
	if currency == "" {
		currency = reportingCurrency
	}

	if currency == reportingCurrency {
		return CurrencyNormalization{
			Amount:            amount,
			Currency:          currency,
			ExchangeRate:      decimal.NewFromInt(1),
			AmountInReporting: amount,
		}, nil
	}

	if !exchangeRate.IsPositive() {
		return CurrencyNormalization{}, shared.NewDomainError(
			"INVALID_EXCHANGE_RATE",
			fmt.Sprintf("Exchange rate is required for %s payments", currency),
		)
	}

	amountInReporting := amount.Mul(exchangeRate)
	if override != nil {
		amountInReporting = *override
	}

	return CurrencyNormalization{
		Amount:            amount,
		Currency:          currency,
		ExchangeRate:      exchangeRate,
		AmountInReporting: amountInReporting,
	}, nil
}

// ApplyTo writes the normalization result onto a payment
func (n CurrencyNormalization) ApplyTo(p *Payment) {
	p.Amount = n.Amount
	p.Currency = n.Currency
	p.ExchangeRate = n.ExchangeRate
	p.AmountInReporting = n.AmountInReporting
}
