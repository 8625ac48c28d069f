package reconciliation

import (
	"github.com/shopspring/decimal"

	"github.com/shopledger/payoutrecon/internal/currency"
	"github.com/shopledger/payoutrecon/internal/domain"
)

// ValidatePayout compares a payout against the orders selected for it.
func ValidatePayout(p domain.Payout, candidateCount int, sel Selection, cfg Config) domain.PayoutReconciliation {
	customer := make([]decimal.Decimal, len(sel.Orders))
	for i, o := range sel.Orders {
		customer[i] = o.CustomerTotal
	}
	customerTotal := currency.Sum(customer...)

	diff := sel.RunningTotal.Sub(p.GrossAmount).Abs()
	netDiff := p.NetAmount.Sub(p.GrossAmount.Sub(p.ProcessingFee)).Abs()

	return domain.PayoutReconciliation{
		PayoutID:            p.ID,
		SettlementDate:      p.SettlementDate,
		Currency:            p.Currency,
		GrossAmount:         p.GrossAmount,
		ProcessingFee:       p.ProcessingFee,
		NetAmount:           p.NetAmount,
		FeeRatePercent:      p.FeeRatePercent(),
		CandidateCount:      candidateCount,
		MappedOrderCount:    len(sel.Orders),
		CustomerTotal:       currency.RoundAmount(customerTotal),
		ShopTotal:           currency.RoundAmount(sel.RunningTotal),
		AverageExchangeRate: currency.ExchangeRate(customerTotal, sel.RunningTotal),
		ShopDifference:      currency.RoundAmount(diff),
		CurrencyMatch:       diff.LessThan(cfg.MatchThreshold),
		NetMatch:            netDiff.LessThanOrEqual(cfg.NetTolerance),
		Strategy:            string(sel.Strategy),
	}
}

// CalculateCurrencyMetrics aggregates exchange-rate statistics over the
// annotated orders of a batch. Orders without a known rate count towards the
// totals but not the rate statistics.
func CalculateCurrencyMetrics(orders []domain.Order, payouts []domain.Payout) domain.CurrencyMetrics {
	m := domain.CurrencyMetrics{
		AverageExchangeRate:    decimal.Zero,
		MinExchangeRate:        decimal.Zero,
		MaxExchangeRate:        decimal.Zero,
		ExchangeRateVolatility: decimal.Zero,
	}

	customerTotal := decimal.Zero
	shopTotal := decimal.Zero
	rateSum := decimal.Zero
	for _, o := range orders {
		customerTotal = customerTotal.Add(o.CustomerTotal)
		shopTotal = shopTotal.Add(o.ShopTotal)

		if !o.ExchangeRate.IsPositive() {
			continue
		}
		if m.RatedOrderCount == 0 || o.ExchangeRate.LessThan(m.MinExchangeRate) {
			m.MinExchangeRate = o.ExchangeRate
		}
		if m.RatedOrderCount == 0 || o.ExchangeRate.GreaterThan(m.MaxExchangeRate) {
			m.MaxExchangeRate = o.ExchangeRate
		}
		rateSum = rateSum.Add(o.ExchangeRate)
		m.RatedOrderCount++
	}

	if m.RatedOrderCount > 0 {
		m.AverageExchangeRate = currency.RoundRate(rateSum.Div(decimal.NewFromInt(int64(m.RatedOrderCount))))
		m.MinExchangeRate = currency.RoundRate(m.MinExchangeRate)
		m.MaxExchangeRate = currency.RoundRate(m.MaxExchangeRate)
		m.ExchangeRateVolatility = currency.RoundRate(m.MaxExchangeRate.Sub(m.MinExchangeRate))
	}

	grosses := make([]decimal.Decimal, len(payouts))
	for i, p := range payouts {
		grosses[i] = p.GrossAmount
	}
	payoutTotal := currency.Sum(grosses...)

	m.TotalCustomerAmount = currency.RoundAmount(customerTotal)
	m.TotalShopAmountFromOrders = currency.RoundAmount(shopTotal)
	m.TotalShopAmountFromPayouts = currency.RoundAmount(payoutTotal)
	m.ConversionAccuracyPercent = currency.Percent(shopTotal, payoutTotal)
	m.ConversionDifference = currency.RoundAmount(shopTotal.Sub(payoutTotal).Abs())
	return m
}
