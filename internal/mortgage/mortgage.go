// Package mortgage computes monthly payments, Austrian fee overlays, total
// housing cost and the income required to afford a listing.
package mortgage

import (
	"math"

	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/model"
)

// Params configures the calculator. Rates mirror typical Austrian
// mortgages: life insurance ~0.4%/yr of principal, property insurance
// ~0.15%/yr, a fixed monthly administration fee.
type Params struct {
	AnnualRatePct        float64 `yaml:"annual_rate_pct" mapstructure:"annual_rate_pct"`
	TermYears            int     `yaml:"term_years" mapstructure:"term_years"`
	DownPaymentPct       float64 `yaml:"down_payment_pct" mapstructure:"down_payment_pct"`
	LifeInsuranceRatePct float64 `yaml:"life_insurance_rate_pct" mapstructure:"life_insurance_rate_pct"`
	PropertyInsRatePct   float64 `yaml:"property_insurance_rate_pct" mapstructure:"property_insurance_rate_pct"`
	AdminFeeMonthly      float64 `yaml:"admin_fee_monthly" mapstructure:"admin_fee_monthly"`
	IncomeRatio          float64 `yaml:"income_ratio" mapstructure:"income_ratio"`

	// Plausibility band for the upstream-extracted monthly operating cost.
	// Values outside it are treated as absent rather than trusted.
	MinOperatingCost float64 `yaml:"min_operating_cost" mapstructure:"min_operating_cost"`
	MaxOperatingCost float64 `yaml:"max_operating_cost" mapstructure:"max_operating_cost"`
}

// DefaultParams returns current Austrian market defaults.
func DefaultParams() Params {
	return Params{
		AnnualRatePct:        3.5,
		TermYears:            35,
		DownPaymentPct:       0.20,
		LifeInsuranceRatePct: 0.4,
		PropertyInsRatePct:   0.15,
		AdminFeeMonthly:      25,
		IncomeRatio:          0.30,
		MinOperatingCost:     10,
		MaxOperatingCost:     5000,
	}
}

// Breakdown itemizes one monthly payment.
type Breakdown struct {
	Base              float64 `json:"base"`
	LifeInsurance     float64 `json:"life_insurance"`
	PropertyInsurance float64 `json:"property_insurance"`
	AdminFee          float64 `json:"admin_fee"`
	Total             float64 `json:"total"`
}

// Calculator derives the financial annotation for listings.
type Calculator struct {
	params Params
}

// NewCalculator creates a calculator with the given parameters.
func NewCalculator(params Params) *Calculator {
	return &Calculator{params: params}
}

// LoanAmount returns the principal after down payment, never negative.
func (c *Calculator) LoanAmount(purchasePrice, downPayment float64) float64 {
	return math.Max(0, purchasePrice-downPayment)
}

// MonthlyPayment computes the base amortized payment:
// M = P*r*(1+r)^n / ((1+r)^n - 1) with r the monthly rate and n the number
// of payments. A zero rate degenerates to straight division.
func (c *Calculator) MonthlyPayment(principal, annualRatePct float64, years int) float64 {
	if principal <= 0 || years <= 0 || annualRatePct < 0 {
		return 0
	}
	n := float64(years * 12)
	r := annualRatePct / 100 / 12
	if r == 0 {
		return round2(principal / n)
	}
	growth := math.Pow(1+r, n)
	return round2(principal * r * growth / (growth - 1))
}

// PaymentBreakdown itemizes the monthly payment including fee overlays.
func (c *Calculator) PaymentBreakdown(principal, annualRatePct float64, years int) Breakdown {
	base := c.MonthlyPayment(principal, annualRatePct, years)
	if base == 0 {
		return Breakdown{}
	}
	life := round2(principal * c.params.LifeInsuranceRatePct / 100 / 12)
	property := round2(principal * c.params.PropertyInsRatePct / 100 / 12)
	admin := round2(c.params.AdminFeeMonthly)
	return Breakdown{
		Base:              base,
		LifeInsurance:     life,
		PropertyInsurance: property,
		AdminFee:          admin,
		Total:             round2(base + life + property + admin),
	}
}

// SanitizeOperatingCost validates the upstream operating cost against the
// plausibility band; implausible values come back as nil.
func (c *Calculator) SanitizeOperatingCost(operating *float64) *float64 {
	if operating == nil {
		return nil
	}
	if *operating < c.params.MinOperatingCost || *operating > c.params.MaxOperatingCost {
		zap.L().Debug("mortgage: implausible operating cost dropped",
			zap.Float64("operating_cost", *operating),
		)
		return nil
	}
	return operating
}

// TotalMonthlyCost adds the operating cost to the loan payment. Nil
// propagates: a missing Betriebskosten must not silently read as zero,
// that would understate the true cost.
func (c *Calculator) TotalMonthlyCost(loanMonthly float64, operating *float64) *float64 {
	operating = c.SanitizeOperatingCost(operating)
	if operating == nil {
		return nil
	}
	total := round2(loanMonthly + *operating)
	return &total
}

// RequiredAnnualIncome backs out the gross income needed so that the total
// monthly cost consumes at most the configured income ratio.
func (c *Calculator) RequiredAnnualIncome(totalMonthly *float64) *float64 {
	if totalMonthly == nil {
		return nil
	}
	ratio := c.params.IncomeRatio
	if ratio <= 0 {
		ratio = 0.30
	}
	income := round2(*totalMonthly * 12 / ratio)
	return &income
}

// Annotate fills the listing's financial fields from its price and the
// configured loan defaults. Listings without a price stay unannotated.
func (c *Calculator) Annotate(l *model.Listing) {
	if l.PriceTotal == nil || *l.PriceTotal <= 0 {
		return
	}
	price := *l.PriceTotal
	down := price * c.params.DownPaymentPct
	principal := c.LoanAmount(price, down)

	b := c.PaymentBreakdown(principal, c.params.AnnualRatePct, c.params.TermYears)
	fin := &model.Financials{
		LoanAmount:        round2(principal),
		InterestRatePct:   c.params.AnnualRatePct,
		TermYears:         c.params.TermYears,
		MonthlyBase:       b.Base,
		LifeInsurance:     b.LifeInsurance,
		PropertyInsurance: b.PropertyInsurance,
		AdminFee:          b.AdminFee,
		MonthlyTotal:      b.Total,
	}
	fin.TotalMonthlyCost = c.TotalMonthlyCost(b.Total, l.OperatingCost)
	fin.RequiredAnnualIncome = c.RequiredAnnualIncome(fin.TotalMonthlyCost)
	l.Financials = fin
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
