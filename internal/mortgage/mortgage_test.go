package mortgage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wohnwert/wohnwert/internal/model"
)

func TestMonthlyPayment_ReferenceCase(t *testing.T) {
	c := NewCalculator(DefaultParams())

	// €280k over 35 years at 2.65%.
	got := c.MonthlyPayment(280000, 2.65, 35)
	assert.InDelta(t, 1023.64, got, 0.25)
}

func TestMonthlyPayment_ZeroRate(t *testing.T) {
	c := NewCalculator(DefaultParams())

	got := c.MonthlyPayment(120000, 0, 10)
	assert.InDelta(t, 1000.0, got, 0.001, "zero rate degenerates to principal/n")
}

func TestMonthlyPayment_DegenerateInputs(t *testing.T) {
	c := NewCalculator(DefaultParams())

	assert.Zero(t, c.MonthlyPayment(0, 3.5, 30))
	assert.Zero(t, c.MonthlyPayment(-1000, 3.5, 30))
	assert.Zero(t, c.MonthlyPayment(100000, 3.5, 0))
}

func TestPaymentBreakdown_ReferenceCase(t *testing.T) {
	c := NewCalculator(DefaultParams())

	b := c.PaymentBreakdown(280000, 2.65, 35)
	assert.InDelta(t, 1023.64, b.Base, 0.25)
	assert.InDelta(t, 93.33, b.LifeInsurance, 0.01)
	assert.InDelta(t, 35.00, b.PropertyInsurance, 0.01)
	assert.InDelta(t, 25.00, b.AdminFee, 0.01)
	assert.InDelta(t, 1176.97, b.Total, 0.30)
}

func TestLoanAmount(t *testing.T) {
	c := NewCalculator(DefaultParams())

	assert.InDelta(t, 280000, c.LoanAmount(380000, 100000), 0.001)
	assert.Zero(t, c.LoanAmount(100000, 150000), "down payment above price clamps to zero")
}

func TestTotalMonthlyCost_NilPropagation(t *testing.T) {
	c := NewCalculator(DefaultParams())

	assert.Nil(t, c.TotalMonthlyCost(1176.97, nil), "missing operating cost must not become zero")

	got := c.TotalMonthlyCost(1176.97, model.Float64(150))
	require.NotNil(t, got)
	assert.InDelta(t, 1326.97, *got, 0.001)
}

func TestTotalMonthlyCost_SanityBand(t *testing.T) {
	c := NewCalculator(DefaultParams())

	assert.Nil(t, c.TotalMonthlyCost(1000, model.Float64(2)), "implausibly low operating cost is dropped")
	assert.Nil(t, c.TotalMonthlyCost(1000, model.Float64(90000)), "implausibly high operating cost is dropped")
}

func TestRequiredAnnualIncome(t *testing.T) {
	c := NewCalculator(DefaultParams())

	assert.Nil(t, c.RequiredAnnualIncome(nil))

	got := c.RequiredAnnualIncome(model.Float64(1500))
	require.NotNil(t, got)
	// 1500 * 12 / 0.30
	assert.InDelta(t, 60000, *got, 0.001)
}

func TestAnnotate(t *testing.T) {
	params := DefaultParams()
	params.AnnualRatePct = 2.65
	params.TermYears = 35
	c := NewCalculator(params)

	l := &model.Listing{
		PriceTotal:    model.Float64(350000),
		OperatingCost: model.Float64(150),
	}
	c.Annotate(l)

	require.NotNil(t, l.Financials)
	assert.InDelta(t, 280000, l.Financials.LoanAmount, 0.001, "20% down payment")
	assert.InDelta(t, 1023.64, l.Financials.MonthlyBase, 0.25)
	assert.InDelta(t, 1176.97, l.Financials.MonthlyTotal, 0.30)
	require.NotNil(t, l.Financials.TotalMonthlyCost)
	assert.InDelta(t, 1326.97, *l.Financials.TotalMonthlyCost, 0.35)
	require.NotNil(t, l.Financials.RequiredAnnualIncome)
}

func TestAnnotate_NoPrice(t *testing.T) {
	c := NewCalculator(DefaultParams())

	l := &model.Listing{AreaM2: model.Float64(80)}
	c.Annotate(l)
	assert.Nil(t, l.Financials)
}

func TestAnnotate_MissingOperatingCost(t *testing.T) {
	c := NewCalculator(DefaultParams())

	l := &model.Listing{PriceTotal: model.Float64(350000)}
	c.Annotate(l)

	require.NotNil(t, l.Financials)
	assert.Nil(t, l.Financials.TotalMonthlyCost)
	assert.Nil(t, l.Financials.RequiredAnnualIncome)
}
