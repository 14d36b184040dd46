package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Channel identifies a notification channel. A listing is surfaced at most
// once per channel unless an explicit resend override is in effect.
type Channel string

const (
	ChannelMain   Channel = "telegram_main"
	ChannelDev    Channel = "telegram_dev"
	ChannelDigest Channel = "digest"
)

// Listing is one property observation. Every raw field except the identity
// URL may be absent; absence is expressed with nil pointers rather than
// zero values so that "unknown" never masquerades as "bad".
type Listing struct {
	URL         string `json:"url"`
	ContentHash string `json:"content_hash,omitempty"`
	Source      string `json:"source,omitempty"`

	Title    string  `json:"title,omitempty"`
	District *string `json:"district,omitempty"`
	Address  *string `json:"address,omitempty"`

	PriceTotal *float64 `json:"price_total,omitempty"`
	AreaM2     *float64 `json:"area_m2,omitempty"`
	PricePerM2 *float64 `json:"price_per_m2,omitempty"`
	Rooms      *float64 `json:"rooms,omitempty"`
	YearBuilt  *float64 `json:"year_built,omitempty"`
	FloorLevel *float64 `json:"floor_level,omitempty"`

	Condition   *string  `json:"condition,omitempty"`
	EnergyClass *string  `json:"energy_class,omitempty"`
	HWBValue    *float64 `json:"hwb_value,omitempty"`

	BalconyTerrace         *bool    `json:"balcony_terrace,omitempty"`
	UBahnWalkMinutes       *float64 `json:"ubahn_walk_minutes,omitempty"`
	SchoolWalkMinutes      *float64 `json:"school_walk_minutes,omitempty"`
	PotentialGrowthRating  *float64 `json:"potential_growth_rating,omitempty"`
	RenovationNeededRating *float64 `json:"renovation_needed_rating,omitempty"`

	// OperatingCost is the monthly Betriebskosten, extracted upstream.
	OperatingCost *float64 `json:"operating_cost,omitempty"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`

	Valid          bool     `json:"valid"`
	InvalidReasons []string `json:"invalid_reasons,omitempty"`

	// Score is only meaningful together with BuyerProfile: re-scoring under
	// a different profile replaces both fields as a unit.
	Score        *float64           `json:"score,omitempty"`
	BuyerProfile string             `json:"buyer_profile,omitempty"`
	Breakdown    map[string]float64 `json:"breakdown,omitempty"`

	Financials *Financials `json:"financials,omitempty"`

	// Delivered records per-channel delivery flags as read from the store.
	// The flags themselves transition via the store's compare-and-set, never
	// by mutating this map.
	Delivered map[Channel]bool `json:"delivered,omitempty"`
}

// Financials holds the mortgage annotation derived for a listing.
type Financials struct {
	LoanAmount        float64 `json:"loan_amount"`
	InterestRatePct   float64 `json:"interest_rate_pct"`
	TermYears         int     `json:"term_years"`
	MonthlyBase       float64 `json:"monthly_base"`
	LifeInsurance     float64 `json:"life_insurance"`
	PropertyInsurance float64 `json:"property_insurance"`
	AdminFee          float64 `json:"admin_fee"`
	MonthlyTotal      float64 `json:"monthly_total"`

	// TotalMonthlyCost is loan payment plus operating cost. Nil whenever the
	// operating cost is unknown; a missing Betriebskosten must not be read
	// as zero.
	TotalMonthlyCost     *float64 `json:"total_monthly_cost,omitempty"`
	RequiredAnnualIncome *float64 `json:"required_annual_income,omitempty"`
}

// ValidityResult is the advisory outcome of structural and liveness checks.
type ValidityResult struct {
	OK      bool     `json:"ok"`
	Reasons []string `json:"reasons,omitempty"`
}

// Identity returns the canonical identity key for the listing: the source
// URL when present, otherwise the derived content hash.
func (l *Listing) Identity() string {
	if l.URL != "" {
		return l.URL
	}
	return l.HashKey()
}

// HashKey derives the secondary identity from district, price and area.
// It is stable across re-observations of the same property as long as
// those three fields do not change.
func (l *Listing) HashKey() string {
	district := ""
	if l.District != nil {
		district = *l.District
	}
	var price, area float64
	if l.PriceTotal != nil {
		price = *l.PriceTotal
	}
	if l.AreaM2 != nil {
		area = *l.AreaM2
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%.2f|%.2f", district, price, area))
	return hex.EncodeToString(sum[:])
}

// DerivePricePerM2 fills PricePerM2 from price and area when both are
// present and the field was not supplied by the source.
func (l *Listing) DerivePricePerM2() {
	if l.PricePerM2 != nil {
		return
	}
	if l.PriceTotal == nil || l.AreaM2 == nil || *l.AreaM2 <= 0 {
		return
	}
	v := *l.PriceTotal / *l.AreaM2
	l.PricePerM2 = &v
}

// NumericField returns the raw numeric value for a criterion name, or nil
// when the field is absent. Boolean criteria map to 0/1.
func (l *Listing) NumericField(name string) *float64 {
	switch name {
	case "price_per_m2":
		return l.PricePerM2
	case "price_total":
		return l.PriceTotal
	case "area_m2":
		return l.AreaM2
	case "rooms":
		return l.Rooms
	case "year_built":
		return l.YearBuilt
	case "floor_level":
		return l.FloorLevel
	case "hwb_value":
		return l.HWBValue
	case "ubahn_walk_minutes":
		return l.UBahnWalkMinutes
	case "school_walk_minutes":
		return l.SchoolWalkMinutes
	case "potential_growth_rating":
		return l.PotentialGrowthRating
	case "renovation_needed_rating":
		return l.RenovationNeededRating
	case "operating_cost":
		return l.OperatingCost
	case "balcony_terrace":
		if l.BalconyTerrace == nil {
			return nil
		}
		v := 0.0
		if *l.BalconyTerrace {
			v = 1.0
		}
		return &v
	default:
		return nil
	}
}

// CategoricalField returns the raw categorical value for a criterion name,
// or nil when absent or when the criterion is not categorical.
func (l *Listing) CategoricalField(name string) *string {
	switch name {
	case "energy_class":
		return l.EnergyClass
	case "condition":
		return l.Condition
	default:
		return nil
	}
}

// DeliveredTo reports whether the listing has already been sent on the
// given channel, according to the flags loaded from the store.
func (l *Listing) DeliveredTo(ch Channel) bool {
	return l.Delivered[ch]
}

// Float64 returns a pointer to v. Convenience for building listings with
// optional fields.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
