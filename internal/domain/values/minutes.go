package values

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReportPrecision is the number of decimal places used by every minutes or
// story point figure in the result sets. Violations use whole minutes.
const ReportPrecision int32 = 2

var nanosPerMinute = decimal.NewFromInt(int64(time.Minute))

// Minutes represents an elapsed time in fractional minutes (total_seconds / 60)
type Minutes struct {
	amount decimal.Decimal
}

// MinutesOf converts a duration into minutes without losing precision
func MinutesOf(d time.Duration) Minutes {
	return Minutes{amount: decimal.NewFromInt(int64(d)).Div(nanosPerMinute)}
}

// NewMinutes creates Minutes from a float64 amount
func NewMinutes(amount float64) Minutes {
	return Minutes{amount: decimal.NewFromFloat(amount)}
}

// MeanMinutes returns total/n in minutes. ok is false when n is zero so that
// callers never report an empty group as a zero duration.
func MeanMinutes(total time.Duration, n int) (m Minutes, ok bool) {
	if n <= 0 {
		return Minutes{}, false
	}
	return Minutes{amount: MinutesOf(total).amount.Div(decimal.NewFromInt(int64(n)))}, true
}

// Decimal returns the underlying decimal amount
func (m Minutes) Decimal() decimal.Decimal {
	return m.amount
}

// Float64 returns the unrounded amount
func (m Minutes) Float64() float64 {
	return m.amount.InexactFloat64()
}

// Round returns the amount rounded half away from zero to the given places
func (m Minutes) Round(places int32) float64 {
	return m.amount.Round(places).InexactFloat64()
}

// Reported returns the amount rounded to ReportPrecision
func (m Minutes) Reported() float64 {
	return m.Round(ReportPrecision)
}

// Whole returns the amount rounded to the nearest integer minute
func (m Minutes) Whole() int64 {
	return m.amount.Round(0).IntPart()
}

// Hours converts the amount to hours
func (m Minutes) Hours() float64 {
	return m.amount.Div(decimal.NewFromInt(60)).InexactFloat64()
}

// Exceeds reports whether the amount is strictly greater than limit minutes
func (m Minutes) Exceeds(limit float64) bool {
	return m.amount.GreaterThan(decimal.NewFromFloat(limit))
}

// Add returns the sum of two amounts
func (m Minutes) Add(other Minutes) Minutes {
	return Minutes{amount: m.amount.Add(other.amount)}
}

// IsNegative reports whether the amount is below zero
func (m Minutes) IsNegative() bool {
	return m.amount.IsNegative()
}

// String returns the amount with ReportPrecision fixed decimals
func (m Minutes) String() string {
	return m.amount.StringFixed(ReportPrecision)
}

// MarshalJSON renders the reported (rounded) amount
func (m Minutes) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Reported())
}

// Round rounds a plain float half away from zero to the given places
func Round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

// Mean accumulates a sum and a count so partial means can be merged by
// weight instead of averaging averages.
type Mean struct {
	sum   decimal.Decimal
	count int
}

// Add records one sample
func (a *Mean) Add(v float64) {
	a.sum = a.sum.Add(decimal.NewFromFloat(v))
	a.count++
}

// Merge folds another accumulator into this one
func (a *Mean) Merge(other Mean) {
	a.sum = a.sum.Add(other.sum)
	a.count += other.count
}

// Count returns the number of samples
func (a Mean) Count() int {
	return a.count
}

// Value returns the mean. ok is false when no sample was recorded.
func (a Mean) Value() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.sum.Div(decimal.NewFromInt(int64(a.count))).InexactFloat64(), true
}

// Reported returns the mean rounded to ReportPrecision, or nil when empty
func (a Mean) Reported() *float64 {
	if a.count == 0 {
		return nil
	}
	v := a.sum.Div(decimal.NewFromInt(int64(a.count))).Round(ReportPrecision).InexactFloat64()
	return &v
}
