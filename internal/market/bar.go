package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV record. Timestamp is the UTC start of the bar.
type Bar struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Open      decimal.Decimal `json:"open" yaml:"open"`
	High      decimal.Decimal `json:"high" yaml:"high"`
	Low       decimal.Decimal `json:"low" yaml:"low"`
	Close     decimal.Decimal `json:"close" yaml:"close"`
	Volume    decimal.Decimal `json:"volume" yaml:"volume"`
}

var (
	ErrNegativeValue  = errors.New("negative value")
	ErrBrokenOrdering = errors.New("low/high do not bound open and close")
	ErrZeroTimestamp  = errors.New("missing timestamp")
)

// Validate checks non-negativity and Low <= min(Open, Close) <= max(Open, Close) <= High.
func (b Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	for name, v := range map[string]decimal.Decimal{
		"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close, "volume": b.Volume,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%s %s: %w", name, v, ErrNegativeValue)
		}
	}
	lo := decimal.Min(b.Open, b.Close)
	hi := decimal.Max(b.Open, b.Close)
	if b.Low.GreaterThan(lo) || b.High.LessThan(hi) {
		return fmt.Errorf("o=%s h=%s l=%s c=%s: %w", b.Open, b.High, b.Low, b.Close, ErrBrokenOrdering)
	}
	return nil
}
