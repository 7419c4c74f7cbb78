package market

import (
	"errors"
	"fmt"
	"strings"
)

// MaxLimit caps the number of bars one request may ask for.
const MaxLimit = 5000

// Request asks for the newest Limit bars of Symbol at Interval.
type Request struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
	Limit    int      `json:"limit"`
	Source   Source   `json:"source"`
}

var ErrInvalidRequest = errors.New("invalid request")

func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	case !r.Interval.Valid():
		return fmt.Errorf("%w: interval %q", ErrInvalidRequest, r.Interval)
	case r.Limit <= 0 || r.Limit > MaxLimit:
		return fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidRequest, r.Limit, MaxLimit)
	case !r.Source.Valid():
		return fmt.Errorf("%w: source %q", ErrInvalidRequest, r.Source)
	}
	return nil
}

func (r Request) String() string {
	return fmt.Sprintf("%s/%s/%s limit=%d", r.Symbol, r.Interval, r.Source, r.Limit)
}
