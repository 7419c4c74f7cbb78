package market

import (
	"encoding/json"
	"slices"
)

// Series is an immutable, time-ordered run of bars for one symbol and interval.
type Series struct {
	Symbol   string
	Interval Interval
	Source   Source
	bars     []Bar
}

// NewSeries copies bars, which the caller must already have sorted ascending
// with unique timestamps.
func NewSeries(symbol string, interval Interval, source Source, bars []Bar) Series {
	return Series{
		Symbol:   symbol,
		Interval: interval,
		Source:   source,
		bars:     slices.Clone(bars),
	}
}

func (s Series) Len() int { return len(s.bars) }

func (s Series) Empty() bool { return len(s.bars) == 0 }

func (s Series) At(i int) Bar { return s.bars[i] }

// Bars returns a copy of the bars.
func (s Series) Bars() []Bar { return slices.Clone(s.bars) }

// Last returns the newest bar.
func (s Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Tail keeps the newest n bars. n <= 0 or n >= Len returns s unchanged.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s.bars) {
		return s
	}
	return Series{Symbol: s.Symbol, Interval: s.Interval, Source: s.Source, bars: s.bars[len(s.bars)-n:]}
}

func (s Series) Equal(o Series) bool {
	if s.Symbol != o.Symbol || s.Interval != o.Interval || s.Source != o.Source || len(s.bars) != len(o.bars) {
		return false
	}
	for i := range s.bars {
		a, b := s.bars[i], o.bars[i]
		if !a.Timestamp.Equal(b.Timestamp) ||
			!a.Open.Equal(b.Open) || !a.High.Equal(b.High) ||
			!a.Low.Equal(b.Low) || !a.Close.Equal(b.Close) ||
			!a.Volume.Equal(b.Volume) {
			return false
		}
	}
	return true
}

type seriesJSON struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
	Source   Source   `json:"source"`
	Bars     []Bar    `json:"bars"`
}

func (s Series) MarshalJSON() ([]byte, error) {
	bars := s.bars
	if bars == nil {
		bars = []Bar{}
	}
	return json.Marshal(seriesJSON{Symbol: s.Symbol, Interval: s.Interval, Source: s.Source, Bars: bars})
}

func (s *Series) UnmarshalJSON(b []byte) error {
	var raw seriesJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Series{Symbol: raw.Symbol, Interval: raw.Interval, Source: raw.Source, bars: raw.Bars}
	return nil
}
