package market

import (
	"fmt"
	"strings"
)

// Source names a data provider. SourceAuto asks for the configured fallback order.
type Source string

const (
	SourceAlphaVantage Source = "alpha_vantage"
	SourcePolygon      Source = "polygon"
	SourceBinance      Source = "binance"
	SourceYahoo        Source = "yahoo"
	SourceAuto         Source = "auto"
)

var sourceAliases = map[string]Source{
	"alpha_vantage": SourceAlphaVantage,
	"alphavantage":  SourceAlphaVantage,
	"polygon":       SourcePolygon,
	"binance":       SourceBinance,
	"ccxt":          SourceBinance,
	"yahoo":         SourceYahoo,
	"yfinance":      SourceYahoo,
	"auto":          SourceAuto,
	"":              SourceAuto,
}

// Sources lists the concrete providers in their default fallback order.
func Sources() []Source {
	return []Source{SourceAlphaVantage, SourcePolygon, SourceBinance, SourceYahoo}
}

func ParseSource(s string) (Source, error) {
	src, ok := sourceAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return src, nil
}

func (s Source) Valid() bool {
	switch s {
	case SourceAlphaVantage, SourcePolygon, SourceBinance, SourceYahoo, SourceAuto:
		return true
	}
	return false
}

func (s Source) String() string { return string(s) }
