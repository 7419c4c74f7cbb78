package saver

import (
	"io"

	"gopkg.in/yaml.v3"

	"marketfeed/internal/market"
)

type yamlDoc struct {
	Symbol   string          `yaml:"symbol"`
	Interval market.Interval `yaml:"interval"`
	Source   market.Source   `yaml:"source"`
	Bars     []market.Bar    `yaml:"bars"`
}

type YAMLSaver struct{}

func (YAMLSaver) Extension() string { return "yaml" }

func (YAMLSaver) Save(w io.Writer, s market.Series) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDoc{Symbol: s.Symbol, Interval: s.Interval, Source: s.Source, Bars: s.Bars()}); err != nil {
		return err
	}
	return enc.Close()
}
