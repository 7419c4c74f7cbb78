package normalize

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"marketfeed/internal/market"
)

// Envelope schemas only pin down the containers. Individual records are
// checked one by one so a single bad row never rejects the batch.
var envelopes = map[market.Source]string{
	market.SourceAlphaVantage: `{
		"type": "object",
		"required": ["Meta Data"],
		"properties": {"Meta Data": {"type": "object"}},
		"patternProperties": {
			"Time Series": {"type": "object", "additionalProperties": {"type": "object"}}
		},
		"minProperties": 2
	}`,
	market.SourcePolygon: `{
		"type": "object",
		"required": ["results"],
		"properties": {
			"ticker": {"type": "string"},
			"results": {"type": "array", "items": {"type": "object"}}
		}
	}`,
	market.SourceBinance: `{
		"type": "object",
		"required": ["klines"],
		"properties": {
			"symbol": {"type": "string"},
			"klines": {"type": "array"}
		}
	}`,
	market.SourceYahoo: `{
		"type": "object",
		"required": ["chart"],
		"properties": {
			"chart": {
				"type": "object",
				"required": ["result"],
				"properties": {
					"result": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["indicators"],
							"properties": {
								"timestamp": {"type": "array"},
								"indicators": {
									"type": "object",
									"required": ["quote"],
									"properties": {"quote": {"type": "array", "minItems": 1}}
								}
							}
						}
					}
				}
			}
		}
	}`,
}

func compileEnvelopes() (map[market.Source]*jsonschema.Schema, error) {
	out := make(map[market.Source]*jsonschema.Schema, len(envelopes))
	for src, doc := range envelopes {
		s, err := jsonschema.CompileString(fmt.Sprintf("%s.json", src), doc)
		if err != nil {
			return nil, fmt.Errorf("compiling %s envelope schema: %w", src, err)
		}
		out[src] = s
	}
	return out, nil
}
