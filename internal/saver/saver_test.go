package saver_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/saver"
)

func series() market.Series {
	d := decimal.RequireFromString
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return market.NewSeries("AAPL", market.Interval1d, market.SourcePolygon, []market.Bar{
		{Timestamp: t0, Open: d("179.55"), High: d("180.53"), Low: d("177.38"), Close: d("179.66"), Volume: d("73563082")},
		{Timestamp: t0.AddDate(0, 0, 3), Open: d("176.15"), High: d("176.9"), Low: d("173.79"), Close: d("175.1"), Volume: d("81510101")},
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, f := range saver.Formats() {
		sv, err := saver.New(f)
		require.NoError(t, err)
		require.Equal(t, f, sv.Extension())
	}
	_, err := saver.New("xlsx")
	require.ErrorIs(t, err, saver.ErrUnsupportedFormat)
}

func TestJSONSaver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, saver.JSONSaver{}.Save(&buf, series()))

	var got market.Series
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.True(t, series().Equal(got))
}

func TestCSVSaver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, saver.CSVSaver{}.Save(&buf, series()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, []string{"timestamp", "time", "open", "high", "low", "close", "volume"}, recs[0])
	require.Equal(t, []string{"1709251200000", "2024-03-01T00:00:00Z", "179.55", "180.53", "177.38", "179.66", "73563082"}, recs[1])
}

func TestYAMLSaver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, saver.YAMLSaver{}.Save(&buf, series()))

	var doc struct {
		Symbol string `yaml:"symbol"`
		Bars   []struct {
			Close string `yaml:"close"`
		} `yaml:"bars"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "AAPL", doc.Symbol)
	require.Len(t, doc.Bars, 2)
	require.Equal(t, "175.1", doc.Bars[1].Close)
}

func TestParquetSaverFile(t *testing.T) {
	t.Parallel()

	// Arrange
	path := filepath.Join(t.TempDir(), "aapl.parquet")

	// Act
	require.NoError(t, saver.SaveFile(saver.ParquetSaver{}, path, series()))

	// Assert
	got, err := parquet.ReadFile[saver.Row](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1709251200000), got[0].Timestamp)
	require.InDelta(t, 175.1, got[1].Close, 1e-9)
}

func TestWriteRaw(t *testing.T) {
	t.Parallel()

	var pretty bytes.Buffer
	require.NoError(t, saver.WriteRaw(&pretty, provider.Payload{Body: []byte(`{"a":1}`)}))
	require.Equal(t, "{\n  \"a\": 1\n}\n", pretty.String())

	var plain bytes.Buffer
	require.NoError(t, saver.WriteRaw(&plain, provider.Payload{Body: []byte("not json")}))
	require.Equal(t, "not json", plain.String())
}

func TestSaveFileCreateError(t *testing.T) {
	t.Parallel()

	err := saver.SaveFile(saver.JSONSaver{}, filepath.Join(t.TempDir(), "missing", "x.json"), series())

	require.ErrorIs(t, err, os.ErrNotExist)
}
