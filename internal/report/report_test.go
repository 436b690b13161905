package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() models.Results {
	return models.Results{
		Title:        "smoke test",
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalThreads: 10,
		SuccessCount: 9,
		FailureCount: 1,
		SuccessRate:  90,
		MinMs:        5,
		MaxMs:        200,
		MeanMs:       42.5,
		P50Ms:        30,
		P95Ms:        150,
		TotalTimeMs:  2000,
		Waves: []models.WaveStats{
			{Wave: 1, SuccessCount: 5, FailureCount: 0, P95Ms: 100},
			{Wave: 2, SuccessCount: 4, FailureCount: 1, P95Ms: 150},
		},
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")

	results := sampleResults()
	require.NoError(t, WriteJSON(results, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.Results
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, results.Title, decoded.Title)
	assert.Equal(t, results.SuccessCount, decoded.SuccessCount)
	assert.Len(t, decoded.Waves, 2)
}

func TestWriteJSONEmptyPathIsNoop(t *testing.T) {
	t.Parallel()
	assert.NoError(t, WriteJSON(sampleResults(), ""))
}

func TestPrintSummaryDoesNotPanic(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { PrintSummary(sampleResults()) })
}

func TestFormatMsSwitchesUnits(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "500ms", formatMs(500))
	assert.Equal(t, "1.5s", formatMs(1500))
}
