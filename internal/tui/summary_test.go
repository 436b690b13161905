package tui

import (
	"testing"

	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindOfParsesClassifiedPrefix(t *testing.T) {
	t.Parallel()
	assert.Equal(t, models.ErrTransport, errorKindOf("transport: dial tcp [IP]:[PORT]: connect: connection refused"))
	assert.Equal(t, models.ErrSessionUnavailable, errorKindOf("session-unavailable: load token fetch failed"))
	assert.Equal(t, models.ErrorKind(""), errorKindOf("no colon here"))
}

func TestFirstErrorKindReturnsEarliestFailingStep(t *testing.T) {
	t.Parallel()
	rec := models.CompletionRecord{
		Result: models.JourneyResult{
			Step1: models.StepResult{Success: true},
			Step2: models.StepResult{Success: false, Error: "protocol: unexpected status 500"},
			Step3: models.StepResult{Success: false, Error: "parse: missing params script"},
		},
	}
	assert.Equal(t, models.ErrProtocol, firstErrorKind(rec))
}

func TestFailureKindCountsSkipsSuccesses(t *testing.T) {
	t.Parallel()
	records := []models.CompletionRecord{
		{Result: models.JourneyResult{Success: true}},
		{Result: models.JourneyResult{Success: false, Step1: models.StepResult{Error: "logic: unexpected play state"}}},
		{Result: models.JourneyResult{Success: false, Step1: models.StepResult{Error: "logic: unexpected play state"}}},
	}
	counts := failureKindCounts(records)
	assert.Equal(t, 2, counts[models.ErrLogic])
	assert.Len(t, counts, 1)
}
