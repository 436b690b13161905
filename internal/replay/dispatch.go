package replay

import (
	"context"
	"fmt"

	"github.com/amr9/crossloadgen/pkg/models"
)

// EndpointHandler services one replayed event.
type EndpointHandler func(ctx context.Context, ev models.TraceEvent) error

// Handlers binds a callback to each of the five known endpoint/method pairs
// spec.md §9 names. A nil field means that endpoint's events are dropped
// (counted as unknown, not aborted).
type Handlers struct {
	DatePicker       EndpointHandler // GET /date-picker
	PostPickerStatus EndpointHandler // POST /postPickerStatus
	Crossword        EndpointHandler // GET /crossword
	Plays            EndpointHandler // POST /api/v1/plays
	Puzzles          EndpointHandler // GET /api/v1/puzzles
}

// ErrUnknownEndpoint is returned (never as an abort signal, only for the
// caller to count) when an event names an endpoint/method pair outside the
// five known ones.
type ErrUnknownEndpoint struct {
	Method   string
	Endpoint string
}

func (e *ErrUnknownEndpoint) Error() string {
	return fmt.Sprintf("unknown endpoint: %s %s", e.Method, e.Endpoint)
}

// Dispatch routes ev to the handler for its (method, endpoint) pair. This is
// a closed sum over the five known pairs, not open-ended reflection: an
// unrecognized pair returns *ErrUnknownEndpoint so the caller can record it
// without treating replay as failed.
func Dispatch(ctx context.Context, h Handlers, ev models.TraceEvent) error {
	switch {
	case ev.Method == "GET" && ev.Endpoint == "/date-picker":
		return call(h.DatePicker, ctx, ev)
	case ev.Method == "POST" && ev.Endpoint == "/postPickerStatus":
		return call(h.PostPickerStatus, ctx, ev)
	case ev.Method == "GET" && ev.Endpoint == "/crossword":
		return call(h.Crossword, ctx, ev)
	case ev.Method == "POST" && ev.Endpoint == "/api/v1/plays":
		return call(h.Plays, ctx, ev)
	case ev.Method == "GET" && ev.Endpoint == "/api/v1/puzzles":
		return call(h.Puzzles, ctx, ev)
	default:
		return &ErrUnknownEndpoint{Method: ev.Method, Endpoint: ev.Endpoint}
	}
}

func call(h EndpointHandler, ctx context.Context, ev models.TraceEvent) error {
	if h == nil {
		return &ErrUnknownEndpoint{Method: ev.Method, Endpoint: ev.Endpoint}
	}
	return h(ctx, ev)
}
