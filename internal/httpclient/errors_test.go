package httpclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTransportErrorCollapsesConnTuple(t *testing.T) {
	t.Parallel()
	err := errors.New("dial tcp 127.0.0.1:54321->10.0.0.5:443: connect: connection refused")
	assert.Equal(t, "dial tcp [CONN_TUPLE]: connect: connection refused", sanitizeTransportError(err))
}

func TestSanitizeTransportErrorCollapsesSingleAddr(t *testing.T) {
	t.Parallel()
	err := errors.New("dial tcp 10.0.0.5:443: i/o timeout")
	assert.Equal(t, "dial tcp [IP]:[PORT]: i/o timeout", sanitizeTransportError(err))
}
