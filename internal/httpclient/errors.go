package httpclient

import "regexp"

// Connection-tuple patterns strip ephemeral local ports from dial/transport
// errors before they land in a CompletionRecord, so e.g. "dial tcp
// 127.0.0.1:54321->10.0.0.5:443: connect: connection refused" collapses to
// "dial tcp [CONN_TUPLE]: connect: connection refused" instead of one
// distinct error string per ephemeral port.
var (
	rePortPair   = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+->\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+`)
	reSinglePort = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+`)
)

func sanitizeTransportError(err error) string {
	msg := err.Error()
	msg = rePortPair.ReplaceAllString(msg, "[CONN_TUPLE]")
	msg = reSinglePort.ReplaceAllString(msg, "[IP]:[PORT]")
	return msg
}
