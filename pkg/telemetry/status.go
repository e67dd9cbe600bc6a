package telemetry

import "fmt"

// LinkStatus is the outcome of the most recent meter poll.
type LinkStatus uint8

const (
	LinkOK             LinkStatus = 0 // answer received and verified
	LinkNoAnswer       LinkStatus = 1 // request echoed, meter silent
	LinkCRCError       LinkStatus = 2 // payload checksum mismatch
	LinkAnswerMismatch LinkStatus = 3 // echo or frame shape does not fit the request
	LinkNoEcho         LinkStatus = 4 // not even the request echo arrived
)

var linkStatusText = map[LinkStatus]string{
	LinkOK:             "Link OK",
	LinkNoAnswer:       "No answer",
	LinkCRCError:       "CRC error",
	LinkAnswerMismatch: "Answer error",
	LinkNoEcho:         "No request echo",
}

// String returns the text shown to the operator.
func (s LinkStatus) String() string {
	if t, ok := linkStatusText[s]; ok {
		return t
	}
	return fmt.Sprintf("LinkStatus(%d)", uint8(s))
}

var linkStatusNames = map[LinkStatus]string{
	LinkOK:             "ok",
	LinkNoAnswer:       "no-answer",
	LinkCRCError:       "crc-error",
	LinkAnswerMismatch: "answer-mismatch",
	LinkNoEcho:         "no-echo",
}

// Name returns a short machine readable identifier.
func (s LinkStatus) Name() string {
	if n, ok := linkStatusNames[s]; ok {
		return n
	}
	return "invalid"
}

// Code returns the numeric status as used on the display and in metrics.
func (s LinkStatus) Code() uint8 {
	return uint8(s)
}

// LinkStatuses lists every status in code order.
var LinkStatuses = []LinkStatus{LinkOK, LinkNoAnswer, LinkCRCError, LinkAnswerMismatch, LinkNoEcho}
