package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrEmptySymbol = errors.New("empty ticker symbol")

// Kind classifies a failure so the view never has to look at status codes.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindBadRequest Kind = "bad_request"
	KindServer     Kind = "server"
	KindTransport  Kind = "transport"
	KindUpstream   Kind = "upstream"
)

// Messages shown to the user for each failure class. KindUpstream shows the
// service's own text instead.
var messages = map[Kind]string{
	KindValidation: "Enter a ticker symbol (e.g. AAPL).",
	KindNotFound:   "Ticker not found. Check the symbol and try again.",
	KindBadRequest: "The signal service rejected the request.",
	KindServer:     "The signal service is having trouble. Please try again later.",
	KindTransport:  "Failed to reach the signal service. Check your connection.",
}

// Error is the uniform failure returned by Client. Message is safe to show.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Detail)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MessageOf returns the user facing text for err.
func MessageOf(err error) string {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Message
	}
	return messages[KindTransport]
}

// KindOf returns the class of err, KindTransport for foreign errors.
func KindOf(err error) Kind {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind
	}
	return KindTransport
}

func newError(kind Kind, status int, detail string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: messages[kind], Detail: detail, Err: cause}
}

// upstreamError carries a 2xx body's own error text unchanged.
func upstreamError(status int, text string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: text}
}

// statusError classifies a non-2xx response. The body is only mined for
// a detail to log.
func statusError(status int, body []byte) *Error {
	detail := bodyError(body)
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return newError(KindNotFound, status, detail, nil)
	case status >= 500:
		return newError(KindServer, status, detail, nil)
	case status >= 400:
		return newError(KindBadRequest, status, detail, nil)
	default:
		return newError(KindTransport, status, detail, nil)
	}
}

// bodyError extracts {"error": ...} or FastAPI's {"detail": ...}.
func bodyError(body []byte) string {
	var envelope struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error != "" {
		return envelope.Error
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		return detail
	}
	return string(envelope.Detail)
}
