package transport

import "net/http"

// Class distinguishes transient failures (worth retrying) from permanent
// ones (propagate immediately). It mirrors the ConfigError/InputError/
// TransientTransportError/PermanentTransportError taxonomy: Class only
// covers the transport layer's own two kinds, the wider taxonomy is layered
// on top by callers.
type Class int

const (
	ClassPermanent Class = iota
	ClassTransient
)

func (c Class) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// retriableStatus is the fixed set of HTTP statuses §4.3 designates
// transient: request timeouts, rate limiting, and upstream 5xx.
var retriableStatus = map[int]bool{
	http.StatusRequestTimeout:       true,
	http.StatusTooManyRequests:      true,
	http.StatusInternalServerError:  true,
	http.StatusBadGateway:           true,
	http.StatusServiceUnavailable:   true,
	http.StatusGatewayTimeout:       true,
}

// Classify reports whether the given error/status pair is transient. A
// non-nil err with no associated response (i.e. statusCode == 0) is always
// treated as a network-level failure and classified transient — timeouts
// and connection errors are the two cases that matter in practice.
func Classify(err error, statusCode int) Class {
	if err != nil && statusCode == 0 {
		return ClassTransient
	}
	if retriableStatus[statusCode] {
		return ClassTransient
	}
	return ClassPermanent
}
