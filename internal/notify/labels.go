// Package notify builds deduplicated dashboard notifications from probe
// outcomes and holds the status label table shared with incidents.
package notify

import (
	"strconv"

	"github.com/ahmetk3436/markops/internal/models"
)

// TimeoutCode is the cause code used when a probe got no response at all.
const TimeoutCode = "T/O"

var statusLabels = map[int]string{
	301: "Moved Permanently",
	302: "Found (Redirect)",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	410: "Gone",
	429: "Too Many Requests",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// StatusLabel renders a human label for code, "HTTP {code}" when unknown.
func StatusLabel(code int) string {
	if l, ok := statusLabels[code]; ok {
		return l
	}
	return "HTTP " + strconv.Itoa(code)
}

// CauseCode is the numeric status as text, or T/O when code is nil.
func CauseCode(code *int) string {
	if code == nil {
		return TimeoutCode
	}
	return strconv.Itoa(*code)
}

// CauseLabel is the label for code, "Connection Timeout" when code is nil.
func CauseLabel(code *int) string {
	if code == nil {
		return "Connection Timeout"
	}
	return StatusLabel(*code)
}

// Cause is the short incident cause, e.g. "Status 503" or "Status T/O".
func Cause(code *int) string {
	return "Status " + CauseCode(code)
}

func SeverityFor(code int) models.Severity {
	switch {
	case code >= 500:
		return models.SeverityCritical
	case code >= 400:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}
