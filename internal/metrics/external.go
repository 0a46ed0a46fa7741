package metrics

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"
)

var boardSegment = regexp.MustCompile(`^/boards/[^/]+`)

// RecordExternalAPICall records one attempt against the Trello API. A zero
// status code means the request never got a response.
func (m *Metrics) RecordExternalAPICall(endpoint, method string, statusCode int, duration time.Duration, err error) {
	m.safeExecute("RecordExternalAPICall", func() {
		endpoint = normalizeEndpoint(endpoint)
		status := strconv.Itoa(statusCode)

		m.ExternalAPIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
		m.ExternalAPIRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())

		if err != nil || statusCode >= 400 {
			m.ExternalAPIErrors.WithLabelValues(endpoint, getErrorType(statusCode, err)).Inc()
		}
	})
}

// normalizeEndpoint drops the board id so label cardinality stays bounded.
func normalizeEndpoint(endpoint string) string {
	return boardSegment.ReplaceAllString(endpoint, "/boards/:id")
}

func getErrorType(statusCode int, err error) string {
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "timeout"
		case errors.Is(err, context.Canceled):
			return "canceled"
		default:
			return "network"
		}
	}
	switch {
	case statusCode == 429:
		return "rate_limited"
	case statusCode == 401 || statusCode == 403:
		return "unauthorized"
	case statusCode == 404:
		return "not_found"
	case statusCode >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}
