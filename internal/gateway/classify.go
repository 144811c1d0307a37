package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/yourorg/market-data-sync/internal/model"
)

// kindPatterns maps error kinds to message substrings, checked in order.
// Timeout is matched before network so "i/o timeout" classifies as timeout.
var kindPatterns = []struct {
	kind     model.ErrorKind
	patterns []string
}{
	{model.ErrKindTimeout, []string{
		"timeout", "timed out", "deadline exceeded",
	}},
	{model.ErrKindAPILimit, []string{
		"too many requests", "rate limit", "quota exceeded",
		"api limit", "frequency limit", "status code 429",
	}},
	{model.ErrKindAuth, []string{
		"authentication failed", "invalid token", "unauthorized",
		"permission denied", "access denied",
		"status code 401", "status code 403",
	}},
	{model.ErrKindStorage, []string{
		"database", "sql:", "sqlstate", "constraint", "pq:",
		"connection pool", "no such table",
	}},
	{model.ErrKindNetwork, []string{
		"connection refused", "connection reset", "no such host",
		"network is unreachable", "broken pipe", "eof",
		"upstream request failed",
	}},
	{model.ErrKindData, []string{
		"invalid data", "data format", "parsing error", "json decode",
		"validation error", "unmarshal", "malformed",
		"invalid quote", "missing field",
	}},
}

// Classify maps a caught failure onto the error taxonomy. Typed checks run
// first; the message text is matched as a fallback.
func Classify(err error) model.ErrorKind {
	if err == nil {
		return model.ErrKindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return model.ErrKindTimeout
		}
		return model.ErrKindNetwork
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return model.ErrKindData
	}

	msg := strings.ToLower(err.Error())
	for _, kp := range kindPatterns {
		for _, p := range kp.patterns {
			if strings.Contains(msg, p) {
				return kp.kind
			}
		}
	}

	return model.ErrKindUnknown
}
