package api

import (
	"encoding/json"
	"net/http"

	dErrors "atlas/pkg/domain-errors"
)

// The backend returns FastAPI-style error envelopes: "detail" is either
// a plain string or a list of validation objects carrying "msg". Both
// shapes are folded into a domain error here so callers only ever see
// one error vocabulary.

type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// decodeAPIError translates a non-2xx response into a domain error.
func decodeAPIError(status int, body []byte) error {
	return dErrors.New(statusToCode(status), detailMessage(body))
}

func detailMessage(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}

func statusToCode(status int) dErrors.Code {
	switch status {
	case http.StatusBadRequest:
		return dErrors.CodeBadRequest
	case http.StatusUnauthorized:
		return dErrors.CodeUnauthorized
	case http.StatusForbidden:
		return dErrors.CodeForbidden
	case http.StatusNotFound:
		return dErrors.CodeNotFound
	case http.StatusConflict:
		return dErrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return dErrors.CodeValidation
	case http.StatusTooManyRequests:
		return dErrors.CodeRateLimited
	case http.StatusGatewayTimeout:
		return dErrors.CodeTimeout
	default:
		return dErrors.CodeInternal
	}
}
