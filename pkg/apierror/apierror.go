package apierror

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// APIError is a request the backend rejected. The backend answers either with
// a generic {"detail": "..."} body or with a per-field message map such as
// {"username": ["already taken"]}; both shapes land here.
type APIError struct {
	HTTPStatus int
	Detail     string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Detail != "" {
		return e.Detail
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for key := range e.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(e.Fields[key], "; ")))
		}

		return strings.Join(parts, ", ")
	}

	return fmt.Sprintf("request failed with status %d", e.HTTPStatus)
}

// HasFields reports whether the error carries per-field messages a form can
// attach to its inputs.
func (e *APIError) HasFields() bool {
	return e != nil && len(e.Fields) > 0
}

func New(status int, detail string) *APIError {
	return &APIError{HTTPStatus: status, Detail: detail}
}

// Decode builds an APIError from a rejected response body. Bodies that match
// neither known shape degrade to a status-only error rather than failing.
func Decode(status int, body []byte) *APIError {
	apiErr := &APIError{HTTPStatus: status}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}

	if detail, ok := raw["detail"]; ok {
		var message string
		if err := json.Unmarshal(detail, &message); err == nil {
			apiErr.Detail = message
			return apiErr
		}
	}

	fields := map[string][]string{}
	for key, value := range raw {
		var many []string
		if err := json.Unmarshal(value, &many); err == nil {
			fields[key] = many
			continue
		}

		var one string
		if err := json.Unmarshal(value, &one); err == nil {
			fields[key] = []string{one}
		}
	}

	if len(fields) > 0 {
		apiErr.Fields = fields
	}

	return apiErr
}
