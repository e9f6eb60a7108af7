package oracle

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Outcome classifies a raw oracle reply.
type Outcome int

const (
	// OutcomeObject: the reply was a JSON object.
	OutcomeObject Outcome = iota
	// OutcomeEmpty: the oracle returned blank text.
	OutcomeEmpty
	// OutcomeMalformed: text was returned but it is not a JSON object.
	OutcomeMalformed
	// OutcomeFailed: the call itself failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeObject:
		return "object"
	case OutcomeEmpty:
		return "empty"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Response is a parsed oracle reply. Field lookups on anything other than
// OutcomeObject report every field as absent.
type Response struct {
	Outcome Outcome
	Raw     string
	Err     error

	fields map[string]json.RawMessage
}

// Parse never fails: transport errors, blank text and non-object text each map
// to their own Outcome.
func Parse(raw string, err error) Response {
	if err != nil {
		return Response{Outcome: OutcomeFailed, Raw: raw, Err: err}
	}

	body := stripFence(strings.TrimSpace(raw))
	if body == "" {
		return Response{Outcome: OutcomeEmpty, Raw: raw}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil || fields == nil {
		return Response{Outcome: OutcomeMalformed, Raw: raw, Err: err}
	}
	return Response{Outcome: OutcomeObject, Raw: raw, fields: fields}
}

// stripFence removes a surrounding ```json fence some models add even in JSON mode.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (r Response) OK() bool { return r.Outcome == OutcomeObject }

// Has reports whether key is present, even when its value is null.
func (r Response) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// String returns the value of key as text. Strings are returned as-is,
// numbers and booleans as their literal JSON text. Missing keys, null and
// nested values are absent.
func (r Response) String(key string) *string {
	raw, ok := r.fields[key]
	if !ok {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return &s
	case 't', 'f':
		s := string(raw)
		return &s
	case 'n', '{', '[':
		return nil
	default:
		s := string(raw)
		return &s
	}
}
