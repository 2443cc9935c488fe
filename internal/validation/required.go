package validation

import (
	"bytes"
	"encoding/json"
)

const MsgNoJSONBody = "No JSON body provided"

// RequiredFields checks that body is a JSON object holding a truthy value for
// every key. null, "", 0, false, [] and {} all count as missing.
func RequiredFields(body []byte, keys ...string) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return newError(MsgNoJSONBody)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil || len(data) == 0 {
		return newError(MsgNoJSONBody)
	}

	for _, key := range keys {
		raw, ok := data[key]
		if !ok || !truthy(raw) {
			return newError("Missing required field: %s", key)
		}
	}
	return nil
}

// RequiredQuery checks that every key is present in the query string.
func RequiredQuery(has func(key string) bool, keys ...string) error {
	for _, key := range keys {
		if !has(key) {
			return newError("Missing required query parameter: %s", key)
		}
	}
	return nil
}

func truthy(raw json.RawMessage) bool {
	switch s := string(bytes.TrimSpace(raw)); s {
	case "", "null", "false", `""`, "[]", "{}":
		return false
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && s[0] != '"' {
			f, err := n.Float64()
			return err != nil || f != 0
		}
		return !isBlankContainer(s)
	}
}

func isBlankContainer(s string) bool {
	if len(s) < 2 {
		return false
	}
	if (s[0] == '[' && s[len(s)-1] == ']') || (s[0] == '{' && s[len(s)-1] == '}') {
		return len(bytes.TrimSpace([]byte(s[1:len(s)-1]))) == 0
	}
	return false
}
