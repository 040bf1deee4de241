package agent

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// NonJSONMessage accompanies a final answer that could not be decoded.
const NonJSONMessage = "Agent finished with a non-JSON response."

// ParseFinalAnswer decodes the agent's final answer. Strict JSON is tried first,
// then, for text that looks like an object or array, a repair pass and a
// lenient Hjson parse. Anything else is returned raw under a diagnostic envelope.
func ParseFinalAnswer(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}

	candidate := stripFences(text)
	if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "[") {
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v
		}
		if repaired, err := jsonrepair.RepairJSON(candidate); err == nil {
			if err := json.Unmarshal([]byte(repaired), &v); err == nil {
				return v
			}
		}
		if lenient, ok := parseHjson(candidate); ok {
			return lenient
		}
	}

	return map[string]any{
		"message": NonJSONMessage,
		"output":  text,
	}
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:] // language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseHjson decodes Hjson and round-trips it through encoding/json so callers
// see the same value types as for strict JSON.
func parseHjson(text string) (any, bool) {
	var raw any
	if err := hjson.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, false
	}
	return v, true
}
