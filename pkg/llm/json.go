package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips code fences and surrounding prose from a model reply
// and returns the outermost JSON object or array, or "" if there is none.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	objStart, objEnd := strings.Index(response, "{"), strings.LastIndex(response, "}")
	arrStart, arrEnd := strings.Index(response, "["), strings.LastIndex(response, "]")

	switch {
	case arrStart >= 0 && arrEnd > arrStart && (objStart < 0 || arrStart < objStart):
		return response[arrStart : arrEnd+1]
	case objStart >= 0 && objEnd > objStart:
		return response[objStart : objEnd+1]
	default:
		return ""
	}
}

// DecodeJSON extracts and unmarshals the JSON payload of a model reply.
func DecodeJSON(response string, v any) error {
	content := ExtractJSON(response)
	if content == "" {
		return fmt.Errorf("no JSON found in response")
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	return nil
}
