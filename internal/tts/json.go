package tts

import (
	"encoding/json"
	"fmt"
)

// parseJSON parses JSON data into the target interface.
func parseJSON(data []byte, target any, what string) error {
	err := json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}

	return nil
}

// marshalJSON encodes a provider request body.
func marshalJSON(source any, what string) ([]byte, error) {
	data, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	return data, nil
}
