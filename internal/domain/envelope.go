package domain

import (
	"encoding/json"
	"fmt"
)

// JobEnvelope is the JSON body carried by every job message
type JobEnvelope struct {
	ID        string          `json:"id"`
	ClassName string          `json:"class_name"`
	Params    json.RawMessage `json:"params"`
}

// DecodeEnvelope parses a delivery body. Bodies that are not valid JSON objects
// or carry no class_name yield ErrDroppableMessage.
func DecodeEnvelope(body []byte) (*JobEnvelope, error) {
	var env JobEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDroppableMessage, err)
	}
	if env.ClassName == "" {
		return nil, fmt.Errorf("%w: missing class_name", ErrDroppableMessage)
	}
	return &env, nil
}
