package profile

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode turns a loosely typed payload (as produced by an LLM) into a
// normalized Profile. Numbers and booleans in text fields are converted to
// strings, a single value where a list is expected becomes a one-element list.
func Decode(data map[string]any) (*Profile, error) {
	p := &Profile{}
	if err := decodeInto(data, p); err != nil {
		return nil, err
	}
	Normalize(p)
	return p, nil
}

// Parse validates raw JSON against the schema and decodes it.
func Parse(raw []byte) (*Profile, error) {
	if err := ValidatePayload(raw); err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal profile payload: %w", err)
	}

	return Decode(data)
}

func decodeInto(data any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return fmt.Errorf("create profile decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}

	return nil
}
