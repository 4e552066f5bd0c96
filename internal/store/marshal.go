package store

import (
	"fmt"

	"github.com/roach88/bassline/internal/ir"
)

// marshalPayload converts an IR value to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalPayload(v ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back into an IR value.
// Large integers survive because ir.UnmarshalIRValue decodes numbers via
// json.Number.
func unmarshalPayload(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return v, nil
}

func unmarshalAction(data string) (ir.Action, error) {
	v, err := unmarshalPayload(data)
	if err != nil {
		return nil, err
	}
	return ir.ActionFromIR(v)
}

func unmarshalEvent(data string) (ir.Event, error) {
	v, err := unmarshalPayload(data)
	if err != nil {
		return nil, err
	}
	return ir.EventFromIR(v)
}

func unmarshalBassline(data string) (ir.Bassline, error) {
	v, err := unmarshalPayload(data)
	if err != nil {
		return ir.Bassline{}, err
	}
	return ir.BasslineFromIR(v)
}
