package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/chitchat/internal/ir"
)

// marshalPayload converts an event payload to canonical JSON TEXT for storage.
// The stored text is exactly the payload fed to ir.EventDigest.
func marshalPayload(e ir.ChangeEvent) (string, error) {
	obj, err := e.PayloadObject()
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses stored payload TEXT into the kind-specific field of e.
func unmarshalPayload(e *ir.ChangeEvent, data string) error {
	switch e.Kind {
	case ir.EventSent:
		var p ir.SentPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fmt.Errorf("unmarshal sent payload: %w", err)
		}
		e.Sent = &p
	case ir.EventEdited:
		var p ir.EditedPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fmt.Errorf("unmarshal edited payload: %w", err)
		}
		e.Edited = &p
	case ir.EventDeleted:
		if data != "{}" {
			return fmt.Errorf("unmarshal deleted payload: want {}, got %s", data)
		}
	default:
		return fmt.Errorf("unmarshal payload: unknown kind %q", e.Kind)
	}
	return nil
}
