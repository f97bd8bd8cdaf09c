package domain

import (
	"encoding/json"
	"fmt"
)

// EncodeFields turns a typed entity into a document field bag. The id key is dropped.
func EncodeFields(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// DecodeDocument fills a typed entity from a document, including its id
func DecodeDocument(doc Document, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", doc.Path(), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", doc.Path(), err)
	}
	return nil
}

// DecodeDocuments decodes a snapshot into a typed slice, skipping nothing
func DecodeDocuments[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := DecodeDocument(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
