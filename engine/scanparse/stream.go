package scanparse

import (
	"encoding/json"
	"fmt"
	"io"
)

// walkTopLevelArray decodes r as a top-level JSON object, streaming through
// each element of the array found at key without ever materialising the
// full document. Non-matching keys are skipped (their values are decoded
// into a throwaway RawMessage, which consumes exactly one JSON value
// regardless of shape). Returns whether key was found.
func walkTopLevelArray(r io.Reader, key string, onItem func(json.RawMessage) error) (bool, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return false, fmt.Errorf("scanparse: read opening token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false, fmt.Errorf("scanparse: expected top-level object, got %v", tok)
	}

	found := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return found, fmt.Errorf("scanparse: read key: %w", err)
		}
		name, _ := keyTok.(string)

		if name != key {
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return found, fmt.Errorf("scanparse: skip key %q: %w", name, err)
			}
			continue
		}

		found = true
		arrTok, err := dec.Token()
		if err != nil {
			return found, fmt.Errorf("scanparse: read array open for %q: %w", key, err)
		}
		if d, ok := arrTok.(json.Delim); !ok || d != '[' {
			// Tolerate a non-array value at this key (e.g. null) by skipping it.
			continue
		}
		for dec.More() {
			var item json.RawMessage
			if err := dec.Decode(&item); err != nil {
				return found, fmt.Errorf("scanparse: decode item in %q: %w", key, err)
			}
			if err := onItem(item); err != nil {
				return found, err
			}
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return found, fmt.Errorf("scanparse: read array close for %q: %w", key, err)
		}
	}
	return found, nil
}

// walkRootArray streams a document whose top level IS a JSON array (COCO
// results files ship this way, unlike COCO annotation files).
func walkRootArray(r io.Reader, onItem func(json.RawMessage) error) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("scanparse: read opening token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("scanparse: expected top-level array, got %v", tok)
	}
	for dec.More() {
		var item json.RawMessage
		if err := dec.Decode(&item); err != nil {
			return fmt.Errorf("scanparse: decode item: %w", err)
		}
		if err := onItem(item); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return fmt.Errorf("scanparse: read array close: %w", err)
	}
	return nil
}
