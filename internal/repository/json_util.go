package repository

import "encoding/json"

// marshalJSONB encodes v for a jsonb column; nil maps become SQL NULL.
func marshalJSONB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// unmarshalMap decodes a jsonb column into a map, tolerating NULL.
func unmarshalMap(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// unmarshalStrings decodes a jsonb array column, tolerating NULL.
func unmarshalStrings(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var s []string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	return s
}
