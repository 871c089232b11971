package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// SplitExtra returns the top-level JSON fields of data that v's struct tags do
// not declare, so records can carry unknown fields through a load/save cycle.
func SplitExtra(data []byte, v any) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := jsonFields(v)
	var extra map[string]any
	for k, msg := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		var val any
		if err := json.Unmarshal(msg, &val); err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}
	return extra, nil
}

// MergeExtra adds extra fields to an encoded JSON object without overriding
// declared ones.
func MergeExtra(data []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return data, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// YAMLToJSON converts a YAML document to JSON so records need only one decoder.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("empty document")
	}
	return json.Marshal(doc)
}

// Normalize returns data as JSON regardless of the source extension.
func Normalize(data []byte, ext string) ([]byte, error) {
	if ext == ".yaml" || ext == ".yml" {
		return YAMLToJSON(data)
	}
	return data, nil
}

func jsonFields(v any) map[string]struct{} {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = struct{}{}
	}
	return out
}
