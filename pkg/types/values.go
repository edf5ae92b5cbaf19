package types

import (
	"encoding/json"
	"fmt"
)

// Values is a loosely typed entity document as accepted by the conductor.
// Keys follow the persisted field names (snake_case).
type Values map[string]interface{}

// Configs maps an applicable target (a service or "general") to its
// config-name -> value pairs.
type Configs map[string]map[string]interface{}

// Get returns the value for target/key and whether it was set
func (c Configs) Get(target, key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	section, ok := c[target]
	if !ok {
		return nil, false
	}
	v, ok := section[key]
	return v, ok
}

// GetString returns the value for target/key formatted as a string
func (c Configs) GetString(target, key string) (string, bool) {
	v, ok := c.Get(target, key)
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// MergeConfigs applies overrides on top of a copy of defaults, target by
// target. Keys absent from an override section keep their default value and
// targets present only in overrides are taken as they are. Neither argument
// is modified.
func MergeConfigs(defaults, overrides Configs) Configs {
	result := make(Configs, len(defaults)+len(overrides))
	for target, section := range defaults {
		merged := make(map[string]interface{}, len(section))
		for k, v := range section {
			merged[k] = v
		}
		result[target] = merged
	}

	for target, section := range overrides {
		merged, ok := result[target]
		if !ok {
			merged = make(map[string]interface{}, len(section))
			result[target] = merged
		}
		for k, v := range section {
			merged[k] = v
		}
	}

	return result
}

// Decode converts a Values document into a typed entity
func Decode(values Values, out interface{}) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode values: %w", err)
	}
	return nil
}

// Encode converts a typed entity into a Values document
func Encode(in interface{}) (Values, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var values Values
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	return values, nil
}

// ConfigsFromValue converts a loosely typed config document (as found
// inside Values) into Configs. Unknown shapes yield nil.
func ConfigsFromValue(v interface{}) Configs {
	switch c := v.(type) {
	case Configs:
		return c
	case map[string]map[string]interface{}:
		return Configs(c)
	case map[string]interface{}:
		out := make(Configs, len(c))
		for target, section := range c {
			switch s := section.(type) {
			case map[string]interface{}:
				out[target] = s
			case Values:
				out[target] = map[string]interface{}(s)
			}
		}
		return out
	case Values:
		return ConfigsFromValue(map[string]interface{}(c))
	}
	return nil
}
