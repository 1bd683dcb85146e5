package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// tree returns cfg in its JSON object form, keyed by section then field.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath returns the value at a dot path such as "api.baseUrl", a whole
// section such as "watch", or a list element such as "watch.extensions.0".
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid list index %q in %s", key, path)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("%s: %s is not a section", path, key)
		}
	}
	return current, nil
}

// SetByPath sets the field at "section.key" from its command-line text.
// Booleans and numbers are parsed, lists take a comma-separated string
// ("pdf, csv"). Unknown keys are rejected. The result is not validated.
func SetByPath(cfg *Config, path, value string) error {
	section, key, ok := strings.Cut(path, ".")
	if !ok || key == "" || strings.Contains(key, ".") {
		return fmt.Errorf("config paths have the form section.key, got %q", path)
	}
	m, err := tree(cfg)
	if err != nil {
		return err
	}
	fields, ok := m[section].(map[string]any)
	if !ok {
		return fmt.Errorf("unknown config section: %s", section)
	}

	converted, err := convertValue(fields[key], value)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fields[key] = converted

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	updated := *cfg
	if err := dec.Decode(&updated); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*cfg = updated
	return nil
}

// convertValue parses s according to the type of the current value. A key
// missing from the tree (an empty optional string) is set as text.
func convertValue(current any, s string) (any, error) {
	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", s)
		}
		return b, nil
	case float64:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", s)
		}
		return n, nil
	default:
		return s, nil
	}
}

// Sanitize returns a copy of the config with the password in api.baseUrl
// masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.Watch.Extensions = append(ExtensionList(nil), cfg.Watch.Extensions...)
	c.API.BaseURL = maskURL(c.API.BaseURL)
	return &c
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if pw, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), maskString(pw))
	}
	return u.String()
}

// maskString keeps the first and last 4 characters of long secrets.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns every section.key path with its current value.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	result := make(map[string]any)
	for section, v := range m {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for key, val := range fields {
			result[section+"."+key] = val
		}
	}
	return result
}
