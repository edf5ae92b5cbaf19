package domain

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// FileFormat is the on-disk syntax of a rendered config file
type FileFormat int

const (
	// FormatXML is the Hadoop <configuration><property> layout
	FormatXML FileFormat = iota
	// FormatProperties is Java key=value properties
	FormatProperties
	// FormatEnv is a shell script of export statements
	FormatEnv
)

func (f FileFormat) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatProperties:
		return "properties"
	case FormatEnv:
		return "env"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

type property struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type configuration struct {
	XMLName    xml.Name   `xml:"configuration"`
	Properties []property `xml:"property"`
}

// propertySpace is the whitespace a properties line may use as a
// separator. A value starting with one of propertyEscaped is written with a
// backslash in front.
const (
	propertySpace   = " \t\f"
	propertyEscaped = propertySpace + `\`
)

// Render serialises values in format with keys in sorted order
func Render(format FileFormat, values map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	switch format {
	case FormatXML:
		conf := configuration{Properties: make([]property, 0, len(keys))}
		for _, k := range keys {
			conf.Properties = append(conf.Properties, property{Name: k, Value: values[k]})
		}
		buf.WriteString(xml.Header)
		buf.WriteString(`<?xml-stylesheet type="text/xsl" href="configuration.xsl"?>` + "\n")
		enc := xml.NewEncoder(&buf)
		enc.Indent("", "  ")
		if err := enc.Encode(conf); err != nil {
			return nil, fmt.Errorf("failed to render xml config: %w", err)
		}
		buf.WriteString("\n")
	case FormatProperties:
		for _, k := range keys {
			v := values[k]
			if v != "" && strings.ContainsRune(propertyEscaped, rune(v[0])) {
				v = `\` + v
			}
			fmt.Fprintf(&buf, "%s=%s\n", k, v)
		}
	case FormatEnv:
		for _, k := range keys {
			fmt.Fprintf(&buf, "export %s=%q\n", k, values[k])
		}
	default:
		return nil, fmt.Errorf("unknown config format %s", format)
	}
	return buf.Bytes(), nil
}

// Parse reads a config file back into its key/value pairs. Empty input
// yields an empty map.
func Parse(format FileFormat, data []byte) (map[string]string, error) {
	values := make(map[string]string)
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}

	switch format {
	case FormatXML:
		var conf configuration
		if err := xml.Unmarshal(data, &conf); err != nil {
			return nil, fmt.Errorf("failed to parse xml config: %w", err)
		}
		for _, p := range conf.Properties {
			values[strings.TrimSpace(p.Name)] = p.Value
		}
	case FormatProperties:
		// Whitespace before a value is a separator; trailing whitespace
		// belongs to the value.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimLeft(scanner.Text(), propertySpace)
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
				continue
			}
			i := strings.IndexAny(line, "=:")
			if i < 0 {
				values[strings.TrimSpace(line)] = ""
				continue
			}
			value := strings.TrimLeft(line[i+1:], propertySpace)
			if len(value) > 1 && value[0] == '\\' && strings.ContainsRune(propertyEscaped, rune(value[1])) {
				value = value[1:]
			}
			values[strings.TrimSpace(line[:i])] = value
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	case FormatEnv:
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			line = strings.TrimPrefix(line, "export ")
			i := strings.Index(line, "=")
			if i < 0 {
				continue
			}
			values[strings.TrimSpace(line[:i])] = unquote(strings.TrimSpace(line[i+1:]))
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown config format %s", format)
	}
	return values, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' && v[len(v)-1] == '"' || v[0] == '\'' && v[len(v)-1] == '\'') {
		inner := v[1 : len(v)-1]
		if v[0] == '"' {
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
		}
		return inner
	}
	return v
}

// MergeFile applies desired on top of the keys already present in existing
// and re-renders the result. Keys the service does not manage are kept.
// changed reports whether any desired value differs from what the file
// held.
func MergeFile(format FileFormat, existing []byte, desired map[string]string) (rendered []byte, changed bool, err error) {
	current, err := Parse(format, existing)
	if err != nil {
		return nil, false, err
	}
	for k, v := range desired {
		if old, ok := current[k]; !ok || old != v {
			changed = true
		}
		current[k] = v
	}
	rendered, err = Render(format, current)
	if err != nil {
		return nil, false, err
	}
	return rendered, changed, nil
}
