package repl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// parseLine splits a command line into the command word and its arguments.
func parseLine(input string) (string, []string) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}

// parseInlineArgs interprets key=value tokens as tool arguments. Values
// that parse as JSON scalars keep their type; everything else is a string.
func parseInlineArgs(tokens []string) (map[string]interface{}, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	args := make(map[string]interface{}, len(tokens))
	for _, token := range tokens {
		key, value, found := strings.Cut(token, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("argument %q is not of the form key=value", token)
		}
		args[key] = coerceValue(value)
	}
	return args, nil
}

// coerceValue turns a raw string into a typed scalar when it looks like one.
func coerceValue(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// askFunc reads one line of user input for the given prompt.
type askFunc func(prompt string) (string, error)

// promptForArguments walks a tool's input schema and asks for each property
// in turn, required fields first. Empty answers skip optional fields;
// answers are coerced by the property's declared type.
func promptForArguments(schema mcp.ToolInputSchema, ask askFunc) (map[string]interface{}, error) {
	if len(schema.Properties) == 0 {
		return nil, nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	args := make(map[string]interface{})
	for _, name := range names {
		prop, _ := schema.Properties[name].(map[string]interface{})
		label := name
		if desc, ok := prop["description"].(string); ok && desc != "" {
			label = fmt.Sprintf("%s (%s)", name, desc)
		}
		if !required[name] {
			label += " [optional]"
		}

		answer, err := ask(label + ": ")
		if err != nil {
			return nil, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			if required[name] {
				return nil, fmt.Errorf("argument %s is required", name)
			}
			continue
		}

		propType, _ := prop["type"].(string)
		value, err := convertByType(answer, propType)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		args[name] = value
	}

	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}

// convertByType parses raw input according to a JSON schema type name.
func convertByType(raw, propType string) (interface{}, error) {
	switch propType {
	case "integer":
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return i, nil
	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return f, nil
	case "boolean":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}
