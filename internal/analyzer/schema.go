package analyzer

import (
	"fmt"
	"reflect"
	"strings"

	"google.golang.org/genai"
)

// SchemaFor derives a Gemini response schema from a Go type. Struct fields
// are named by their json tag, described by their desc tag and all marked
// required; property order follows field order.
func SchemaFor(t reflect.Type) (*genai.Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return &genai.Schema{Type: genai.TypeString}, nil
	case reflect.Bool:
		return &genai.Schema{Type: genai.TypeBoolean}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &genai.Schema{Type: genai.TypeInteger}, nil
	case reflect.Float32, reflect.Float64:
		return &genai.Schema{Type: genai.TypeNumber}, nil
	case reflect.Slice, reflect.Array:
		items, err := SchemaFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return &genai.Schema{Type: genai.TypeArray, Items: items}, nil
	case reflect.Struct:
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, t.NumField()),
		}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := jsonName(field)
			if name == "-" {
				continue
			}
			prop, err := SchemaFor(field.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
			}
			prop.Description = field.Tag.Get("desc")
			schema.Properties[name] = prop
			schema.Required = append(schema.Required, name)
			schema.PropertyOrdering = append(schema.PropertyOrdering, name)
		}
		return schema, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}
