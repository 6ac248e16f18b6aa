package tool

import (
	"reflect"
	"strings"

	"github.com/plenum-ai/plenum/service/provider"
)

// definition derives a model-facing tool definition from a method signature
// by reflecting over its input struct.
func definition(service string, sig *Signature) provider.Tool {
	properties := map[string]interface{}{}
	var required []string

	if inputType := structType(sig.Input); inputType != nil {
		for i := 0; i < inputType.NumField(); i++ {
			field := inputType.Field(i)
			if field.PkgPath != "" {
				continue
			}
			name, optional, skip := jsonName(field)
			if skip {
				continue
			}
			property := map[string]interface{}{"type": schemaType(field.Type)}
			if desc := field.Tag.Get("description"); desc != "" {
				property["description"] = desc
			}
			properties[name] = property
			if !optional {
				required = append(required, name)
			}
		}
	}
	return provider.Tool{
		Name:        WireName(service, sig.Name),
		Description: sig.Description,
		Properties:  properties,
		Required:    required,
	}
}

func structType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func jsonName(field reflect.StructField) (name string, optional, skip bool) {
	name = strings.ToLower(field.Name[:1]) + field.Name[1:]
	tag := field.Tag.Get("json")
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" {
		return "", false, true
	}
	if parts[0] != "" {
		name = parts[0]
	}
	for _, part := range parts[1:] {
		if part == "omitempty" {
			optional = true
		}
	}
	return name, optional, false
}

func schemaType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
