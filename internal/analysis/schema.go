package analysis

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

type decodeFailure int

const (
	missingKey decodeFailure = iota
	typeMismatch
	valueNotFound
	dataCorrupted
)

// DecodeError classifies why an analysis document does not match its schema.
type DecodeError struct {
	failure  decodeFailure
	Path     string
	Expected string
}

func (e *DecodeError) Error() string {
	switch e.failure {
	case missingKey:
		return "Missing key: " + e.Path
	case typeMismatch:
		return fmt.Sprintf("Type mismatch for %s at %s", e.Expected, e.Path)
	case valueNotFound:
		return fmt.Sprintf("Value not found for %s at %s", e.Expected, e.Path)
	default:
		return "Data corrupted at " + e.Path
	}
}

// checkShape walks doc alongside the Go type t and reports the first field
// that is absent, null or of the wrong JSON kind. Every field is required.
func checkShape(doc gjson.Result, t reflect.Type, path string) *DecodeError {
	switch t.Kind() {
	case reflect.Struct:
		if !doc.IsObject() {
			return mismatch(path, "object")
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := jsonKey(f)
			if key == "" {
				continue
			}
			fieldPath := joinPath(path, key)
			v := doc.Get(key)
			if !v.Exists() {
				return &DecodeError{failure: missingKey, Path: fieldPath}
			}
			if v.Type == gjson.Null {
				return &DecodeError{failure: valueNotFound, Path: fieldPath, Expected: kindName(f.Type)}
			}
			if err := checkShape(v, f.Type, fieldPath); err != nil {
				return err
			}
		}
	case reflect.Slice:
		if !doc.IsArray() {
			return mismatch(path, "array")
		}
		for i, el := range doc.Array() {
			elPath := path + "[" + strconv.Itoa(i) + "]"
			if el.Type == gjson.Null {
				return &DecodeError{failure: valueNotFound, Path: elPath, Expected: kindName(t.Elem())}
			}
			if err := checkShape(el, t.Elem(), elPath); err != nil {
				return err
			}
		}
	case reflect.String:
		if doc.Type != gjson.String {
			return mismatch(path, "string")
		}
	case reflect.Int, reflect.Int64:
		if doc.Type != gjson.Number || doc.Num != math.Trunc(doc.Num) {
			return mismatch(path, "integer")
		}
	case reflect.Float64:
		if doc.Type != gjson.Number {
			return mismatch(path, "number")
		}
	}
	return nil
}

func mismatch(path, expected string) *DecodeError {
	if path == "" {
		path = "root"
	}
	return &DecodeError{failure: typeMismatch, Path: path, Expected: expected}
}

func jsonKey(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Struct:
		return "object"
	case reflect.Slice:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int64:
		return "integer"
	default:
		return "number"
	}
}
