package persistence

import (
	"bytes"
	"encoding/gob"
	"reflect"
)

// EncodeValue serializes arbitrary Go values using encoding/gob.
// Callers must ensure that values are gob-encodable; concrete types stored
// in run inputs/outputs must be registered with gob.Register.
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	// Encode as interface{} so the payload can be decoded back into
	// interface{} without knowing the concrete type up front.
	var iv = v
	if err := enc.Encode(&iv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue decodes a payload produced by EncodeValue. For a nil/empty
// payload it returns the zero value of T.
func DecodeValue[T any](data []byte) (T, error) {
	var zero T
	if len(data) == 0 {
		return zero, nil
	}

	var iv any
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&iv); err != nil {
		return zero, err
	}
	if v, ok := iv.(T); ok {
		return v, nil
	}
	if isInterfaceType[T]() {
		return any(iv).(T), nil
	}
	return zero, &DecodeTypeError{Got: reflect.TypeOf(iv), Want: reflect.TypeOf(zero)}
}

// DecodeTypeError reports a payload whose dynamic type does not match the
// requested target type.
type DecodeTypeError struct {
	Got  reflect.Type
	Want reflect.Type
}

func (e *DecodeTypeError) Error() string {
	return "gob: decoded payload of type " + typeName(e.Got) + " not assignable to " + typeName(e.Want)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func isInterfaceType[T any]() bool {
	return reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Interface
}
