package logger

import (
	"reflect"

	"go.uber.org/zap/zapcore"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const hidden = "***"

// MarshalSanitizedObject writes the exported fields of a struct to enc. Only fields tagged log:"true"
// are written as is; every other field is replaced by a placeholder so secrets never reach the log.
func MarshalSanitizedObject(v any, enc zapcore.ObjectEncoder) error {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return xerrors.Errorf("cannot marshal object of kind %v, only struct type is supported", val.Kind())
	}
	return marshalStructFields(val, enc)
}

func marshalStructFields(val reflect.Value, enc zapcore.ObjectEncoder) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		value := val.Field(i)
		if !value.CanInterface() {
			continue
		}
		if field.Tag.Get("log") != "true" {
			enc.AddString(field.Name, hidden)
			continue
		}
		if err := marshalField(field.Name, value, enc); err != nil {
			return xerrors.Errorf("cannot marshal field %v: %w", field.Name, err)
		}
	}
	return nil
}

func marshalField(name string, value reflect.Value, enc zapcore.ObjectEncoder) error {
	switch value.Kind() {
	case reflect.Ptr:
		if value.IsNil() {
			enc.AddString(name, "nil")
			return nil
		}
		return marshalField(name, value.Elem(), enc)
	case reflect.Struct:
		return enc.AddObject(name, zapcore.ObjectMarshalerFunc(func(inner zapcore.ObjectEncoder) error {
			return marshalStructFields(value, inner)
		}))
	case reflect.String:
		enc.AddString(name, value.String())
	case reflect.Bool:
		enc.AddBool(name, value.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		enc.AddInt64(name, value.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		enc.AddUint64(name, value.Uint())
	case reflect.Float32, reflect.Float64:
		enc.AddFloat64(name, value.Float())
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Interface:
		return enc.AddReflected(name, value.Interface())
	default:
		enc.AddString(name, "***SKIPPED***")
	}
	return nil
}
