package domain

import (
	"reflect"
	"time"
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// Rubric snapshots, published results, and audit before/after images are
// all built from deep copies so that callers holding references can never
// mutate engine-owned state.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v.Interface()
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return v.Interface()
		}
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			if copiedValue == nil {
				// A nil interface value, as seen in audit before/after maps.
				newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.Zero(v.Type().Elem()))
				continue
			}
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// Shallow copy for unexported fields, deep copy for exported ones.
		newStruct := reflect.New(v.Type()).Elem()
		newStruct.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if !newStruct.Field(i).CanSet() {
				continue
			}
			if copied := deepCopyValue(v.Field(i).Interface()); copied != nil {
				newStruct.Field(i).Set(reflect.ValueOf(copied))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}
