package repository

import (
	"encoding/json"
	"errors"
	"reflect"
)

// MapToObject maps a stored document to a typed struct. Documents are held as
// generic values; the JSON round-trip keeps the mapping honest with the
// struct tags used everywhere else.
func MapToObject(doc interface{}, obj interface{}) error {
	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return errors.New("obj is not a pointer to a struct")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, obj)
}
