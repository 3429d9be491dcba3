package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cperrin88/grinder/pkg/errors"
)

// SetValue sets a scalar configuration value by its YAML key. Keys under
// settings are addressed without a prefix, e.g. "retries" or "log_level".
// The result is not validated; call Validate before saving.
func (c *Config) SetValue(key, value string) error {
	field, ok := c.field(key)
	if !ok {
		return errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}

	switch field.Interface().(type) {
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		field.SetInt(int64(d))
		return nil
	case []string:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		field.SetInt(int64(intVal))
	default:
		return errors.Wrapf(errors.ErrUnknownConfigKey, "%s is not a scalar", key)
	}
	return nil
}

// GetValue returns a configuration value by its YAML key.
func (c *Config) GetValue(key string) (string, error) {
	field, ok := c.field(key)
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}
	return format(field), nil
}

// ToMap returns every scalar setting keyed by its YAML name.
// This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	for _, key := range Keys() {
		field, _ := c.field(key)
		result[key] = format(field)
	}
	return result
}

// Keys lists the keys accepted by GetValue and SetValue, sorted.
func Keys() []string {
	var keys []string
	collect(reflect.TypeOf(Config{}), func(key string, _ []int) {
		keys = append(keys, key)
	})
	sort.Strings(keys)
	return keys
}

func (c *Config) field(key string) (reflect.Value, bool) {
	var index []int
	collect(reflect.TypeOf(Config{}), func(k string, idx []int) {
		if k == key {
			index = idx
		}
	})
	if index == nil {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(c).Elem().FieldByIndex(index), true
}

// collect walks the scalar fields of t and its nested settings structs.
func collect(t reflect.Type, fn func(key string, index []int)) {
	var walk func(t reflect.Type, prefix []int)
	walk = func(t reflect.Type, prefix []int) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := strings.Split(f.Tag.Get("yaml"), ",")[0]
			if key == "" || key == "-" {
				continue
			}
			index := append(append([]int(nil), prefix...), i)
			switch {
			case f.Type.Kind() == reflect.Struct:
				walk(f.Type, index)
			case f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() != reflect.String:
				// channels are edited in the file
			default:
				fn(key, index)
			}
		}
	}
	walk(t, nil)
}

func format(v reflect.Value) string {
	switch val := v.Interface().(type) {
	case time.Duration:
		return val.String()
	case []string:
		return strings.Join(val, ",")
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
