package config

import (
	"os"
	"reflect"
	"strconv"
)

// resolveConfig overlays environment variables onto a config struct.
// Fields opt in with an `env` tag; unset variables leave defaults alone.
func resolveConfig(config any) {
	v := reflect.ValueOf(config).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("env")
		if key == "" {
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}

		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Bool:
			if b, err := strconv.ParseBool(raw); err == nil {
				field.SetBool(b)
			}
		case reflect.Int:
			if n, err := strconv.Atoi(raw); err == nil {
				field.SetInt(int64(n))
			}
		case reflect.Float64:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				field.SetFloat(f)
			}
		}
	}
}
