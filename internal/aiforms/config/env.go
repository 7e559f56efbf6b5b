package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
)

// LookupFunc источник переменных окружения, совместим с os.LookupEnv
type LookupFunc func(key string) (string, bool)

// loadEnv заполняет поля структуры s, помеченные тегом env. Пустые и отсутствующие переменные пропускаются.
// Все некорректные значения собираются в одну ошибку.
func loadEnv(s any, lookup LookupFunc) error {
	v := reflect.ValueOf(s).Elem()
	t := v.Type()

	var errs []error
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		name, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}

		raw, ok := lookup(name)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}

		if err := setField(v.Field(i), raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		slog.Info("Set config value",
			slog.String("key", name),
			slog.String("value", maskSecret(field.Name, raw)),
		)
	}
	return errors.Join(errs...)
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("expected integer, got %q", raw)
		}
		f.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", raw)
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

var secretMarkers = []string{"pass", "secret", "token", "key"}

// maskSecret скрывает в логах значения паролей и ключей, оставляя первый и последний символ
func maskSecret(fieldName, value string) string {
	name := strings.ToLower(fieldName)
	secret := false
	for _, m := range secretMarkers {
		if strings.Contains(name, m) {
			secret = true
			break
		}
	}
	if !secret {
		return value
	}
	if len(value) <= 2 {
		return strings.Repeat("*", len(value))
	}
	return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
}
