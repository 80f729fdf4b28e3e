package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"time"
	"unicode/utf8"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	numericRegex = regexp.MustCompile(`^[0-9]+$`)
)

// Required rejects zero values.
var Required = newRule(func(v any) error {
	if isZeroValue(v) {
		return fmt.Errorf("is required")
	}
	return nil
})

// Email accepts strings shaped like an e-mail address.
var Email = newRule(func(v any) error {
	s, ok := v.(string)
	if !ok || !emailRegex.MatchString(s) {
		return fmt.Errorf("invalid email format")
	}
	return nil
})

// Numeric accepts strings made only of ASCII digits.
var Numeric = newRule(func(v any) error {
	s, ok := v.(string)
	if !ok || !numericRegex.MatchString(s) {
		return fmt.Errorf("must contain only digits")
	}
	return nil
})

// MinLen checks the rune length of a string. Non-strings pass.
func MinLen(min int) Rule {
	return newRule(func(v any) error {
		s, ok := v.(string)
		if ok && utf8.RuneCountInString(s) < min {
			return fmt.Errorf("length must be at least %d", min)
		}
		return nil
	})
}

// MaxLen checks the rune length of a string. Non-strings pass.
func MaxLen(max int) Rule {
	return newRule(func(v any) error {
		s, ok := v.(string)
		if ok && utf8.RuneCountInString(s) > max {
			return fmt.Errorf("length must be at most %d", max)
		}
		return nil
	})
}

// Range checks a numeric value (ints, uints, floats, durations) against [min, max].
func Range(min, max float64) Rule {
	return newRule(func(v any) error {
		val, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("must be numeric")
		}
		if val < min || val > max {
			return fmt.Errorf("value must be between %v and %v", min, max)
		}
		return nil
	})
}

// In accepts values equal to one of the listed values.
func In(values ...any) Rule {
	return newRule(func(v any) error {
		for _, allowed := range values {
			if reflect.DeepEqual(v, allowed) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", values)
	})
}

// Datetime accepts strings parseable with the given time layout, and time.Time values.
func Datetime(layout string) Rule {
	return newRule(func(v any) error {
		switch t := v.(type) {
		case time.Time:
			return nil
		case string:
			if _, err := time.Parse(layout, t); err != nil {
				return fmt.Errorf("invalid datetime format, expected %s", layout)
			}
			return nil
		}
		return fmt.Errorf("invalid datetime format")
	})
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
