package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ValidationErrors is a map of field names to their validation errors.
type ValidationErrors map[string][]error

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		for _, err := range v[field] {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", field, err))
		}
	}
	return sb.String()
}

// Rule is the interface for a single validation rule.
type Rule interface {
	Validate(value any) error
	Msg(msg string) Rule
	Optional() Rule
	When(fn func(value any) bool) Rule
}

// rule is the shared implementation behind every constructor in rules.go.
type rule struct {
	check    func(value any) error
	msg      string
	optional bool
	when     func(value any) bool
}

func newRule(check func(value any) error) Rule {
	return &rule{check: check}
}

func (r *rule) Validate(value any) error {
	if r.when != nil && !r.when(value) {
		return nil
	}
	if r.optional && isZeroValue(value) {
		return nil
	}
	if err := r.check(value); err != nil {
		if r.msg != "" {
			return errors.New(r.msg)
		}
		return err
	}
	return nil
}

func (r *rule) Msg(msg string) Rule         { nr := *r; nr.msg = msg; return &nr }
func (r *rule) Optional() Rule              { nr := *r; nr.optional = true; return &nr }
func (r *rule) When(fn func(any) bool) Rule { nr := *r; nr.when = fn; return &nr }

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// Rules is a map of field names to validation rules.
type Rules map[string][]Rule

// Validate checks the named fields of a struct or pointer to struct.
// Field names missing from the struct are ignored.
func (r Rules) Validate(value any) error {
	if value == nil {
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("validator: value must be a struct or pointer to struct")
	}

	errs := make(ValidationErrors)
	for fieldName, rules := range r {
		field := rv.FieldByName(fieldName)
		if !field.IsValid() {
			continue
		}

		val := field.Interface()
		for _, rule := range rules {
			if err := rule.Validate(val); err != nil {
				errs[fieldName] = append(errs[fieldName], err)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FirstMsg returns the first message of a ValidationErrors in field order,
// or err's message for any other error.
func FirstMsg(err error) string {
	if err == nil {
		return ""
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for f := range ve {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if len(ve[f]) > 0 {
				return fmt.Sprintf("%s: %v", f, ve[f][0])
			}
		}
	}
	return err.Error()
}
