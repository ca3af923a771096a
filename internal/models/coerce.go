package models

import (
	"fmt"

	"github.com/spf13/cast"
)

// FieldString renders a stored field or a request value as the string that
// filters compare against. Booleans become "true"/"false", numbers use their
// shortest decimal form and nil becomes "".
func FieldString(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// ParseOpen coerces a request value to the open flag. Only a native true or
// the string "true" mean open.
func ParseOpen(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
