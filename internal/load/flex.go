package load

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// The ERP API serializes numbers inconsistently: sometimes as JSON
// numbers, sometimes as quoted strings, sometimes as empty strings.
// These scalar types absorb every variant at the decode boundary so
// the transformers work with plain Go values.

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*i = 0
		return nil
	}
	*i = flexInt(v)
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if string(trimmed) == "null" {
		*s = ""
		return nil
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		var unquoted string
		if err := unmarshalString(trimmed, &unquoted); err != nil {
			return err
		}
		*s = flexString(unquoted)
		return nil
	}
	*s = flexString(trimmed)
	return nil
}

func unmarshalString(b []byte, out *string) error {
	unquoted, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	*out = unquoted
	return nil
}

// parseBRDate converts the ERP's dd/mm/yyyy date format. Returns nil
// for empty or unparseable input; dates are informational columns and
// a bad one must not fail the row.
func parseBRDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return nil
	}
	return &t
}
