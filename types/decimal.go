package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexFloat accepts a JSON number or a numeric string such as "200.00".
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) Float64() float64 { return float64(f) }

// FlexFloatPtr converts an optional FlexFloat into an optional float64.
func FlexFloatPtr(f *FlexFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// FlexTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type FlexTime struct {
	time.Time
}

var flexTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range flexTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("%q is not a valid date", s)
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

// FlexTimePtr returns nil for a missing or empty date.
func FlexTimePtr(t *FlexTime) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
