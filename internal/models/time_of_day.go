package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay wraps a clock time with no date or zone, backed by a Postgres
// TIME column.
type TimeOfDay struct{ time.Time }

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Time: time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC)}
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	return t, t.parse(s)
}

// Scan accepts time.Time or a "HH:MM[:SS]" string from the driver.
func (t *TimeOfDay) Scan(v any) error {
	switch x := v.(type) {
	case time.Time:
		t.Time = x
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("time of day: unsupported Scan type %T", v)
	}
}

func (t *TimeOfDay) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) == 5 { // "HH:MM"
		s += ":00"
	}
	tt, err := time.Parse("15:04:05", s)
	if err != nil {
		return err
	}
	t.Time = tt
	return nil
}

// Value sends "HH:MM:SS" so the TIME column understands it.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.Format("15:04:05"), nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format("15:04"))
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.parse(s)
}
