package candidate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Field identifies one of the seven pieces of candidate information collected per session.
type Field int

const (
	FullName Field = iota
	EmailAddress
	PhoneNumber
	YearsOfExperience
	DesiredPositions
	CurrentLocation
	TechStack
)

// Fields lists every field in display and storage order.
var Fields = []Field{
	FullName,
	EmailAddress,
	PhoneNumber,
	YearsOfExperience,
	DesiredPositions,
	CurrentLocation,
	TechStack,
}

var fieldNames = [...]string{
	"Full Name",
	"Email Address",
	"Phone Number",
	"Years of Experience",
	"Desired Position(s)",
	"Current Location",
	"Tech Stack",
}

// TimestampLayout is the ISO-8601 layout used for the completion timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000"

const timestampKey = "timestamp"

func (f Field) valid() bool {
	return f >= 0 && int(f) < len(fieldNames)
}

// Name returns the human readable field name, also used as the storage key.
func (f Field) Name() string {
	if !f.valid() {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

func (f Field) String() string {
	return f.Name()
}

// ParseField resolves a field from its storage key.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Record is the candidate snapshot built up during a session.
// An empty string means the field has not been provided.
type Record struct {
	values      [len(fieldNames)]string
	CompletedAt time.Time
}

// Get returns the current value of the field, "" for an unknown field.
func (r *Record) Get(f Field) string {
	if !f.valid() {
		return ""
	}
	return r.values[f]
}

// IsSet reports whether the field holds a non-empty value.
func (r *Record) IsSet(f Field) bool {
	return r.Get(f) != ""
}

// Fill stores value only when the field is still empty and reports whether it did.
// Unknown fields are never stored.
func (r *Record) Fill(f Field, value string) bool {
	if !f.valid() || r.IsSet(f) {
		return false
	}
	r.values[f] = value
	return true
}

// Filled returns the set fields in fixed order.
func (r *Record) Filled() []Field {
	out := make([]Field, 0, len(Fields))
	for _, f := range Fields {
		if r.IsSet(f) {
			out = append(out, f)
		}
	}
	return out
}

// Complete reports whether all seven fields are set.
func (r *Record) Complete() bool {
	return len(r.Filled()) == len(Fields)
}

// Stamp returns a copy of the record carrying the completion time in UTC.
func (r Record) Stamp(now time.Time) Record {
	r.CompletedAt = now.UTC()
	return r
}

// MarshalJSON writes the fields as an object keyed by field name in fixed order.
// Unset fields are written as null, the timestamp only when present.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name())
		buf.Write(key)
		buf.WriteByte(':')
		if !r.IsSet(f) {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(r.Get(f))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	if !r.CompletedAt.IsZero() {
		buf.WriteString(`,"` + timestampKey + `":`)
		ts, _ := json.Marshal(r.CompletedAt.UTC().Format(TimestampLayout))
		buf.Write(ts)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object written by MarshalJSON. Unknown keys are ignored.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rec Record
	for key, val := range raw {
		if key == timestampKey {
			if val == nil || *val == "" {
				continue
			}
			ts, err := ParseTimestamp(*val)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", timestampKey, *val, err)
			}
			rec.CompletedAt = ts
			continue
		}
		f, ok := ParseField(key)
		if !ok || val == nil {
			continue
		}
		rec.values[f] = *val
	}

	*r = rec
	return nil
}

// ParseTimestamp reads a stored completion timestamp. Timestamps without a zone are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	layouts := []string{TimestampLayout, "2006-01-02T15:04:05", time.RFC3339Nano}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NotProvided is displayed in place of an unset field.
const NotProvided = "Not provided yet"

// FieldValue is one row of a displayed record.
type FieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Set   bool   `json:"set"`
}

// Snapshot lists all seven fields in fixed order for display, with NotProvided for unset ones.
func (r *Record) Snapshot() []FieldValue {
	out := make([]FieldValue, 0, len(Fields))
	for _, f := range Fields {
		row := FieldValue{Field: f.Name(), Value: NotProvided}
		if r.IsSet(f) {
			row.Value = r.Get(f)
			row.Set = true
		}
		out = append(out, row)
	}
	return out
}
