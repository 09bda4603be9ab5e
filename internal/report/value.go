package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the type a field's value is parsed into.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unset"
	}
}

// Value is a typed field value. The zero Value is unset.
type Value struct {
	Kind Kind
	Str  string
	Int  int
	Bool bool
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Int(n int) Value       { return Value{Kind: KindInt, Int: n} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

// NotAvailable is recorded for a question the reporter skipped.
const NotAvailable = "N/A"

// Skipped returns the value stored for a skipped field of any kind.
func Skipped() Value { return String(NotAvailable) }

// IsSkipped reports whether v marks a skipped field.
func (v Value) IsSkipped() bool { return v.Kind == KindString && v.Str == NotAvailable }

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool { return v.Kind == 0 }

// String renders the value as a sheet cell. Booleans use YES/NO.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.Itoa(v.Int)
	case KindBool:
		if v.Bool {
			return "YES"
		}
		return "NO"
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindInt:
		return json.Marshal(v.Int)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON infers the kind from the JSON token type.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("value %s: %w", data, err)
		}
		*v = Int(n)
	}
	return nil
}
