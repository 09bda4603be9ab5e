// Package report defines the incident report model: the static field table,
// typed values, and the versioned sheet row schema.
package report

// Report maps field names to extracted values. A field is present only when
// its value passed the field's validator.
type Report map[string]Value

func New() Report {
	return Report{}
}

// Clone returns an independent copy.
func (r Report) Clone() Report {
	out := make(Report, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Report) Has(name string) bool {
	v, ok := r[name]
	return ok && !v.IsZero()
}

func (r Report) Get(name string) (Value, bool) {
	v, ok := r[name]
	if !ok || v.IsZero() {
		return Value{}, false
	}
	return v, true
}

// Set stores v under name when the field exists, is still unset, and accepts
// the value. It never overwrites.
func (r Report) Set(name string, v Value) bool {
	if r.Has(name) {
		return false
	}
	f, ok := Lookup(name)
	if !ok || !f.Accepts(v) {
		return false
	}
	r[name] = v
	return true
}

// Missing returns the unset required fields in priority order.
func (r Report) Missing() []Field {
	var out []Field
	for _, f := range Required() {
		if !r.Has(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// NextMissing returns the first unset required field.
func (r Report) NextMissing() (Field, bool) {
	for _, f := range fields {
		if f.Required && !r.Has(f.Name) {
			return f, true
		}
	}
	return Field{}, false
}

// Complete reports whether every required field is set.
func (r Report) Complete() bool {
	_, missing := r.NextMissing()
	return !missing
}

// Equal reports whether both reports hold the same values.
func (r Report) Equal(o Report) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
