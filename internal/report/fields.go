package report

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// Field names.
const (
	FieldMake              = "make"
	FieldModel             = "model"
	FieldModelYear         = "model_year"
	FieldVIN               = "vin"
	FieldCity              = "city"
	FieldState             = "state"
	FieldSpeed             = "speed"
	FieldCrash             = "crash"
	FieldFire              = "fire"
	FieldInjuries          = "injuries"
	FieldDeaths            = "deaths"
	FieldDescription       = "description"
	FieldComponent         = "component"
	FieldMileage           = "mileage"
	FieldTechnicianNotes   = "technician_notes"
	FieldBrakeCondition    = "brake_condition"
	FieldEngineTemperature = "engine_temperature"
	FieldDateComplaint     = "date_complaint"
)

// Field is the static definition of one report field.
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Required bool
	Question string
	Validate func(Value) bool
}

// Accepts reports whether v has the field's kind and passes its validator.
// A skipped value is accepted by every field.
func (f Field) Accepts(v Value) bool {
	if v.IsSkipped() {
		return true
	}
	if v.Kind != f.Kind {
		return false
	}
	if f.Validate == nil {
		return true
	}
	return f.Validate(v)
}

// MaxModelYear is the newest model year accepted, fixed at process start.
var MaxModelYear = time.Now().Year() + 1

const MinModelYear = 1980

var vinRE = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// fields is ordered by prompt priority for required fields.
var fields = []Field{
	{
		Name: FieldMake, Column: "Make", Kind: KindString, Required: true,
		Question: "What is the vehicle brand? (e.g., Ford, Toyota)",
		Validate: shortText(40),
	},
	{
		Name: FieldModel, Column: "Model", Kind: KindString, Required: true,
		Question: "Which model is it? (e.g., Camry, Civic)",
		Validate: shortText(40),
	},
	{
		Name: FieldModelYear, Column: "Model_Year", Kind: KindInt, Required: true,
		Question: "What is the model year? (e.g., 2022)",
		Validate: func(v Value) bool { return v.Int >= MinModelYear && v.Int <= MaxModelYear },
	},
	{
		Name: FieldVIN, Column: "VIN", Kind: KindString,
		Question: "Do you have the VIN? (17 characters)",
		Validate: func(v Value) bool { return vinRE.MatchString(v.Str) },
	},
	{
		Name: FieldCity, Column: "City", Kind: KindString, Required: true,
		Question: "Which city did this happen in?",
		Validate: shortText(60),
	},
	{
		Name: FieldState, Column: "State", Kind: KindString, Required: true,
		Question: "Which state? (2 letter code like CA, NY)",
		Validate: func(v Value) bool {
			_, ok := stateNames[v.Str]
			return ok
		},
	},
	{
		Name: FieldSpeed, Column: "Speed", Kind: KindInt,
		Question: "How fast was the vehicle going? (e.g., 65 mph)",
		Validate: intRange(0, 200),
	},
	{
		Name: FieldCrash, Column: "Crash", Kind: KindBool, Required: true,
		Question: "Was there a crash? (Yes/No)",
	},
	{
		Name: FieldFire, Column: "Fire", Kind: KindBool, Required: true,
		Question: "Was there a fire? (Yes/No)",
	},
	{
		Name: FieldInjuries, Column: "Injured", Kind: KindInt, Required: true,
		Question: "Were there any injuries? (Enter number)",
		Validate: intRange(0, 500),
	},
	{
		Name: FieldDeaths, Column: "Deaths", Kind: KindInt, Required: true,
		Question: "Were there any fatalities? (Enter number)",
		Validate: intRange(0, 500),
	},
	{
		Name: FieldDescription, Column: "Description", Kind: KindString, Required: true,
		Question: "Please describe exactly what happened.",
		Validate: shortText(2000),
	},
	{
		Name: FieldComponent, Column: "Component", Kind: KindString, Required: true,
		Question: "Which component failed? (brakes, engine, transmission, etc.)",
		Validate: shortText(60),
	},
	{
		Name: FieldMileage, Column: "Mileage", Kind: KindInt,
		Question: "What was the mileage at the time?",
		Validate: intRange(0, 2_000_000),
	},
	{
		Name: FieldTechnicianNotes, Column: "Technician_Notes", Kind: KindString,
		Question: "Any notes from a technician or mechanic?",
		Validate: shortText(1000),
	},
	{
		Name: FieldBrakeCondition, Column: "Brake_Condition", Kind: KindString,
		Question: "How were the brakes? (Good / Worn / Failed)",
		Validate: func(v Value) bool {
			switch v.Str {
			case "Good", "Worn", "Failed":
				return true
			}
			return false
		},
	},
	{
		Name: FieldEngineTemperature, Column: "Engine_Temperature", Kind: KindInt,
		Question: "Engine temperature (if known)?",
		Validate: intRange(32, 400),
	},
	{
		Name: FieldDateComplaint, Column: "Date_Complaint", Kind: KindString,
		Question: "When did this issue occur? (YYYY-MM-DD)",
		Validate: func(v Value) bool {
			d, err := time.Parse(time.DateOnly, v.Str)
			if err != nil {
				return false
			}
			return d.Year() >= MinModelYear && !d.After(time.Now())
		},
	},
}

var byName = func() map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// Fields returns every field definition in table order.
func Fields() []Field {
	return slices.Clone(fields)
}

// Required returns the required fields in prompt priority order.
func Required() []Field {
	var out []Field
	for _, f := range fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the definition for a field name.
func Lookup(name string) (Field, bool) {
	f, ok := byName[name]
	return f, ok
}

func intRange(lo, hi int) func(Value) bool {
	return func(v Value) bool { return v.Int >= lo && v.Int <= hi }
}

func shortText(max int) func(Value) bool {
	return func(v Value) bool {
		s := strings.TrimSpace(v.Str)
		return s != "" && len(s) <= max
	}
}
