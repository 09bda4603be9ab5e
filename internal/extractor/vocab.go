package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

// makes maps every recognized spelling to the display name stored in the report.
var makes = map[string]string{
	"ford":          "Ford",
	"toyota":        "Toyota",
	"honda":         "Honda",
	"chevrolet":     "Chevrolet",
	"chevy":         "Chevrolet",
	"tesla":         "Tesla",
	"bmw":           "BMW",
	"mercedes":      "Mercedes",
	"mercedes-benz": "Mercedes",
	"benz":          "Mercedes",
	"nissan":        "Nissan",
	"hyundai":       "Hyundai",
	"kia":           "Kia",
	"volvo":         "Volvo",
	"audi":          "Audi",
	"volkswagen":    "Volkswagen",
	"vw":            "Volkswagen",
	"jeep":          "Jeep",
	"dodge":         "Dodge",
	"subaru":        "Subaru",
	"mazda":         "Mazda",
	"lexus":         "Lexus",
	"acura":         "Acura",
	"infiniti":      "Infiniti",
	"cadillac":      "Cadillac",
	"gmc":           "GMC",
}

type model struct {
	name string
	make string
	re   *regexp.Regexp
}

// models are matched case-insensitively unless the name is also an everyday
// word, in which case the text must capitalize it.
var models = func() []model {
	defs := []struct {
		name, make, pattern string
		common              bool
	}{
		{"Camry", "Toyota", `camry`, false},
		{"Corolla", "Toyota", `corolla`, false},
		{"RAV4", "Toyota", `rav ?4`, false},
		{"Prius", "Toyota", `prius`, false},
		{"Tacoma", "Toyota", `tacoma`, false},
		{"Tundra", "Toyota", `tundra`, false},
		{"Highlander", "Toyota", `highlander`, false},
		{"Sienna", "Toyota", `sienna`, false},
		{"Civic", "Honda", `civic`, false},
		{"Accord", "Honda", `Accord`, true},
		{"CR-V", "Honda", `cr-?v`, false},
		{"Pilot", "Honda", `Pilot`, true},
		{"Odyssey", "Honda", `odyssey`, false},
		{"F-150", "Ford", `f-?150`, false},
		{"Focus", "Ford", `Focus`, true},
		{"Fusion", "Ford", `Fusion`, true},
		{"Escape", "Ford", `Escape`, true},
		{"Explorer", "Ford", `Explorer`, true},
		{"Mustang", "Ford", `mustang`, false},
		{"Bronco", "Ford", `bronco`, false},
		{"Malibu", "Chevrolet", `malibu`, false},
		{"Silverado", "Chevrolet", `silverado`, false},
		{"Equinox", "Chevrolet", `equinox`, false},
		{"Impala", "Chevrolet", `impala`, false},
		{"Cruze", "Chevrolet", `cruze`, false},
		{"Tahoe", "Chevrolet", `tahoe`, false},
		{"Bolt", "Chevrolet", `Bolt`, true},
		{"Model 3", "Tesla", `model ?3`, false},
		{"Model S", "Tesla", `model ?s`, false},
		{"Model X", "Tesla", `model ?x`, false},
		{"Model Y", "Tesla", `model ?y`, false},
		{"Altima", "Nissan", `altima`, false},
		{"Sentra", "Nissan", `sentra`, false},
		{"Rogue", "Nissan", `Rogue`, true},
		{"Leaf", "Nissan", `Leaf`, true},
		{"Pathfinder", "Nissan", `pathfinder`, false},
		{"Elantra", "Hyundai", `elantra`, false},
		{"Sonata", "Hyundai", `sonata`, false},
		{"Tucson", "Hyundai", `Tucson`, true},
		{"Santa Fe", "Hyundai", `santa fe`, false},
		{"Optima", "Kia", `optima`, false},
		{"Sorento", "Kia", `sorento`, false},
		{"Sportage", "Kia", `sportage`, false},
		{"Soul", "Kia", `Soul`, true},
		{"Forte", "Kia", `forte`, false},
		{"Jetta", "Volkswagen", `jetta`, false},
		{"Passat", "Volkswagen", `passat`, false},
		{"Tiguan", "Volkswagen", `tiguan`, false},
		{"Golf", "Volkswagen", `Golf`, true},
		{"Wrangler", "Jeep", `wrangler`, false},
		{"Grand Cherokee", "Jeep", `grand cherokee`, false},
		{"Cherokee", "Jeep", `cherokee`, false},
		{"Compass", "Jeep", `Compass`, true},
		{"Charger", "Dodge", `Charger`, true},
		{"Durango", "Dodge", `durango`, false},
		{"Caravan", "Dodge", `caravan`, false},
		{"Outback", "Subaru", `outback`, false},
		{"Forester", "Subaru", `forester`, false},
		{"Impreza", "Subaru", `impreza`, false},
		{"Crosstrek", "Subaru", `crosstrek`, false},
		{"CX-5", "Mazda", `cx-?5`, false},
		{"Miata", "Mazda", `miata`, false},
		{"Escalade", "Cadillac", `escalade`, false},
		{"Sierra", "GMC", `Sierra`, true},
	}
	out := make([]model, 0, len(defs))
	for _, d := range defs {
		expr := `\b(?:` + d.pattern + `)\b`
		if !d.common {
			expr = `(?i)` + expr
		}
		out = append(out, model{name: d.name, make: d.make, re: regexp.MustCompile(expr)})
	}
	return out
}()

// components maps failure keywords to the normalized component name.
var components = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\bbrak(?:e|es|ing)\b`), "brake"},
	{regexp.MustCompile(`(?i)\btransmission\b|\bgearbox\b`), "transmission"},
	{regexp.MustCompile(`(?i)\bair ?bags?\b`), "airbag"},
	{regexp.MustCompile(`(?i)\bsteering\b`), "steering"},
	{regexp.MustCompile(`(?i)\bsuspension\b`), "suspension"},
	{regexp.MustCompile(`(?i)\bseat ?belts?\b`), "seat belt"},
	{regexp.MustCompile(`(?i)\b(?:tires?|tyres?)\b`), "tire"},
	{regexp.MustCompile(`(?i)\bfuel (?:pump|system|line|leak)\b`), "fuel system"},
	{regexp.MustCompile(`(?i)\b(?:accelerator|gas pedal|throttle)\b`), "accelerator"},
	{regexp.MustCompile(`(?i)\b(?:electrical|wiring)\b`), "electrical"},
	{regexp.MustCompile(`(?i)\bbattery\b`), "battery"},
	{regexp.MustCompile(`(?i)\b(?:headlights?|taillights?)\b`), "lights"},
	{regexp.MustCompile(`(?i)\bengine\b`), "engine"},
}

var numberWords = map[string]int{
	"no": 0, "none": 0, "zero": 0, "nobody": 0,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

const countExpr = `(\d{1,3}|no|zero|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`

// parseCount reads a digit string or a number word.
func parseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseMiles reads "45000", "45,000" or "45k".
func parseMiles(s string) (int, bool) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f * mult), true
}

var stateNameRE = func() *regexp.Regexp {
	names := report.StateNames()
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(names, "|") + `)\b`)
}()

// ambiguousCodes are state codes that are also everyday words or common
// abbreviations. Pattern rules take them only after a comma; a bare "LA" is
// read as a state only when it answers the state question.
var ambiguousCodes = map[string]bool{
	"IN": true, "OR": true, "ME": true, "OK": true, "HI": true, "OH": true,
	"ID": true, "LA": true, "AL": true, "DE": true, "MA": true, "PA": true,
	"CO": true,
}

var months = map[string]bool{
	"January": true, "February": true, "March": true, "April": true, "May": true,
	"June": true, "July": true, "August": true, "September": true,
	"October": true, "November": true, "December": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

// titleIfLower capitalizes each word of s when s was typed entirely in lower
// case and leaves it alone otherwise.
func titleIfLower(s string) string {
	if s != strings.ToLower(s) {
		return s
	}
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
