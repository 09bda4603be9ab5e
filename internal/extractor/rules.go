package extractor

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

// rules run in this order. Numeric rules with units claim their digits before
// model_year runs, dates claim their year, and the make is claimed before the
// model and city rules look at capitalized words.
var rules = []rule{
	{field: report.FieldDateComplaint, claims: true, matchers: []matcher{
		find(numericDateRE, 1, parseDate),
		find(longDateRE, 1, parseDate),
	}},
	{field: report.FieldVIN, claims: true, matchers: []matcher{
		find(vinRE, 0, func(s string) (report.Value, bool) { return report.String(strings.ToUpper(s)), true }),
	}},
	{field: report.FieldSpeed, claims: true, matchers: []matcher{
		find(speedUnitRE, 1, integer),
		find(speedVerbRE, 1, integer),
	}},
	{field: report.FieldEngineTemperature, claims: true, matchers: []matcher{
		find(tempUnitRE, 1, integer),
		find(tempWordRE, 1, integer),
	}},
	{field: report.FieldMileage, claims: true, matchers: []matcher{
		find(milesRE, 1, miles),
		find(odometerRE, 1, miles),
	}},
	{field: report.FieldModelYear, claims: true, matchers: []matcher{
		find(yearRE, 1, integer),
	}},
	{field: report.FieldInjuries, claims: true, matchers: []matcher{
		find(noInjuryRE, 0, constant(report.Int(0))),
		find(injuredRE, 1, count),
	}},
	{field: report.FieldDeaths, claims: true, matchers: []matcher{
		find(noDeathRE, 0, constant(report.Int(0))),
		find(deathRE, 1, count),
	}},
	{field: report.FieldMake, claims: true, matchers: []matcher{
		find(makeRE, 1, func(s string) (report.Value, bool) {
			name, ok := makes[strings.ToLower(s)]
			return report.String(name), ok
		}),
		makeFromModel,
	}},
	{field: report.FieldModel, claims: true, matchers: []matcher{
		knownModel,
		find(afterMakeRE, 1, modelToken),
	}},
	{field: report.FieldState, claims: true, matchers: []matcher{
		wholeState,
		find(commaCodeRE, 1, stateCode),
		find(stateNameRE, 0, stateCode),
		find(upperCodeRE, 1, func(s string) (report.Value, bool) {
			if ambiguousCodes[s] {
				return report.Value{}, false
			}
			return stateCode(s)
		}),
	}},
	{field: report.FieldCity, claims: true, matchers: []matcher{
		city,
	}},
	{field: report.FieldCrash, claims: true, matchers: []matcher{
		find(noCrashRE, 0, constant(report.Bool(false))),
		find(crashRE, 0, constant(report.Bool(true))),
	}},
	{field: report.FieldFire, claims: true, matchers: []matcher{
		find(noFireRE, 0, constant(report.Bool(false))),
		find(fireRE, 0, constant(report.Bool(true))),
	}},
	{field: report.FieldComponent, matchers: []matcher{
		component,
	}},
	{field: report.FieldBrakeCondition, matchers: []matcher{
		find(brakeFailedRE, 0, constant(report.String("Failed"))),
		find(brakeWornRE, 0, constant(report.String("Worn"))),
		find(brakeGoodRE, 0, constant(report.String("Good"))),
	}},
	{field: report.FieldTechnicianNotes, matchers: []matcher{
		find(technicianRE, 1, func(s string) (report.Value, bool) {
			return report.String(strings.TrimSpace(s)), true
		}),
	}},
	{field: report.FieldDescription, matchers: []matcher{
		description,
	}},
}

var (
	numericDateRE = regexp.MustCompile(`\b(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{4})\b`)
	longDateRE    = regexp.MustCompile(`(?i)\b((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})\b`)
	vinRE         = regexp.MustCompile(`(?i)\b[a-hj-npr-z0-9]{17}\b`)
	speedUnitRE   = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:mph|miles per hour|miles an hour)\b`)
	speedVerbRE   = regexp.MustCompile(`(?i)\b(?:going|doing|driving|traveling|travelling)\s+(?:at\s+)?(?:about\s+|around\s+|roughly\s+)?(\d{1,3})\b`)
	tempUnitRE    = regexp.MustCompile(`(?i)\b(\d{2,3})\s*(?:°\s*f\b|°|degrees?)`)
	tempWordRE    = regexp.MustCompile(`(?i)\btemp(?:erature)?\s+(?:was\s+|of\s+|at\s+|reached\s+|hit\s+|read\s+)?(?:about\s+|around\s+|over\s+)?(\d{2,3})\b`)
	milesRE       = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?k|\d+)\s*(?:miles|mi)\b`)
	odometerRE    = regexp.MustCompile(`(?i)\b(?:mileage|odometer)\s*(?:was\s+|is\s+|of\s+|at\s+|read\s+|:\s*)?(?:about\s+|around\s+)?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?k|\d+)\b`)
	yearRE        = regexp.MustCompile(`\b(19[89]\d|20\d{2})\b`)

	noInjuryRE = regexp.MustCompile(`(?i)\b(?:(?:no\s*-?\s*one|nobody)\s+(?:was\s+|got\s+|were\s+)?(?:injured|hurt)|(?:no|without)\s+injur(?:y|ies))\b`)
	injuredRE  = regexp.MustCompile(`(?i)\b` + countExpr + `\s+(?:(?:people|persons?|passengers?|occupants?|others|adults?|children|kids?)\s+)?(?:(?:were|was|got|are)\s+)?(?:injured|injuries|injury|hurt)\b`)
	noDeathRE  = regexp.MustCompile(`(?i)\b(?:(?:no\s*-?\s*one|nobody)\s+(?:was\s+|got\s+|were\s+)?(?:killed|died|dead)|(?:no|without)\s+(?:deaths?|fatalit(?:y|ies)))\b`)
	deathRE    = regexp.MustCompile(`(?i)\b` + countExpr + `\s+(?:(?:people|persons?|passengers?|occupants?|others|adults?|children|kids?)\s+)?(?:(?:were|was|got|are)\s+)?(?:killed|died|dead|deaths?|fatalit(?:y|ies))\b`)

	makeRE      = regexp.MustCompile(`(?i)\b(` + alternation(keys(makes)) + `)\b`)
	afterMakeRE = regexp.MustCompile(`(?i)\b(?:` + alternation(keys(makes)) + `)\s+([a-z0-9][a-z0-9-]*)`)
	commaCodeRE = regexp.MustCompile(`,\s*([A-Z]{2})\b`)
	upperCodeRE = regexp.MustCompile(`\b([A-Z]{2})\b`)
	cityRE      = regexp.MustCompile(`\b(?:[Ii]n|[Nn]ear|[Aa]round|[Oo]utside(?:\s+of)?)\s+([A-Z][A-Za-z.'-]*(?:\s+[A-Z][A-Za-z.'-]*){0,2})`)
	cityWordRE  = regexp.MustCompile(`[A-Z][A-Za-z.'-]*`)

	noCrashRE = regexp.MustCompile(`(?i)\b(?:(?:no|not|never|without|wasn't|was\s+not)\s+(?:(?:a|an|any|in\s+an?)\s+)?(?:crash|accident|collision)|(?:didn't|did\s+not|never)\s+crash)\b`)
	crashRE   = regexp.MustCompile(`(?i)\b(?:crash(?:ed|es)?|accident|collision|collided|rear-ended|wreck(?:ed)?|totaled|totalled)\b`)
	noFireRE  = regexp.MustCompile(`(?i)\b(?:(?:no|not|never|without)\s+(?:(?:a|any)\s+)?(?:fire|smoke|flames?)|(?:didn't|did\s+not|never)\s+catch\s+(?:on\s+)?fire)\b`)
	fireRE    = regexp.MustCompile(`(?i)\b(?:fire|smoke|smoking|flames?|burn(?:ed|ing|t))\b`)

	brakeFailedRE = regexp.MustCompile(`(?i)\b(?:brakes?\s+(?:failure|failed|fail(?:ing|s)?|gave\s+out|went\s+out|stopped\s+working|quit)|(?:failed|no)\s+brakes)\b`)
	brakeWornRE   = regexp.MustCompile(`(?i)\b(?:(?:worn|grinding|squealing|squeaky|soft|spongy)\s+brakes?|brakes?\s+(?:were|are|was|is)\s+(?:worn|grinding|squealing|soft|spongy))\b`)
	brakeGoodRE   = regexp.MustCompile(`(?i)\bbrakes?\s+(?:were|are|was|is)\s+(?:good|fine|ok|okay)\b`)
	technicianRE  = regexp.MustCompile(`(?i)\b(?:mechanic|technician|tech|dealer(?:ship)?|shop)\s+(?:said|says|told\s+me|found|noted|diagnosed|reported)\s+(?:that\s+)?([^.!?\n]{3,})`)
	incidentRE    = regexp.MustCompile(`(?i)\b(?:crash\w*|accident|collision|fail\w*|broke\w*|stall\w*|fire|smoke|brak\w+|engine|airbags?|steering|leak\w*|lost|suddenly|stopped|overheat\w*|malfunction\w*|exploded|swerved|skid\w*)\b`)
)

// modelStopWords follow a make without naming a model.
var modelStopWords = map[string]bool{
	"had": true, "has": true, "was": true, "is": true, "car": true, "truck": true,
	"suv": true, "van": true, "vehicle": true, "with": true, "and": true,
	"that": true, "which": true, "when": true, "while": true, "in": true,
	"on": true, "at": true, "the": true, "dealer": true, "dealership": true,
}

const minDescriptionWords = 8

// find yields every match of re whose capture group parses to a value. The
// candidate span is the group's span.
func find(re *regexp.Regexp, group int, parse func(string) (report.Value, bool)) matcher {
	return func(m *message) []candidate {
		var out []candidate
		for _, loc := range re.FindAllStringSubmatchIndex(m.text, -1) {
			start, end := loc[2*group], loc[2*group+1]
			if start < 0 {
				continue
			}
			v, ok := parse(m.text[start:end])
			if !ok {
				continue
			}
			out = append(out, candidate{value: v, span: []int{start, end}})
		}
		return out
	}
}

func constant(v report.Value) func(string) (report.Value, bool) {
	return func(string) (report.Value, bool) { return v, true }
}

func integer(s string) (report.Value, bool) {
	n, ok := parseCount(s)
	return report.Int(n), ok
}

func count(s string) (report.Value, bool) {
	return integer(s)
}

func miles(s string) (report.Value, bool) {
	n, ok := parseMiles(s)
	return report.Int(n), ok
}

var dateLayouts = []string{
	time.DateOnly, "2006-1-2", "1/2/2006",
	"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006", "Jan. 2, 2006",
}

func parseDate(s string) (report.Value, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return report.String(t.Format(time.DateOnly)), true
		}
	}
	return report.Value{}, false
}

func stateCode(s string) (report.Value, bool) {
	code, ok := report.StateCode(s)
	return report.String(code), ok
}

// wholeState accepts a message that is nothing but a state code or name.
func wholeState(m *message) []candidate {
	trimmed := strings.TrimFunc(m.text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if trimmed == "" {
		return nil
	}
	v, ok := stateCode(trimmed)
	if !ok || ambiguousCodes[strings.ToUpper(trimmed)] {
		return nil
	}
	start := strings.Index(m.text, trimmed)
	return []candidate{{value: v, span: []int{start, start + len(trimmed)}}}
}

func makeFromModel(m *message) []candidate {
	var out []candidate
	for _, c := range modelMatches(m.text) {
		out = append(out, candidate{value: report.String(c.make)})
	}
	return out
}

func knownModel(m *message) []candidate {
	var out []candidate
	for _, c := range modelMatches(m.text) {
		out = append(out, candidate{value: report.String(c.name), span: c.span})
	}
	return out
}

type modelMatch struct {
	name, make string
	span       []int
}

// modelMatches returns every known model in the text ordered by position.
func modelMatches(text string) []modelMatch {
	var out []modelMatch
	for _, md := range models {
		for _, loc := range md.re.FindAllStringIndex(text, -1) {
			out = append(out, modelMatch{name: md.name, make: md.make, span: loc})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].span[0] < out[j].span[0] })
	return out
}

// modelToken accepts the word after a make when it looks like a model name:
// capitalized or containing a digit, and not a common word.
func modelToken(s string) (report.Value, bool) {
	if modelStopWords[strings.ToLower(s)] {
		return report.Value{}, false
	}
	var upper, digit, letter bool
	for i, r := range s {
		if i == 0 && unicode.IsUpper(r) {
			upper = true
		}
		if unicode.IsDigit(r) {
			digit = true
		}
		if unicode.IsLetter(r) {
			letter = true
		}
	}
	if !letter || (!upper && !digit) {
		return report.Value{}, false
	}
	return report.String(s), true
}

// city reads up to three capitalized words after a place preposition,
// stopping at a claimed span, a state name, a make, or a calendar word.
func city(m *message) []candidate {
	var out []candidate
	for _, loc := range cityRE.FindAllStringSubmatchIndex(m.text, -1) {
		base := loc[2]
		group := m.text[loc[2]:loc[3]]
		start, end := -1, -1
		for _, w := range cityWordRE.FindAllStringIndex(group, -1) {
			ws, we := base+w[0], base+w[1]
			word := strings.TrimRight(m.text[ws:we], ".'-")
			if !m.free([]int{ws, we}) || excludedCityWord(word) {
				break
			}
			if start < 0 {
				start = ws
			}
			end = ws + len(word)
		}
		if start < 0 {
			continue
		}
		out = append(out, candidate{value: report.String(m.text[start:end]), span: []int{start, end}})
	}
	return out
}

func excludedCityWord(w string) bool {
	if w == "" || w == "I" || months[w] {
		return true
	}
	if _, ok := makes[strings.ToLower(w)]; ok {
		return true
	}
	if _, ok := report.StateCode(w); ok && len(w) > 2 {
		return true
	}
	return false
}

// component reports the first failure keyword in the text.
func component(m *message) []candidate {
	var out []candidate
	for _, c := range components {
		for _, loc := range c.re.FindAllStringIndex(m.text, -1) {
			out = append(out, candidate{value: report.String(c.name), span: loc})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].span[0] < out[j].span[0] })
	return out
}

// description takes the whole message once it reads like an account of the
// incident.
func description(m *message) []candidate {
	text := strings.TrimSpace(m.text)
	if len(strings.Fields(text)) < minDescriptionWords || !incidentRE.MatchString(text) {
		return nil
	}
	return []candidate{{value: report.String(text)}}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// alternation joins words longest first so a longer spelling wins over its
// prefix.
func alternation(words []string) string {
	sorted := append([]string(nil), words...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	for i, w := range sorted {
		sorted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(sorted, "|")
}
