package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
		"sure": true, "correct": true, "true": true, "affirmative": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "none": true,
		"false": true, "negative": true, "never": true,
	}

	skipWords = map[string]bool{
		"skip": true, "skip it": true, "skip this": true, "skip that": true,
		"n/a": true, "na": true, "not applicable": true, "pass": true,
	}

	unknownWords = map[string]bool{
		"idk": true, "unknown": true, "not sure": true, "no idea": true,
		"i don't know": true, "i dont know": true, "dont know": true, "don't know": true,
	}

	numberRE    = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?k?|no|none|zero|nobody|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\b`)
	conditionRE = regexp.MustCompile(`(?i)\b(good|fine|ok|okay|worn|grinding|soft|spongy|failed|failure|broken|gone)\b`)
)

const maxNameWords = 4

// answer reads the message as a direct reply to the question for f. Text
// already claimed by pattern rules is ignored. A skip records N/A for any
// field kind; an "I don't know" leaves the field unset.
func answer(f report.Field, msg *message) (report.Value, bool) {
	rest := trimAnswer(msg.unclaimed())
	if rest == "" || unknownWords[strings.ToLower(rest)] {
		return report.Value{}, false
	}
	if skipWords[strings.ToLower(rest)] {
		return report.Skipped(), true
	}

	switch f.Kind {
	case report.KindBool:
		return yesNo(rest)
	case report.KindInt:
		return number(f.Name, rest)
	}

	switch f.Name {
	case report.FieldState:
		return stateCode(rest)
	case report.FieldVIN:
		return report.String(strings.ToUpper(strings.ReplaceAll(rest, " ", ""))), true
	case report.FieldDateComplaint:
		return parseDate(rest)
	case report.FieldComponent:
		for _, c := range components {
			if c.re.MatchString(rest) {
				return report.String(c.name), true
			}
		}
		return report.String(strings.ToLower(rest)), true
	case report.FieldBrakeCondition:
		return brakeCondition(rest)
	case report.FieldDescription, report.FieldTechnicianNotes:
		return report.String(strings.TrimSpace(msg.text)), true
	}

	if len(strings.Fields(rest)) > maxNameWords {
		return report.Value{}, false
	}
	return report.String(titleIfLower(strings.Join(strings.Fields(rest), " "))), true
}

func trimAnswer(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func yesNo(s string) (report.Value, bool) {
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 {
		return report.Value{}, false
	}
	first := trimAnswer(words[0])
	switch {
	case yesWords[first]:
		return report.Bool(true), true
	case noWords[first]:
		return report.Bool(false), true
	}
	return report.Value{}, false
}

func number(field, s string) (report.Value, bool) {
	m := numberRE.FindString(s)
	if m == "" {
		return report.Value{}, false
	}
	if field == report.FieldMileage {
		return miles(m)
	}
	return integer(m)
}

func brakeCondition(s string) (report.Value, bool) {
	m := strings.ToLower(conditionRE.FindString(s))
	switch m {
	case "good", "fine", "ok", "okay":
		return report.String("Good"), true
	case "worn", "grinding", "soft", "spongy":
		return report.String("Worn"), true
	case "failed", "failure", "broken", "gone":
		return report.String("Failed"), true
	}
	return report.Value{}, false
}
