// Package behavior scores a single user message for signs of low-quality or
// anomalous input. Scoring is pure: the same text always yields the same
// Record.
package behavior

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PolicyVersion identifies the weight and threshold table below.
const PolicyVersion = 1

// Signal names one heuristic check.
type Signal string

const (
	SignalMissingInput   Signal = "missing_input"
	SignalTooShort       Signal = "too_short"
	SignalTooLong        Signal = "too_long"
	SignalRepeatedChars  Signal = "repeated_chars"
	SignalRepeatedTokens Signal = "repeated_tokens"
	SignalNonPrintable   Signal = "non_printable"
	SignalSymbolDensity  Signal = "symbol_density"
	SignalNoAlpha        Signal = "no_alpha"
	SignalAllCaps        Signal = "all_caps"
	SignalContradiction  Signal = "contradiction"
	SignalProfanity      Signal = "profanity"
)

// Risk is the bucketed label for a score.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

const (
	MinLength = 5
	MaxLength = 400

	MaxScore = 100

	// Scores below MediumAt are low; scores above HighAbove are high.
	MediumAt  = 30
	HighAbove = 70
)

// Weight returns the fixed contribution of a signal.
func Weight(s Signal) int {
	switch s {
	case SignalMissingInput:
		return 30
	case SignalTooShort:
		return 15
	case SignalTooLong:
		return 25
	case SignalRepeatedChars:
		return 30
	case SignalRepeatedTokens:
		return 20
	case SignalNonPrintable:
		return 25
	case SignalSymbolDensity:
		return 15
	case SignalNoAlpha:
		return 20
	case SignalAllCaps:
		return 10
	case SignalContradiction:
		return 20
	case SignalProfanity:
		return 20
	default:
		return 0
	}
}

// Record is the per-message behavior assessment.
type Record struct {
	Length  int      `json:"length"`
	Signals []Signal `json:"signals"`
	Score   int      `json:"score"`
	Risk    Risk     `json:"risk"`
}

// Has reports whether the record carries the signal.
func (r Record) Has(s Signal) bool {
	for _, got := range r.Signals {
		if got == s {
			return true
		}
	}
	return false
}

var (
	noCrashRE   = regexp.MustCompile(`\bno (crash|accident|collision)\b|\b(didn'?t|did not) (crash|collide)\b`)
	crashClaim  = regexp.MustCompile(`\b(accident|crashed|collided|rear[- ]ended)\b`)
	profanityRE = regexp.MustCompile(`\b(fuck\w*|shit\w*|bitch\w*|crap|bastard|asshole)\b`)
)

// Score runs every check against text. Empty or whitespace-only input is
// flagged as missing input and no other check runs.
func Score(text string) Record {
	length := utf8.RuneCountInString(text)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return finish(length, []Signal{SignalMissingInput})
	}

	var signals []Signal
	n := utf8.RuneCountInString(trimmed)
	if n < MinLength {
		signals = append(signals, SignalTooShort)
	}
	if n > MaxLength {
		signals = append(signals, SignalTooLong)
	}
	if hasRun(trimmed, 6) {
		signals = append(signals, SignalRepeatedChars)
	}
	if repeatedTokens(trimmed) {
		signals = append(signals, SignalRepeatedTokens)
	}

	letters, upper, symbols, visible, nonPrintable := 0, 0, 0, 0, false
	for _, r := range trimmed {
		switch {
		case !unicode.IsPrint(r) && !unicode.IsSpace(r):
			nonPrintable = true
		case unicode.IsSpace(r):
			continue
		}
		visible++
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		} else if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			symbols++
		}
	}
	if nonPrintable {
		signals = append(signals, SignalNonPrintable)
	}
	if visible > 0 && symbols*10 > visible*3 {
		signals = append(signals, SignalSymbolDensity)
	}
	if letters == 0 {
		signals = append(signals, SignalNoAlpha)
	}
	if letters >= 8 && upper == letters {
		signals = append(signals, SignalAllCaps)
	}

	lower := strings.ToLower(trimmed)
	if noCrashRE.MatchString(lower) && crashClaim.MatchString(noCrashRE.ReplaceAllString(lower, " ")) {
		signals = append(signals, SignalContradiction)
	}
	if profanityRE.MatchString(lower) {
		signals = append(signals, SignalProfanity)
	}

	return finish(length, signals)
}

// Label buckets a score: <30 low, 30..70 medium, >70 high.
func Label(score int) Risk {
	switch {
	case score > HighAbove:
		return RiskHigh
	case score >= MediumAt:
		return RiskMedium
	default:
		return RiskLow
	}
}

func finish(length int, signals []Signal) Record {
	score := 0
	for _, s := range signals {
		score += Weight(s)
	}
	score = clamp(score)
	if signals == nil {
		signals = []Signal{}
	}
	return Record{Length: length, Signals: signals, Score: score, Risk: Label(score)}
}

func hasRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func repeatedTokens(s string) bool {
	tokens := strings.Fields(strings.ToLower(s))
	if len(tokens) < 4 {
		return false
	}
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
		if counts[t]*2 > len(tokens) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
