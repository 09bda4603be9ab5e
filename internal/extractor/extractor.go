// Package extractor recognizes report fields in free-form incident text using
// a static, ordered table of pattern rules.
package extractor

import (
	"strings"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

// candidate is one possible value for a field. span is the byte range of the
// text it came from, or nil when the value was derived from the whole message.
type candidate struct {
	value report.Value
	span  []int
}

type matcher func(m *message) []candidate

// rule lists the matchers for one field in precedence order. When claims is
// set, an accepted candidate reserves its span so later rules cannot reuse it.
type rule struct {
	field    string
	claims   bool
	matchers []matcher
}

// message is the text under extraction plus the spans claimed so far.
type message struct {
	text    string
	claimed [][2]int
}

func (m *message) free(span []int) bool {
	if span == nil {
		return true
	}
	for _, c := range m.claimed {
		if span[0] < c[1] && c[0] < span[1] {
			return false
		}
	}
	return true
}

func (m *message) claim(span []int) {
	if span != nil {
		m.claimed = append(m.claimed, [2]int{span[0], span[1]})
	}
}

// unclaimed returns the text with claimed spans blanked out.
func (m *message) unclaimed() string {
	b := []byte(m.text)
	for _, c := range m.claimed {
		for i := c[0]; i < c[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

// Extract returns a copy of rep with every field recognized in text merged in.
// Fields that already hold a value are never overwritten, so applying Extract
// twice to the same input yields the same report as applying it once.
func Extract(text string, rep report.Report) report.Report {
	out, _ := extract(text, rep)
	return out
}

// ExtractAnswer behaves like Extract and then, when the field named by asked is
// still unset, reads the whole message as a direct answer to that field's
// question.
func ExtractAnswer(text string, rep report.Report, asked string) report.Report {
	out, msg := extract(text, rep)
	if asked == "" || out.Has(asked) {
		return out
	}
	f, ok := report.Lookup(asked)
	if !ok {
		return out
	}
	if v, ok := answer(f, msg); ok {
		out.Set(asked, v)
	}
	return out
}

// Order returns the field names in the order their rules are applied.
func Order() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.field
	}
	return out
}

func extract(text string, rep report.Report) (report.Report, *message) {
	out := rep.Clone()
	msg := &message{text: text}
	if strings.TrimSpace(text) == "" {
		return out, msg
	}

	for _, r := range rules {
		f, ok := report.Lookup(r.field)
		if !ok {
			continue
		}
		apply(msg, r, f, out)
	}
	return out, msg
}

// apply runs every rule even for fields that are already set so the claimed
// spans depend on the text alone.
func apply(msg *message, r rule, f report.Field, out report.Report) {
	for _, match := range r.matchers {
		for _, c := range match(msg) {
			if !msg.free(c.span) || !f.Accepts(c.value) {
				continue
			}
			if r.claims {
				msg.claim(c.span)
			}
			out.Set(r.field, c.value)
			return
		}
	}
}
