// Package defang converts indicators between their live and shareable
// ("defanged") forms.
package defang

import (
	"regexp"
	"strings"
)

// Transcoder is the defang/fang pair injected into extractors that need to
// normalize or re-defang their results.
type Transcoder interface {
	Defang(s string) string
	Fang(s string) string
}

// Standard is the default Transcoder.
type Standard struct{}

func (Standard) Defang(s string) string { return Defang(s) }
func (Standard) Fang(s string) string   { return Fang(s) }

var (
	reHTTPScheme = regexp.MustCompile(`(?i)https?://`)
	reFTPScheme  = regexp.MustCompile(`(?i)ftp://`)

	reFangHXXP    = regexp.MustCompile(`(?i)hx{1,2}p(s?)`)
	reFangBracket = regexp.MustCompile(`(?i)h\[x{1,2}\]xp(s?)`)
	reFangFXP     = regexp.MustCompile(`(?i)fxp`)
)

var fangReplacer = strings.NewReplacer(
	"[.]", ".",
	"[. ]", ".",
	"[@]", "@",
	"[ @]", "@",
	"[:]", ":",
)

// Defang rewrites schemes, dots between word characters, '@' and '://' so
// the indicator is no longer clickable.
func Defang(s string) string {
	if s == "" {
		return s
	}
	out := reHTTPScheme.ReplaceAllStringFunc(s, func(m string) string {
		if len(m) == len("https://") {
			return "hxxps://"
		}
		return "hxxp://"
	})
	out = reFTPScheme.ReplaceAllString(out, "fxp://")
	out = bracketDots(out)
	out = strings.ReplaceAll(out, "@", "[@]")
	out = strings.ReplaceAll(out, "://", "[:]//")
	return out
}

// Fang restores a defanged indicator. Text that was never defanged passes
// through unchanged, apart from literal "fxp"/"hxxp" tokens.
func Fang(s string) string {
	if s == "" {
		return s
	}
	out := reFangBracket.ReplaceAllString(s, "http${1}")
	out = reFangHXXP.ReplaceAllString(out, "http${1}")
	out = reFangFXP.ReplaceAllString(out, "ftp")
	return fangReplacer.Replace(out)
}

// DefangIPv6 brackets every colon of an IPv6 address.
func DefangIPv6(s string) string {
	if s == "" {
		return s
	}
	return strings.ReplaceAll(s, ":", "[:]")
}

// FangIPv6 is the inverse of DefangIPv6.
func FangIPv6(s string) string {
	if s == "" {
		return s
	}
	return strings.ReplaceAll(s, "[:]", ":")
}

// bracketDots replaces every '.' that sits between two ASCII word
// characters, including runs like "a.b.c" where neighbours share a character.
func bracketDots(s string) string {
	if strings.IndexByte(s, '.') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' && i > 0 && i+1 < len(s) && isWordByte(s[i-1]) && isWordByte(s[i+1]) {
			b.WriteString("[.]")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
