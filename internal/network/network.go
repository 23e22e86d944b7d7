// Package network extracts URLs, domains, IP addresses and email addresses,
// in plain or defanged notation, from free text.
package network

import (
	"regexp"
	"strings"

	"github.com/swarmguard/cti-refine/internal/defang"
	"github.com/swarmguard/cti-refine/internal/ioc"
)

// Extractor finds network indicators. The transcoder fangs defanged matches
// and re-defangs results on request.
type Extractor struct {
	tc defang.Transcoder
}

// New returns an Extractor using tc, or defang.Standard when tc is nil.
func New(tc defang.Transcoder) *Extractor {
	if tc == nil {
		tc = defang.Standard{}
	}
	return &Extractor{tc: tc}
}

// URLs returns http, https and ftp URLs. Defanged schemes and bracketed
// colons are fanged before deduplication.
func (e *Extractor) URLs(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(8)
	for _, m := range reURL.FindAllString(text, -1) {
		c.Add(trimURL(m))
	}
	for _, re := range []*regexp.Regexp{reURLDefanged, reURLBracketed} {
		for _, m := range re.FindAllString(text, -1) {
			c.Add(trimURL(e.tc.Fang(m)))
		}
	}
	return e.maybeDefang(c.List(), defangResult)
}

// Domains returns host names with an alphabetic TLD of two or more letters.
func (e *Extractor) Domains(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(8)
	for _, m := range reDomain.FindAllString(text, -1) {
		d := e.tc.Fang(m)
		if strings.Contains(d, ".") && reDomainTLD.MatchString(d) {
			c.Add(strings.TrimSpace(d))
		}
	}
	return e.maybeDefang(c.List(), defangResult)
}

// IPv4 returns dotted-quad addresses with octets in 0-255.
func (e *Extractor) IPv4(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(8)
	c.Add(reIPv4.FindAllString(text, -1)...)
	for _, m := range reIPv4Defanged.FindAllString(text, -1) {
		c.Add(e.tc.Fang(m))
	}
	return e.maybeDefang(c.List(), defangResult)
}

// IPv6 returns full and compressed IPv6 addresses. Candidates that are a
// strict substring of another candidate are dropped.
func (e *Extractor) IPv6(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(8)
	for _, re := range ipv6Plain {
		for _, m := range re.FindAllString(text, -1) {
			if strings.Contains(m, ":") {
				c.Add(m)
			}
		}
	}
	for _, re := range ipv6Defanged {
		for _, m := range re.FindAllString(text, -1) {
			if f := defang.FangIPv6(m); strings.Contains(f, ":") {
				c.Add(f)
			}
		}
	}
	out := dropContained(c.List())
	if defangResult {
		out = out.Map(defang.DefangIPv6)
	}
	return out
}

// IPs returns IPv4 addresses followed by IPv6 addresses.
func (e *Extractor) IPs(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(8)
	c.Add(e.IPv4(text, false)...)
	c.Add(e.IPv6(text, false)...)
	out := c.List()
	if defangResult {
		out = out.Map(func(ip string) string {
			if strings.Contains(ip, ":") {
				return defang.DefangIPv6(ip)
			}
			return e.tc.Defang(ip)
		})
	}
	return out
}

// Emails returns addresses written with '@' or '[@]' and plain or bracketed dots.
func (e *Extractor) Emails(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	c.Add(reEmail.FindAllString(text, -1)...)
	for _, m := range reEmailDefanged.FindAllString(text, -1) {
		c.Add(e.tc.Fang(m))
	}
	return e.maybeDefang(c.List(), defangResult)
}

// All returns URLs, IPs, emails and then the domains not already covered by
// a URL or email.
func (e *Extractor) All(text string, defangResult bool) ioc.List {
	if text == "" {
		return nil
	}
	s := e.split(text)
	c := ioc.NewCollector(len(s.urls) + len(s.ips) + len(s.emails) + len(s.domains))
	c.Add(s.urls...)
	c.Add(s.ips...)
	c.Add(s.emails...)
	c.Add(s.domains...)
	out := c.List()
	if defangResult {
		out = out.Map(func(v string) string {
			if strings.Count(v, ":") > 1 {
				return defang.DefangIPv6(v)
			}
			return e.tc.Defang(v)
		})
	}
	return out
}

// Indicators returns the same values as All, labelled by class and in
// canonical form.
func (e *Extractor) Indicators(text string) []ioc.Indicator {
	if text == "" {
		return nil
	}
	s := e.split(text)
	var out []ioc.Indicator
	out = append(out, ioc.Label(s.urls, ioc.URL)...)
	for _, ip := range s.ips {
		class := ioc.IPv4
		if strings.Contains(ip, ":") {
			class = ioc.IPv6
		}
		out = append(out, ioc.Indicator{Value: ip, Class: class})
	}
	out = append(out, ioc.Label(s.emails, ioc.Email)...)
	out = append(out, ioc.Label(s.domains, ioc.Domain)...)
	return out
}

type parts struct {
	urls, ips, emails, domains ioc.List
}

func (e *Extractor) split(text string) parts {
	s := parts{
		urls:   e.URLs(text, false),
		ips:    e.IPs(text, false),
		emails: e.Emails(text, false),
	}
	for _, d := range e.Domains(text, false) {
		if s.urls.Contains(d) || s.emails.Contains(d) {
			continue
		}
		s.domains = append(s.domains, d)
	}
	return s
}

func (e *Extractor) maybeDefang(l ioc.List, defangResult bool) ioc.List {
	if !defangResult {
		return l
	}
	return l.Map(e.tc.Defang)
}

// dropContained removes values that appear inside a longer value of the list.
func dropContained(l ioc.List) ioc.List {
	var out ioc.List
	for i, v := range l {
		contained := false
		for j, w := range l {
			if i != j && len(w) > len(v) && strings.Contains(w, v) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, v)
		}
	}
	return out
}

// trimURL drops the list separator a URL match swallows when a joined result
// is scanned again.
func trimURL(m string) string {
	return strings.TrimRight(strings.TrimSpace(m), ",")
}
