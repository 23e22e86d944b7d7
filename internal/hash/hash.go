// Package hash extracts hex digests by length and MurmurHash values.
package hash

import (
	"regexp"

	"github.com/swarmguard/cti-refine/internal/ioc"
)

var (
	reMD5    = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
	reSHA1   = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	reSHA256 = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)
	reSHA512 = regexp.MustCompile(`\b[a-fA-F0-9]{128}\b`)

	reMurmurPrefixed = regexp.MustCompile(`(?i)\b(?:murmurhash|murmur3|murmur|mmh3)[:\s]+([a-fA-F0-9]{8})\b`)
	reMurmurBare     = regexp.MustCompile(`\b[a-fA-F0-9]{8}\b`)
	// eight digit tokens starting with 1 or 2 are usually dates or ids
	reDateLike = regexp.MustCompile(`^[12][0-9]{7}$`)
)

func MD5(text string) ioc.List    { return matchAll(text, reMD5) }
func SHA1(text string) ioc.List   { return matchAll(text, reSHA1) }
func SHA256(text string) ioc.List { return matchAll(text, reSHA256) }
func SHA512(text string) ioc.List { return matchAll(text, reSHA512) }

// Murmur returns 32-bit MurmurHash values. Values labelled with a murmur or
// mmh3 prefix win; bare 8-hex tokens are only considered when no labelled
// value exists.
func Murmur(text string) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	for _, m := range reMurmurPrefixed.FindAllStringSubmatch(text, -1) {
		c.Add(m[1])
	}
	if c.Len() > 0 {
		return c.List()
	}
	for _, m := range reMurmurBare.FindAllString(text, -1) {
		if !reDateLike.MatchString(m) {
			c.Add(m)
		}
	}
	return c.List()
}

// All returns SHA512, SHA256, SHA1, MD5 and MurmurHash values in that order.
func All(text string) ioc.List {
	c := ioc.NewCollector(8)
	for _, g := range groups(text) {
		c.Add(g.values...)
	}
	return c.List()
}

// Indicators labels each digest with the first (longest) class that claimed it.
func Indicators(text string) []ioc.Indicator {
	c := ioc.NewCollector(8)
	var out []ioc.Indicator
	for _, g := range groups(text) {
		for _, v := range g.values {
			if c.Has(v) {
				continue
			}
			c.Add(v)
			out = append(out, ioc.Indicator{Value: v, Class: g.class})
		}
	}
	return out
}

type group struct {
	class  ioc.Class
	values ioc.List
}

func groups(text string) []group {
	if text == "" {
		return nil
	}
	return []group{
		{ioc.SHA512, SHA512(text)},
		{ioc.SHA256, SHA256(text)},
		{ioc.SHA1, SHA1(text)},
		{ioc.MD5, MD5(text)},
		{ioc.MurmurHash, Murmur(text)},
	}
}

func matchAll(text string, re *regexp.Regexp) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	c.Add(re.FindAllString(text, -1)...)
	return c.List()
}
