// Package ioc holds the indicator model shared by every extractor family.
package ioc

import (
	"fmt"
	"strings"
)

// Class labels the kind of indicator a value was extracted as.
type Class string

const (
	URL              Class = "url"
	Domain           Class = "domain"
	IPv4             Class = "ipv4"
	IPv6             Class = "ipv6"
	Email            Class = "email"
	BTC              Class = "btc"
	ETH              Class = "eth"
	XMR              Class = "xmr"
	SOL              Class = "sol"
	MD5              Class = "md5"
	SHA1             Class = "sha1"
	SHA256           Class = "sha256"
	SHA512           Class = "sha512"
	MurmurHash       Class = "murmurhash"
	TelegramPost     Class = "telegram_post"
	TelegramUsername Class = "telegram_username"
	BlueskyHandle    Class = "bluesky_handle"
	Handle           Class = "handle"
)

// Classes lists every class in family order.
var Classes = []Class{
	URL, Domain, IPv4, IPv6, Email,
	BTC, ETH, XMR, SOL,
	MD5, SHA1, SHA256, SHA512, MurmurHash,
	TelegramPost, TelegramUsername, BlueskyHandle, Handle,
}

// ParseClass resolves a class name, ignoring case.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown indicator class %q", s)
	}
	return c, nil
}

func (c Class) Valid() bool {
	for _, v := range Classes {
		if c == v {
			return true
		}
	}
	return false
}

// Indicator is one extracted value in canonical (fanged) form.
type Indicator struct {
	Value string `json:"value" yaml:"value"`
	Class Class  `json:"class" yaml:"class"`
}

// Separator joins the values of a List.
const Separator = ", "

// List is an ordered set of extracted values.
type List []string

func (l List) String() string { return strings.Join(l, Separator) }

// Contains reports whether any element of l contains sub.
func (l List) Contains(sub string) bool {
	for _, v := range l {
		if strings.Contains(v, sub) {
			return true
		}
	}
	return false
}

// Map applies fn to each value, keeping order and dropping duplicates
// introduced by fn.
func (l List) Map(fn func(string) string) List {
	c := NewCollector(len(l))
	for _, v := range l {
		c.Add(fn(v))
	}
	return c.List()
}

// Collector accumulates values keeping the first occurrence of each.
type Collector struct {
	seen  map[string]struct{}
	items List
}

func NewCollector(hint int) *Collector {
	return &Collector{seen: make(map[string]struct{}, hint), items: make(List, 0, hint)}
}

// Add appends the values not seen before. Empty strings are ignored.
func (c *Collector) Add(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := c.seen[v]; ok {
			continue
		}
		c.seen[v] = struct{}{}
		c.items = append(c.items, v)
	}
}

func (c *Collector) Has(v string) bool {
	_, ok := c.seen[v]
	return ok
}

func (c *Collector) Len() int { return len(c.items) }

// List returns the collected values; nil when nothing was added.
func (c *Collector) List() List {
	if len(c.items) == 0 {
		return nil
	}
	return c.items
}

// Label turns a list of values into indicators of one class.
func Label(values List, class Class) []Indicator {
	out := make([]Indicator, 0, len(values))
	for _, v := range values {
		out = append(out, Indicator{Value: v, Class: class})
	}
	return out
}
