// Package extract exposes every extractor and transcoder as a named
// operation with the uniform signature func(text, defang) string.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/swarmguard/cti-refine/internal/crypto"
	"github.com/swarmguard/cti-refine/internal/defang"
	"github.com/swarmguard/cti-refine/internal/hash"
	"github.com/swarmguard/cti-refine/internal/ioc"
	"github.com/swarmguard/cti-refine/internal/network"
	"github.com/swarmguard/cti-refine/internal/social"
)

var ErrUnknownOperation = errors.New("unknown operation")

// Family groups operations by the extractor that backs them.
type Family string

const (
	FamilyTranscoder Family = "transcoder"
	FamilyNetwork    Family = "network"
	FamilyCrypto     Family = "crypto"
	FamilyHash       Family = "hash"
	FamilySocial     Family = "social"
)

// Func is the signature shared by every operation. Operations that cannot
// defang their output ignore the flag.
type Func func(text string, defang bool) string

// Operation is one entry of the table. Column is the default name of the
// column an extraction writes to; transcoder operations leave it empty and
// rewrite the source column instead.
type Operation struct {
	Name       string `json:"name" yaml:"name"`
	Family     Family `json:"family" yaml:"family"`
	Defangable bool   `json:"defangable" yaml:"defangable"`
	Column     string `json:"column,omitempty" yaml:"column,omitempty"`
	Run        Func   `json:"-" yaml:"-"`
}

// InPlace reports whether the operation rewrites its input column by default.
func (o Operation) InPlace() bool { return o.Column == "" }

// ColumnName returns the default output column for a run with the given
// defang flag.
func (o Operation) ColumnName(defangResult bool) string {
	if o.Column == "" {
		return ""
	}
	if defangResult && o.Defangable {
		return o.Column + "_defanged"
	}
	return o.Column
}

// Registry maps operation names to implementations. Lookup is
// case-insensitive.
type Registry struct {
	ops   map[string]Operation
	order []string
	net   *network.Extractor
}

// NewRegistry builds the full operation table around tc.
func NewRegistry(tc defang.Transcoder) *Registry {
	if tc == nil {
		tc = defang.Standard{}
	}
	r := &Registry{ops: make(map[string]Operation), net: network.New(tc)}

	r.Register(Operation{Name: "defang", Family: FamilyTranscoder, Run: ignoreFlag(tc.Defang)})
	r.Register(Operation{Name: "fang", Family: FamilyTranscoder, Run: ignoreFlag(tc.Fang)})
	r.Register(Operation{Name: "defangIPv6", Family: FamilyTranscoder, Run: ignoreFlag(defang.DefangIPv6)})
	r.Register(Operation{Name: "fangIPv6", Family: FamilyTranscoder, Run: ignoreFlag(defang.FangIPv6)})

	r.Register(Operation{Name: "extractURLs", Family: FamilyNetwork, Defangable: true, Column: "urls", Run: listFunc(r.net.URLs)})
	r.Register(Operation{Name: "extractDomains", Family: FamilyNetwork, Defangable: true, Column: "domains", Run: listFunc(r.net.Domains)})
	r.Register(Operation{Name: "extractIPv4", Family: FamilyNetwork, Defangable: true, Column: "ipv4", Run: listFunc(r.net.IPv4)})
	r.Register(Operation{Name: "extractIPv6", Family: FamilyNetwork, Defangable: true, Column: "ipv6", Run: listFunc(r.net.IPv6)})
	r.Register(Operation{Name: "extractIPs", Family: FamilyNetwork, Defangable: true, Column: "ips", Run: listFunc(r.net.IPs)})
	r.Register(Operation{Name: "extractEmails", Family: FamilyNetwork, Defangable: true, Column: "emails", Run: listFunc(r.net.Emails)})
	r.Register(Operation{Name: "extractAllIOCs", Family: FamilyNetwork, Defangable: true, Column: "all_iocs", Run: listFunc(r.net.All)})

	r.Register(Operation{Name: "extractBTC", Family: FamilyCrypto, Column: "btc", Run: plainFunc(crypto.BTC)})
	r.Register(Operation{Name: "extractETH", Family: FamilyCrypto, Column: "eth", Run: plainFunc(crypto.ETH)})
	r.Register(Operation{Name: "extractXMR", Family: FamilyCrypto, Column: "xmr", Run: plainFunc(crypto.XMR)})
	r.Register(Operation{Name: "extractSOL", Family: FamilyCrypto, Column: "sol", Run: plainFunc(crypto.SOL)})
	r.Register(Operation{Name: "extractAllCrypto", Family: FamilyCrypto, Column: "crypto", Run: plainFunc(crypto.All)})

	r.Register(Operation{Name: "extractMD5", Family: FamilyHash, Column: "md5", Run: plainFunc(hash.MD5)})
	r.Register(Operation{Name: "extractSHA1", Family: FamilyHash, Column: "sha1", Run: plainFunc(hash.SHA1)})
	r.Register(Operation{Name: "extractSHA256", Family: FamilyHash, Column: "sha256", Run: plainFunc(hash.SHA256)})
	r.Register(Operation{Name: "extractSHA512", Family: FamilyHash, Column: "sha512", Run: plainFunc(hash.SHA512)})
	r.Register(Operation{Name: "extractMurmurHash", Family: FamilyHash, Column: "murmurhash", Run: plainFunc(hash.Murmur)})
	r.Register(Operation{Name: "extractAllHashes", Family: FamilyHash, Column: "hashes", Run: plainFunc(hash.All)})

	r.Register(Operation{Name: "extractTelegramPosts", Family: FamilySocial, Column: "telegram_posts", Run: plainFunc(social.TelegramPosts)})
	r.Register(Operation{Name: "extractTelegramUsernames", Family: FamilySocial, Column: "telegram_usernames", Run: plainFunc(social.TelegramUsernames)})
	r.Register(Operation{Name: "extractBlueskyHandles", Family: FamilySocial, Column: "bluesky_handles", Run: plainFunc(social.BlueskyHandles)})
	r.Register(Operation{Name: "extractAllHandles", Family: FamilySocial, Column: "handles", Run: plainFunc(social.Handles)})
	r.Register(Operation{Name: "extractAllSocial", Family: FamilySocial, Column: "social", Run: plainFunc(social.All)})

	return r
}

var defaultRegistry = NewRegistry(defang.Standard{})

// Default returns the registry built around the standard transcoder.
func Default() *Registry { return defaultRegistry }

// Register adds or replaces an operation.
func (r *Registry) Register(op Operation) {
	key := strings.ToLower(op.Name)
	if _, exists := r.ops[key]; !exists {
		r.order = append(r.order, key)
	}
	r.ops[key] = op
}

func (r *Registry) Lookup(name string) (Operation, error) {
	op, ok := r.ops[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Run executes the named operation on text.
func (r *Registry) Run(name, text string, defangResult bool) (string, error) {
	op, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return op.Run(text, defangResult), nil
}

// Operations returns every registered operation in registration order.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.ops[k])
	}
	return out
}

// Names returns the operation names sorted alphabetically.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.ops[k].Name)
	}
	sort.Strings(out)
	return out
}

// Scan runs every extractor family over text and returns class-labelled
// indicators. A value claimed by an earlier family is not repeated.
func (r *Registry) Scan(text string) []ioc.Indicator {
	if text == "" {
		return nil
	}
	seen := ioc.NewCollector(16)
	var out []ioc.Indicator
	for _, batch := range [][]ioc.Indicator{
		r.net.Indicators(text),
		crypto.Indicators(text),
		hash.Indicators(text),
		social.Indicators(text),
	} {
		for _, ind := range batch {
			if seen.Has(ind.Value) {
				continue
			}
			seen.Add(ind.Value)
			out = append(out, ind)
		}
	}
	return out
}

func ignoreFlag(fn func(string) string) Func {
	return func(text string, _ bool) string { return fn(text) }
}

func listFunc(fn func(string, bool) ioc.List) Func {
	return func(text string, defangResult bool) string { return fn(text, defangResult).String() }
}

func plainFunc(fn func(string) ioc.List) Func {
	return func(text string, _ bool) string { return fn(text).String() }
}
