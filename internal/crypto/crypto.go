// Package crypto extracts cryptocurrency wallet addresses.
package crypto

import (
	"regexp"

	"github.com/swarmguard/cti-refine/internal/ioc"
)

const base58 = `[1-9A-HJ-NP-Za-km-z]`

var (
	btcPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b1[a-km-zA-HJ-NP-Z1-9]{25,34}\b`),    // P2PKH
		regexp.MustCompile(`\b3[a-km-zA-HJ-NP-Z1-9]{25,34}\b`),    // P2SH
		regexp.MustCompile(`(?i)\bbc1q[ac-hj-np-z02-9]{38,58}\b`), // bech32
		regexp.MustCompile(`(?i)\bbc1p[ac-hj-np-z02-9]{38,58}\b`), // taproot
	}
	ethPattern  = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	xmrPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b4[0-9AB]` + base58 + `{93}\b`),
		regexp.MustCompile(`\b4[0-9AB]` + base58 + `{104}\b`), // integrated
		regexp.MustCompile(`\b8[0-9AB]` + base58 + `{93}\b`),  // subaddress
	}
	solPattern = regexp.MustCompile(`\b` + base58 + `{32,44}\b`)

	reDigits   = regexp.MustCompile(`^[0-9]+$`)
	reBTCStart = regexp.MustCompile(`(?i)^(?:[13]|bc1)`)
)

// BTC returns legacy, P2SH, bech32 and taproot Bitcoin addresses.
func BTC(text string) ioc.List { return matchAll(text, btcPatterns...) }

// ETH returns 0x-prefixed Ethereum addresses.
func ETH(text string) ioc.List { return matchAll(text, ethPattern) }

// XMR returns standard, integrated and subaddress Monero addresses.
func XMR(text string) ioc.List { return matchAll(text, xmrPatterns...) }

// SOL returns base58 strings of Solana address length that do not look like
// a number or a Bitcoin address.
func SOL(text string) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	for _, m := range solPattern.FindAllString(text, -1) {
		if reDigits.MatchString(m) || reBTCStart.MatchString(m) {
			continue
		}
		c.Add(m)
	}
	return c.List()
}

// All returns BTC, ETH, XMR and SOL addresses in that order.
func All(text string) ioc.List {
	c := ioc.NewCollector(8)
	for _, g := range groups(text) {
		c.Add(g.values...)
	}
	return c.List()
}

// Indicators labels each address with its chain. An address claimed by an
// earlier chain is not repeated.
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
		{ioc.BTC, BTC(text)},
		{ioc.ETH, ETH(text)},
		{ioc.XMR, XMR(text)},
		{ioc.SOL, SOL(text)},
	}
}

func matchAll(text string, patterns ...*regexp.Regexp) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	for _, re := range patterns {
		c.Add(re.FindAllString(text, -1)...)
	}
	return c.List()
}
