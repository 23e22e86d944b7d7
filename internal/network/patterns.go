package network

import "regexp"

const (
	octet = `(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`
	hex4  = `[0-9a-fA-F]{1,4}`
)

// characters that terminate a URL token
const urlStop = `\s<>"{}|\\^` + "`"

var (
	reURL           = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^` + urlStop + `\[\]]+`)
	reURLDefanged   = regexp.MustCompile(`(?i)\b(?:hx{1,2}ps?|h\[x{1,2}\]xps?|fxp)://[^` + urlStop + `]+`)
	reURLBracketed  = regexp.MustCompile(`(?i)\b(?:https?|hx{1,2}ps?|h\[x{1,2}\]xps?|ftp|fxp)\[:?\]//[^` + urlStop + `]+`)
	reDomain        = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.|\[\.\]))+[a-zA-Z]{2,}\b`)
	reDomainTLD     = regexp.MustCompile(`(?i)\.[a-z]{2,}$`)
	reIPv4          = regexp.MustCompile(`\b(?:` + octet + `\.){3}` + octet + `\b`)
	reIPv4Defanged  = regexp.MustCompile(`\b(?:` + octet + `\[?\.\]?){3}` + octet + `\b`)
	reEmail         = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	reEmailDefanged = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+(?:@|\[@\])[A-Za-z0-9.\[\]-]+\.?\[?\.\]?[A-Za-z]{2,}\b`)
)

// ipv6Plain covers the full form and every "::" compression position.
var ipv6Plain = compileAll(
	`\b(?:` + hex4 + `:){7}` + hex4 + `\b`,
	`\b(?:` + hex4 + `:){1,7}:\b`,
	`\b:(?::` + hex4 + `){1,7}\b`,
	`\b(?:` + hex4 + `:){1,6}:` + hex4 + `\b`,
	`\b(?:` + hex4 + `:){1,5}(?::` + hex4 + `){1,2}\b`,
	`\b(?:` + hex4 + `:){1,4}(?::` + hex4 + `){1,3}\b`,
	`\b(?:` + hex4 + `:){1,3}(?::` + hex4 + `){1,4}\b`,
	`\b(?:` + hex4 + `:){1,2}(?::` + hex4 + `){1,5}\b`,
	`\b` + hex4 + `:(?::` + hex4 + `){1,6}\b`,
	`\b::(?:` + hex4 + `:){0,5}` + hex4 + `\b`,
	`\b` + hex4 + `::(?:` + hex4 + `:){0,5}` + hex4 + `\b`,
	`\b::1\b`,
	`\b::\b`,
)

// ipv6Defanged matches addresses whose colons were bracketed.
var ipv6Defanged = compileAll(
	`\b(?:` + hex4 + `\[:\]){7}` + hex4 + `\b`,
	`\b(?:` + hex4 + `\[:\]){1,7}\[:\]\b`,
	`\b\[:\](?:\[:\]` + hex4 + `){1,7}\b`,
	`\b(?:` + hex4 + `\[:\]){1,6}\[:\]` + hex4 + `\b`,
	`\b[0-9a-fA-F]{0,4}(?:\[:\][0-9a-fA-F]{0,4}){2,7}\b`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
