// Package social extracts Telegram links, Bluesky handles and generic
// @handles.
package social

import (
	"regexp"
	"strings"

	"github.com/swarmguard/cti-refine/internal/ioc"
)

const telegramBase = "https://t.me/"

var (
	reTelegramPost     = regexp.MustCompile(`https?://t\.me/([a-zA-Z0-9_]+)/(\d+)`)
	reTelegramChannel  = regexp.MustCompile(`https?://t\.me/([a-zA-Z0-9_]+)(?:/|$|\s)`)
	reTelegramUsername = regexp.MustCompile(`t\.me/([a-zA-Z0-9_]+)`)

	blueskyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`@[a-zA-Z0-9_-]+\.bsky\.social`),
		regexp.MustCompile(`@[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z]{2,}`),
		regexp.MustCompile(`@[a-zA-Z0-9_.-]+\.brid\.gy`),
	}
	handlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`@[a-zA-Z0-9_.-]+(?:@|\.)[a-zA-Z0-9_.-]+\.[a-zA-Z]{2,}`),
		regexp.MustCompile(`@[a-zA-Z0-9_-]+`),
	}
)

// TelegramPosts returns t.me post links (channel plus numeric id).
func TelegramPosts(text string) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	c.Add(reTelegramPost.FindAllString(text, -1)...)
	return c.List()
}

// TelegramUsernames returns channel names from post and channel links.
func TelegramUsernames(text string) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	for _, re := range []*regexp.Regexp{reTelegramPost, reTelegramChannel} {
		for _, m := range re.FindAllString(text, -1) {
			if sub := reTelegramUsername.FindStringSubmatch(m); sub != nil {
				c.Add(sub[1])
			}
		}
	}
	return c.List()
}

// BlueskyHandles returns handles without the leading '@'.
func BlueskyHandles(text string) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	for _, re := range blueskyPatterns {
		for _, m := range re.FindAllString(text, -1) {
			c.Add(m[1:])
		}
	}
	return c.List()
}

// Handles returns every @handle, compound forms first, with the '@' kept.
func Handles(text string) ioc.List {
	if text == "" {
		return nil
	}
	c := ioc.NewCollector(4)
	for _, re := range handlePatterns {
		for _, m := range re.FindAllString(text, -1) {
			if len(m) > 1 {
				c.Add(m)
			}
		}
	}
	return c.List()
}

// All merges posts, channel links, Bluesky handles and the generic handles
// that do not overlap an entry already collected.
func All(text string) ioc.List {
	var out ioc.List
	for _, ind := range Indicators(text) {
		out = append(out, ind.Value)
	}
	return out
}

// Indicators is All with each value labelled by class.
func Indicators(text string) []ioc.Indicator {
	if text == "" {
		return nil
	}
	var out []ioc.Indicator
	collected := func() ioc.List {
		l := make(ioc.List, len(out))
		for i, ind := range out {
			l[i] = ind.Value
		}
		return l
	}

	out = append(out, ioc.Label(TelegramPosts(text), ioc.TelegramPost)...)
	for _, u := range TelegramUsernames(text) {
		link := telegramBase + u
		if hasPrefix(collected(), link) {
			continue
		}
		out = append(out, ioc.Indicator{Value: link, Class: ioc.TelegramUsername})
	}
	for _, h := range BlueskyHandles(text) {
		out = append(out, ioc.Indicator{Value: "@" + h, Class: ioc.BlueskyHandle})
	}
	// approximate overlap check: either side containing the other counts
	for _, h := range Handles(text) {
		if overlaps(collected(), h) {
			continue
		}
		out = append(out, ioc.Indicator{Value: h, Class: ioc.Handle})
	}

	seen := ioc.NewCollector(len(out))
	uniq := out[:0]
	for _, ind := range out {
		if seen.Has(ind.Value) {
			continue
		}
		seen.Add(ind.Value)
		uniq = append(uniq, ind)
	}
	if len(uniq) == 0 {
		return nil
	}
	return uniq
}

func hasPrefix(l ioc.List, prefix string) bool {
	for _, v := range l {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

func overlaps(l ioc.List, h string) bool {
	for _, v := range l {
		if strings.Contains(v, h) || strings.Contains(h, v) {
			return true
		}
	}
	return false
}
