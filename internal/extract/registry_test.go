package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/swarmguard/cti-refine/internal/ioc"
)

func TestOperationTableComplete(t *testing.T) {
	names := []string{
		"defang", "fang", "defangIPv6", "fangIPv6",
		"extractURLs", "extractDomains", "extractIPv4", "extractIPv6", "extractIPs", "extractEmails", "extractAllIOCs",
		"extractBTC", "extractETH", "extractXMR", "extractSOL", "extractAllCrypto",
		"extractMD5", "extractSHA1", "extractSHA256", "extractSHA512", "extractMurmurHash", "extractAllHashes",
		"extractTelegramPosts", "extractTelegramUsernames", "extractBlueskyHandles", "extractAllHandles", "extractAllSocial",
	}
	r := Default()
	for _, n := range names {
		if _, err := r.Lookup(n); err != nil {
			t.Errorf("missing operation %s: %v", n, err)
		}
	}
	if len(r.Operations()) != len(names) {
		t.Fatalf("expected %d operations, got %d", len(names), len(r.Operations()))
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	op, err := Default().Lookup("  EXTRACTurls ")
	if err != nil || op.Name != "extractURLs" {
		t.Fatalf("got %+v, %v", op, err)
	}
}

func TestUnknownOperation(t *testing.T) {
	_, err := Default().Run("extractPasswords", "x", false)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestScenarios(t *testing.T) {
	cases := []struct {
		op     string
		text   string
		defang bool
		want   string
	}{
		{"extractURLs", "Visit hxxp://evil[.]com/login now", false, "http://evil.com/login"},
		{"extractAllIOCs", "Contact admin@test[.]com or see 192[.]168[.]1[.]1", true, "192[.]168[.]1[.]1, admin[@]test[.]com"},
		{"extractAllCrypto", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e then 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false,
			"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa, 0x742d35Cc6634C0532925a3b844Bc454e4438f44e"},
		{"extractAllHashes", "hash d41d8cd98f00b204e9800998ecf8427e seen", false, "d41d8cd98f00b204e9800998ecf8427e"},
		{"extractBlueskyHandles", "@alice.bsky.social posted", false, "alice.bsky.social"},
		{"extractAllSocial", "@alice.bsky.social posted", false, "@alice.bsky.social"},
		{"extractAllIOCs", "", true, ""},
		{"defang", "http://evil.com", false, "hxxp[:]//evil[.]com"},
		{"fang", "hxxp[:]//evil[.]com", true, "http://evil.com"},
		{"defangIPv6", "fe80::1", false, "fe80[:][:]1"},
		{"fangIPv6", "fe80[:][:]1", false, "fe80::1"},
	}
	r := Default()
	for _, c := range cases {
		got, err := r.Run(c.op, c.text, c.defang)
		if err != nil {
			t.Fatalf("%s: %v", c.op, err)
		}
		if got != c.want {
			t.Errorf("%s(%q, %v) = %q, want %q", c.op, c.text, c.defang, got, c.want)
		}
	}
}

func TestEmptyInputAllOperations(t *testing.T) {
	for _, op := range Default().Operations() {
		if got := op.Run("", true); got != "" {
			t.Errorf("%s on empty input returned %q", op.Name, got)
		}
	}
}

func TestColumnNames(t *testing.T) {
	r := Default()
	cases := []struct {
		op     string
		defang bool
		want   string
	}{
		{"extractURLs", false, "urls"},
		{"extractURLs", true, "urls_defanged"},
		{"extractAllIOCs", true, "all_iocs_defanged"},
		{"extractBTC", true, "btc"},
		{"defang", false, ""},
	}
	for _, c := range cases {
		op, _ := r.Lookup(c.op)
		if got := op.ColumnName(c.defang); got != c.want {
			t.Errorf("%s(%v): got %q want %q", c.op, c.defang, got, c.want)
		}
	}
	if op, _ := r.Lookup("fang"); !op.InPlace() {
		t.Fatalf("fang should rewrite in place")
	}
}

func TestScanLabelsAcrossFamilies(t *testing.T) {
	text := strings.Join([]string{
		"hxxp://evil[.]com/x",
		"d41d8cd98f00b204e9800998ecf8427e",
		"0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"@eve",
	}, " ")
	got := Default().Scan(text)
	classes := map[ioc.Class]string{}
	for _, ind := range got {
		if _, dup := classes[ind.Class]; dup && ind.Class != ioc.Domain {
			t.Fatalf("unexpected repeat class %s in %+v", ind.Class, got)
		}
		classes[ind.Class] = ind.Value
	}
	if classes[ioc.URL] != "http://evil.com/x" {
		t.Errorf("url: %+v", got)
	}
	if classes[ioc.MD5] != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("md5: %+v", got)
	}
	if classes[ioc.ETH] != "0x742d35Cc6634C0532925a3b844Bc454e4438f44e" {
		t.Errorf("eth: %+v", got)
	}
	if classes[ioc.Handle] != "@eve" {
		t.Errorf("handle: %+v", got)
	}
	seen := map[string]bool{}
	for _, ind := range got {
		if seen[ind.Value] {
			t.Fatalf("duplicate value %q", ind.Value)
		}
		seen[ind.Value] = true
	}
}
