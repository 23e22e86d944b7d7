package defang

import "testing"

func TestDefang(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"http://evil.com/login", "hxxp[:]//evil[.]com/login"},
		{"HTTPS://Evil.com", "hxxps[:]//Evil[.]com"},
		{"ftp://files.example.org", "fxp[:]//files[.]example[.]org"},
		{"192.168.1.1", "192[.]168[.]1[.]1"},
		{"user@evil.com", "user[@]evil[.]com"},
		{"a.b.c.d", "a[.]b[.]c[.]d"},
		{"end of sentence. Next", "end of sentence. Next"},
	}
	for _, c := range cases {
		if got := Defang(c.in); got != c.want {
			t.Errorf("Defang(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFang(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"hxxp://evil[.]com/login", "http://evil.com/login"},
		{"hxxps[:]//evil[.]com", "https://evil.com"},
		{"hxp://evil[.]com", "http://evil.com"},
		{"h[xx]xps://evil[.]com", "https://evil.com"},
		{"h[x]xp://evil[.]com", "http://evil.com"},
		{"fxp[:]//files[.]example[.]org", "ftp://files.example.org"},
		{"admin[ @]test[. ]com", "admin@test.com"},
		{"plain text", "plain text"},
	}
	for _, c := range cases {
		if got := Fang(c.in); got != c.want {
			t.Errorf("Fang(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{
		"http://evil.com/login?id=1",
		"https://sub.domain.example.co.uk/path",
		"ftp://files.example.org/pub",
		"10.0.0.254",
		"first.last@mail.example.net",
	} {
		if got := Fang(Defang(in)); got != in {
			t.Errorf("Fang(Defang(%q)) = %q", in, got)
		}
	}
}

func TestIPv6RoundTrip(t *testing.T) {
	in := "2001:db8::8a2e:370:7334"
	d := DefangIPv6(in)
	if d != "2001[:]db8[:][:]8a2e[:]370[:]7334" {
		t.Fatalf("unexpected defanged form %q", d)
	}
	if got := FangIPv6(d); got != in {
		t.Fatalf("FangIPv6 = %q, want %q", got, in)
	}
}

func TestStandardTranscoder(t *testing.T) {
	var tc Transcoder = Standard{}
	if tc.Fang(tc.Defang("http://a.io")) != "http://a.io" {
		t.Fatalf("standard transcoder does not round-trip")
	}
}
