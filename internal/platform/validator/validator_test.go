// internal/platform/validator/validator_test.go
package validator

import (
	"testing"

	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestIsDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid domain", "example.com", true},
		{"valid subdomain", "test.example.com", true},
		{"valid multi-level", "api.test.example.com", true},
		{"empty string", "", false},
		{"too long", string(make([]byte, 300)), false},
		{"ip address", "192.168.1.1", false},
		{"invalid chars", "exam ple.com", false},
		{"starts with hyphen", "-example.com", false},
		{"ends with hyphen", "example-.com", false},
		{"single label", "localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsDomain(tt.input)
			testutil.AssertEqual(t, result, tt.expected, "domain validation")
		})
	}
}

func TestIsRegistrable(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"registrable domain", "example.com", true},
		{"subdomain of registrable", "api.example.com", true},
		{"bare tld", "com", false},
		{"bare multi-part tld", "co.uk", false},
		{"private suffix site", "myproject.github.io", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRegistrable(tt.input)
			testutil.AssertEqual(t, result, tt.expected, "registrable check")
		})
	}
}

func TestIsSubdomain(t *testing.T) {
	tests := []struct {
		name       string
		subdomain  string
		baseDomain string
		expected   bool
	}{
		{"valid subdomain", "test.example.com", "example.com", true},
		{"multi-level subdomain", "api.test.example.com", "example.com", true},
		{"same domain", "example.com", "example.com", false},
		{"not a subdomain", "other.com", "example.com", false},
		{"partial match", "example.com.test", "example.com", false},
		{"suffix without dot", "notexample.com", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsSubdomain(tt.subdomain, tt.baseDomain)
			testutil.AssertEqual(t, result, tt.expected, "subdomain check")
		})
	}
}

func TestInScope(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		target    string
		expected  bool
	}{
		{"target itself", "example.com", "example.com", true},
		{"direct subdomain", "www.example.com", "example.com", true},
		{"deep subdomain", "a.b.example.com", "example.com", true},
		{"other domain", "example.org", "example.com", false},
		{"lookalike suffix", "notexample.com", "example.com", false},
		{"case and spaces", "  WWW.Example.COM ", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InScope(tt.candidate, tt.target)
			testutil.AssertEqual(t, result, tt.expected, "scope check")
		})
	}
}

func TestIsHostname(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"plain hostname", "www.example.com", true},
		{"underscore label", "_dmarc.example.com", true},
		{"dkim selector", "selector1._domainkey.example.com", true},
		{"no dot", "localhost", false},
		{"empty", "", false},
		{"ip address", "10.0.0.1", false},
		{"embedded space", "www example.com", false},
		{"leading hyphen", "-www.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsHostname(tt.input)
			testutil.AssertEqual(t, result, tt.expected, "hostname syntax")
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "EXAMPLE.COM", "example.com"},
		{"trim spaces", "  example.com  ", "example.com"},
		{"trailing dot", "example.com.", "example.com"},
		{"www prefix", "www.example.com", "example.com"},
		{"all combined", "  WWW.Example.COM.  ", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeDomain(tt.input)
			testutil.AssertEqual(t, result, tt.expected, "normalized domain")
		})
	}
}

func TestCleanHostname(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain line", "www.example.com", "www.example.com"},
		{"ansi colors", "\x1b[36mwww.example.com\x1b[0m", "www.example.com"},
		{"uppercase", "API.Example.COM", "api.example.com"},
		{"surrounding whitespace", "  mail.example.com\t\n", "mail.example.com"},
		{"fqdn trailing dot", "ns1.example.com.", "ns1.example.com"},
		{"ansi plus fqdn", "\x1b[1;32mCDN.example.com.\x1b[0m", "cdn.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanHostname(tt.input)
			testutil.AssertEqual(t, result, tt.expected, "cleaned hostname")
		})
	}
}

func TestStripWildcard(t *testing.T) {
	testutil.AssertEqual(t, StripWildcard("*.example.com"), "example.com", "wildcard stripped")
	testutil.AssertEqual(t, StripWildcard("www.example.com"), "www.example.com", "non-wildcard untouched")
}

func TestHostWithoutPort(t *testing.T) {
	testutil.AssertEqual(t, HostWithoutPort("example.com:8443"), "example.com", "port stripped")
	testutil.AssertEqual(t, HostWithoutPort("example.com"), "example.com", "no port untouched")
}

func TestIsIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid ipv4", "192.168.1.1", true},
		{"valid ipv6", "2001:db8::1", true},
		{"hostname", "example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsIP(tt.input)
			testutil.AssertEqual(t, result, tt.expected, "ip validation")
		})
	}
}

func TestIsIPv4(t *testing.T) {
	testutil.AssertTrue(t, IsIPv4("10.0.0.1"), "ipv4 accepted")
	testutil.AssertFalse(t, IsIPv4("2001:db8::1"), "ipv6 rejected")
	testutil.AssertFalse(t, IsIPv4("not-an-ip"), "garbage rejected")
}

func TestNormalizeIP(t *testing.T) {
	testutil.AssertEqual(t, NormalizeIP(" 192.168.1.1 "), "192.168.1.1", "ipv4 trimmed")
	testutil.AssertEqual(t, NormalizeIP("2001:0db8:0000:0000:0000:0000:0000:0001"), "2001:db8::1", "ipv6 canonical")
	testutil.AssertEqual(t, NormalizeIP("bogus"), "", "invalid empty")
}

func TestIsEmpty(t *testing.T) {
	testutil.AssertTrue(t, IsEmpty(""), "empty string")
	testutil.AssertTrue(t, IsEmpty("   \t\n"), "whitespace only")
	testutil.AssertFalse(t, IsEmpty("x"), "non-empty")
}
