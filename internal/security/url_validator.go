package security

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// fetchDeniedPrefixes are the address ranges HttpRequest must never be
// steered into by a templated URL: loopback, RFC 1918 private space,
// link-local (where cloud metadata services live), and their IPv6
// equivalents. Parsed once; netip.MustParsePrefix panics only on a
// malformed literal, which would be a programming error here.
var fetchDeniedPrefixes = func() []netip.Prefix {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	prefixes := make([]netip.Prefix, len(cidrs))
	for i, c := range cidrs {
		prefixes[i] = netip.MustParsePrefix(c)
	}
	return prefixes
}()

// URLValidator decides whether an outbound URL — rendered per record,
// so effectively attacker-influenced — may be fetched. Every hostname
// is resolved and every resolved address checked, so a DNS name
// pointing into private space is caught the same as a literal IP.
type URLValidator struct {
	// allow holds prefixes exempted from the deny list, for
	// deployments that genuinely need to reach an internal endpoint.
	allow []netip.Prefix
}

// NewURLValidator returns a validator with the default deny list and no
// exemptions.
func NewURLValidator() *URLValidator {
	return &URLValidator{}
}

// Allow exempts a CIDR range from the deny list. Unparseable ranges are
// reported rather than silently skipped, since a typo here would
// quietly re-block a range the operator believes is open.
func (v *URLValidator) Allow(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("security: allow range %q: %w", cidr, err)
	}
	v.allow = append(v.allow, p)
	return nil
}

// ValidateURL reports whether raw is safe to fetch: http/https only, a
// resolvable host, and no resolved address inside a denied range.
func (v *URLValidator) ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("security: url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("security: parse url: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return fmt.Errorf("security: scheme %q not allowed, use http or https", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("security: url has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("security: host %q denied", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return v.checkAddr(addr)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("security: resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			return fmt.Errorf("security: host %s resolved to unusable address %s", host, ip)
		}
		if err := v.checkAddr(addr); err != nil {
			return fmt.Errorf("security: host %s: %w", host, err)
		}
	}
	return nil
}

func (v *URLValidator) checkAddr(addr netip.Addr) error {
	// A 4-in-6 mapped literal like ::ffff:127.0.0.1 must hit the IPv4
	// prefixes, not slip past them as IPv6.
	addr = addr.Unmap()
	for _, p := range v.allow {
		if p.Contains(addr) {
			return nil
		}
	}
	for _, p := range fetchDeniedPrefixes {
		if p.Contains(addr) {
			return fmt.Errorf("address %s is in denied range %s", addr, p)
		}
	}
	return nil
}
