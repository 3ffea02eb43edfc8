// Package safeurl classifies URLs as safe or unsafe to fetch server-side.
// Both checks are pure predicates: no DNS lookups, no network.
package safeurl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxURLLength caps accepted URLs; anything longer is rejected outright.
const MaxURLLength = 2000

// Result is the outcome of a URL safety check.
type Result struct {
	OK     bool
	Reason string
}

func reject(reason string) Result {
	return Result{OK: false, Reason: reason}
}

var localhostNames = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
	"::1",
	"::",
	"::ffff:127.0.0.1",
	"ip6-localhost",
	"ip6-loopback",
}

var metadataHosts = []string{
	"metadata.google.internal",
	"metadata.goog",
	"169.254.169.254",
}

// trustedJobDomains is the allowlist used by CheckTrusted: exact matches and
// subdomains of these job boards and ATS providers are permitted.
var trustedJobDomains = []string{
	"linkedin.com",
	"indeed.com",
	"glassdoor.com",
	"dice.com",
	"monster.com",
	"ziprecruiter.com",
	"simplyhired.com",
	"careerbuilder.com",
	"jobsdb.com",
	"jobthai.com",
	"greenhouse.io",
	"lever.co",
	"workday.com",
	"myworkdayjobs.com",
	"smartrecruiters.com",
	"ashbyhq.com",
	"jobvite.com",
}

// Check validates a URL against the SSRF blocklist: scheme, localhost names,
// private/special IPv4 ranges, private IPv6 prefixes, cloud metadata hosts,
// and total length. It never panics and never returns an error; an unparsable
// URL is simply unsafe.
func Check(raw string) Result {
	parsed, err := url.Parse(raw)
	if err != nil {
		return reject("invalid URL format")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return reject("only HTTP(S) protocols allowed")
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return reject("missing hostname")
	}

	for _, name := range localhostNames {
		if hostname == name {
			return reject("localhost URLs not allowed")
		}
	}

	if reason, blocked := blockedIPv4(hostname); blocked {
		return reject(reason)
	}

	if strings.Contains(hostname, ":") {
		if reason, blocked := blockedIPv6(hostname); blocked {
			return reject(reason)
		}
	}

	for _, host := range metadataHosts {
		if hostname == host {
			return reject("blocked metadata endpoint")
		}
	}

	if len(raw) > MaxURLLength {
		return reject("URL too long")
	}

	return Result{OK: true}
}

// CheckTrusted is the stricter allowlist variant: on top of every Check rule,
// the hostname must exactly match or be a subdomain of a trusted job-board
// domain. Used when fetching goes to an arbitrary origin rather than through
// a curated reader service.
func CheckTrusted(raw string) Result {
	if res := Check(raw); !res.OK {
		return res
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return reject("invalid URL format")
	}
	hostname := strings.ToLower(parsed.Hostname())

	for _, domain := range trustedJobDomains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return Result{OK: true}
		}
	}
	return reject(fmt.Sprintf("domain %s is not in the trusted job sites list", hostname))
}

// blockedIPv4 reports whether a dotted-quad hostname falls in a private or
// special-use range. Non-IP hostnames pass through.
func blockedIPv4(hostname string) (string, bool) {
	parts := strings.Split(hostname, ".")
	if len(parts) != 4 {
		return "", false
	}
	octets := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", false
		}
		if n < 0 || n > 255 {
			return "invalid IP address", true
		}
		octets[i] = n
	}

	switch {
	case octets[0] == 10:
		return "private IP range", true
	case octets[0] == 192 && octets[1] == 168:
		return "private IP range", true
	case octets[0] == 172 && octets[1] >= 16 && octets[1] <= 31:
		return "private IP range", true
	case octets[0] == 169 && octets[1] == 254:
		return "link-local IP", true
	case octets[0] == 127:
		return "loopback IP", true
	case octets[0] == 0:
		return "invalid IP range", true
	}
	return "", false
}

// blockedIPv6 reports whether a colon-form hostname is a private, link-local,
// or multicast IPv6 address.
func blockedIPv6(hostname string) (string, bool) {
	switch {
	case strings.HasPrefix(hostname, "fc"), strings.HasPrefix(hostname, "fd"):
		return "private IPv6 range", true
	case strings.HasPrefix(hostname, "fe80"):
		return "link-local IPv6", true
	case strings.HasPrefix(hostname, "ff"):
		return "multicast IPv6", true
	case hostname == "::" || hostname == "::1":
		return "loopback IPv6", true
	}
	return "", false
}
