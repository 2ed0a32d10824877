package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc is a function that extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// ClientIPExtractor extracts the real client IP from requests, handling
// X-Forwarded-For with trusted proxy validation. When no trusted proxies
// are configured, only RemoteAddr is used, so forwarding headers from an
// untrusted origin can never rotate the rate limit key.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates a new ClientIPExtractor with the given
// trusted proxy CIDRs. Entries may be CIDRs or single addresses; invalid
// entries are silently skipped. If trustedProxies is empty, the extractor
// always returns RemoteAddr.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// singleIPToCIDR converts a single IP address to a /32 or /128 CIDR.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Extract returns the real client IP from the request. If no trusted
// proxies are configured, it returns RemoteAddr (port stripped). If the
// direct connection is from a trusted proxy, it walks X-Forwarded-For
// right-to-left and returns the first non-trusted IP.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 {
		return remoteIP
	}

	if !e.isTrusted(remoteIP) {
		return remoteIP
	}

	return e.extractFromXFF(r, remoteIP)
}

// KeyFunc returns the extractor as a rate limit key function.
func (e *ClientIPExtractor) KeyFunc() KeyFunc {
	return e.Extract
}

// extractFromXFF parses X-Forwarded-For and returns the first non-trusted
// IP walking right-to-left, falling back when the whole chain is trusted.
func (e *ClientIPExtractor) extractFromXFF(r *http.Request, fallback string) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return fallback
	}

	ips := strings.Split(xff, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(ips[i])
		if ip == "" {
			continue
		}
		if !e.isTrusted(ip) {
			return ip
		}
	}

	return fallback
}

// isTrusted checks if the given IP string is within any trusted CIDR.
func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from an address string, handling both
// "192.0.2.1:8080" and "[::1]:8080" forms.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
