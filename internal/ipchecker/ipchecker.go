// Package ipchecker extracts client IP addresses from HTTP requests and
// validates them against a trusted subnet. The internal stats route is
// gated on it.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPChecker validates whether a request's client IP belongs to the
// configured trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New creates an IPChecker for the given CIDR. An empty string yields a
// disabled checker: IsTrustedSubnetEmpty reports true and Check always
// fails.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{
			trustedSubnet: nil,
		}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("error while `net.ParseCIDR()` calling: %w", err)
	}
	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// Check reports whether the given IP belongs to the trusted subnet.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP extracts the client's IP address from an HTTP request,
// checking "X-Real-IP", then "X-Forwarded-For", then RemoteAddr.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	ipStr := request.Header.Get("X-Real-IP")
	ip := net.ParseIP(ipStr)
	if ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		ip := strings.TrimSpace(ips[0])
		return net.ParseIP(ip), nil
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("error while `net.SplitHostPort()` calling: %w", err)
	}
	return net.ParseIP(host), nil
}

// IsTrustedSubnetEmpty reports whether the checker was initialized
// without a trusted subnet.
func (checker *IPChecker) IsTrustedSubnetEmpty() bool {
	return checker.trustedSubnet == nil
}
