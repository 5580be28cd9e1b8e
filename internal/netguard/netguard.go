// Package netguard keeps server-side fetches of caller supplied URLs away
// from loopback, link-local and cloud metadata addresses.
package netguard

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrBlocked is returned for hosts that must not be fetched.
var ErrBlocked = errors.New("netguard: blocked host")

var blockedNames = map[string]bool{
	"localhost":                true,
	"metadata":                 true,
	"metadata.google.internal": true,
}

// CheckHost returns ErrBlocked when host names, or resolves to, a loopback,
// link-local or unspecified address. Names that do not resolve pass; the
// fetch itself reports them.
func CheckHost(host string) error {
	h := strings.ToLower(strings.TrimSuffix(strings.Trim(host, "[]"), "."))
	if h == "" {
		return fmt.Errorf("%w: empty host", ErrBlocked)
	}
	if blockedNames[h] || strings.HasSuffix(h, ".localhost") {
		return fmt.Errorf("%w: %s", ErrBlocked, host)
	}
	if ip := net.ParseIP(h); ip != nil {
		return checkIP(host, ip)
	}
	ips, err := net.LookupIP(h)
	if err != nil {
		return nil //nolint:nilerr // unresolvable names fail at fetch time
	}
	for _, ip := range ips {
		if err := checkIP(host, ip); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(host string, ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("%w: loopback address %s", ErrBlocked, host)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("%w: link-local address %s", ErrBlocked, host)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: unspecified address %s", ErrBlocked, host)
	}
	return nil
}
