package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
)

// TrustedCIDR admits only requests whose X-Real-IP lies inside cidr. An empty cidr admits everything.
func TrustedCIDR(cidr string) (func(http.Handler) http.Handler, error) {
	if cidr == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted subnet %q: %w", cidr, err)
	}
	prefix = prefix.Masked()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := netip.ParseAddr(r.Header.Get("X-Real-IP"))
			if err != nil || !prefix.Contains(ip.Unmap()) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
