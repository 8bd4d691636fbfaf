package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/utils"
)

// AllowOnlyCIDRs allows only specific IPs/CIDRs. If the list is empty, it does NOT filter (passthrough).
func AllowOnlyCIDRs(allowed []string, log logger.Logger) func(http.Handler) http.Handler {
	m, invalid := utils.NewPrefixMatcher(allowed)
	if len(invalid) > 0 {
		log.Warn("ignoring invalid allowed CIDR entries", logger.Strings("entries", invalid))
	}
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := utils.ClientAddr(r)
			if !ok || !m.Allow(addr) {
				log.Debugf("AllowOnlyCIDRs: %s rejected on %s", r.RemoteAddr, r.URL.Path)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
