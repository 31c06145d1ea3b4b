package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// NewClientIPMiddleware は信頼するプロキシから届いたリクエストに限り、
// X-Forwarded-For（なければX-Real-IP）からクライアントIPを復元してRemoteAddrに設定する。
//
// X-Forwarded-Forは右端から辿り、信頼するプロキシ以外で最初に現れたアドレスを採用する。
// 接続元が信頼するプロキシでない場合、転送ヘッダーは無視する。
// trustedが空の場合は何もしない。
func NewClientIPMiddleware(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := remoteAddr(r)
			if ok && isTrusted(trusted, peer) {
				if ip, found := forwardedClient(r, trusted); found {
					r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient は転送ヘッダーから信頼できるクライアントIPを取り出す。
func forwardedClient(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	var hops []netip.Addr
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, field := range strings.Split(value, ",") {
			addr, err := netip.ParseAddr(strings.TrimSpace(field))
			if err != nil {
				// 解釈できない値が混ざったチェーンは信用しない
				return netip.Addr{}, false
			}
			hops = append(hops, addr.Unmap())
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		if !isTrusted(trusted, hops[i]) {
			return hops[i], true
		}
	}
	if len(hops) > 0 {
		return hops[0], true
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func remoteAddr(r *http.Request) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(clientIP(r))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
