package utils

import (
	"net/url"
	"strings"
)

// WebsocketURL normalizes a relay address into the websocket endpoint to
// dial. http/https schemes are rewritten to ws/wss, a bare host:port gets
// the ws scheme, and the /ws path is appended when no path is present.
func WebsocketURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return addr
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String()
}
