package proxy

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// DefaultUserAgents are used when no user agents are configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
}

// Manager hands out the launch identity of a browser session: the proxy
// server, rotating sequentially, and a user agent.
type Manager struct {
	proxies    []string
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
}

// NewManager keeps the non-blank entries of proxies and userAgents. An empty
// user agent list falls back to DefaultUserAgents.
func NewManager(proxies, userAgents []string) *Manager {
	m := &Manager{
		proxies:    compact(proxies),
		userAgents: compact(userAgents),
	}
	if len(m.userAgents) == 0 {
		m.userAgents = DefaultUserAgents
	}
	return m
}

// GetProxy returns the next proxy URL, or "" when none are configured.
func (m *Manager) GetProxy() string {
	if len(m.proxies) == 0 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	proxy := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return proxy
}

// GetUserAgent returns a random configured user agent.
func (m *Manager) GetUserAgent() string {
	return m.userAgents[rand.IntN(len(m.userAgents))]
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
