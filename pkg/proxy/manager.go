package proxy

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"sync"
)

const (
	ServiceNone       = "none"
	ServiceScraperAPI = "scraperapi"
	ServiceCustom     = "custom"
)

const scraperAPIHost = "proxy-server.scraperapi.com:8001"

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// Manager handles proxy selection and user agent rotation for outgoing scraper traffic.
type Manager struct {
	proxies    []string
	userAgents []string

	mu         sync.Mutex
	proxyIndex int
}

// NewManager builds a manager for the given service. ServiceNone (or "") disables proxying.
func NewManager(service, apiKey string, urls []string) (*Manager, error) {
	m := &Manager{userAgents: defaultUserAgents}

	switch service {
	case ServiceNone, "":
	case ServiceScraperAPI:
		if apiKey == "" {
			return nil, fmt.Errorf("proxy service %s needs an API key", service)
		}
		u := &url.URL{Scheme: "http", User: url.UserPassword("scraperapi", apiKey), Host: scraperAPIHost}
		m.proxies = []string{u.String()}
	case ServiceCustom:
		for _, raw := range urls {
			u, err := url.Parse(raw)
			if err != nil || u.Host == "" {
				return nil, fmt.Errorf("invalid proxy url %q", raw)
			}
			m.proxies = append(m.proxies, u.String())
		}
		if len(m.proxies) == 0 {
			return nil, fmt.Errorf("proxy service %s needs at least one url", service)
		}
	default:
		return nil, fmt.Errorf("unknown proxy service %q", service)
	}
	return m, nil
}

// Enabled reports whether traffic should go through a proxy.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.proxies) > 0
}

// Proxies returns the configured proxy URLs.
func (m *Manager) Proxies() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.proxies...)
}

// Next returns a proxy URL, rotating sequentially, or "" when proxying is off.
func (m *Manager) Next() string {
	if !m.Enabled() {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return p
}

// UserAgent returns a random realistic desktop user agent.
func (m *Manager) UserAgent() string {
	if m == nil || len(m.userAgents) == 0 {
		return defaultUserAgents[0]
	}
	return m.userAgents[rand.IntN(len(m.userAgents))]
}
