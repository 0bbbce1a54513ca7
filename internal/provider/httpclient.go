package provider

import (
	"net"
	"net/http"
	"time"

	appconfig "cryptorank/config"
)

// NewHTTPClient builds a pooled client. Outbound connections are bound to
// localIP when it parses as an address.
func NewHTTPClient(pool appconfig.ConnectionPoolConfig, localIP string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		DisableCompression:  false,
	}

	if localIP != "" {
		if ip := net.ParseIP(localIP); ip != nil {
			dialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}
			transport.DialContext = dialer.DialContext
		}
	}

	return &http.Client{Transport: transport, Timeout: timeout}
}
