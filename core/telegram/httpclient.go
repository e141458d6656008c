package telegram

import (
	"net"
	"net/http"
	"time"
)

// Bot API request budget on top of the long poll itself.
const requestBudget = 30 * time.Second

// BuildHTTPClient returns the client used for Bot API calls. It never
// retries. Timeouts grow with longPoll so getUpdates can block that long.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: requestBudget + longPoll,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 20*time.Second + longPoll,
			ExpectContinueTimeout: time.Second,
		},
	}
}
