package chrome

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func probeHTTP(url string) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverWebSocketURL queries the CDP /json/version endpoint for the
// browser-level debugger websocket URL chromedp.NewRemoteAllocator needs
// to attach to an already-running Chrome instance.
func DiscoverWebSocketURL(cdpPort int) (string, error) {
	endpoint := fmt.Sprintf("http://127.0.0.1:%d/json/version", cdpPort)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var v versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if v.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("%s returned no webSocketDebuggerUrl", endpoint)
	}
	return v.WebSocketDebuggerURL, nil
}
