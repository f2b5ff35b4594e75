package chrome

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func listenOnPort(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	return ln, port
}

func TestProbeHTTP_TrueOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.True(t, probeHTTP(srv.URL))
}

func TestProbeHTTP_FalseOnConnectionRefused(t *testing.T) {
	ln, port := listenOnPort(t)
	ln.Close()

	require.False(t, probeHTTP("http://127.0.0.1:"+strconv.Itoa(port)))
}

func TestDiscoverWebSocketURL_ParsesVersionResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"webSocketDebuggerUrl":"ws://127.0.0.1:9223/devtools/browser/abc"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", host)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	url, err := DiscoverWebSocketURL(port)
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:9223/devtools/browser/abc", url)
}

func TestDiscoverWebSocketURL_ErrorsOnMissingWebSocketURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	_, err = DiscoverWebSocketURL(port)
	require.Error(t, err)
}

func TestDiscoverWebSocketURL_ErrorsWhenUnreachable(t *testing.T) {
	ln, port := listenOnPort(t)
	ln.Close()

	_, err := DiscoverWebSocketURL(port)
	require.Error(t, err)
}
