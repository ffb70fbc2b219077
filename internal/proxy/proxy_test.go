package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/mockapi"
)

const exampleAPI = `{
  "example": {
    "baseUrl": "http://example.com",
    "endpoints": {
      "root": {
        "index": {"path": "/", "method": "get", "parameters": {"path": [], "query": [], "body": []}}
      }
    }
  }
}`

func exampleMock(t *testing.T, repeat int) *mockapi.ResponseMocker {
	t.Helper()
	api, err := mockapi.New([]byte(exampleAPI))
	require.NoError(t, err)
	rm, err := api.Mock("example", "root", "index")
	require.NoError(t, err)
	return rm.Request(nil).SetResponse(mockapi.Response{
		Status:  200,
		Headers: map[string]string{"X-Mocked": "yes"},
		Data:    "ok",
		Repeat:  repeat,
	})
}

func startProxy(t *testing.T, mocks []mockapi.Responder, cfg Config) (*Proxy, string) {
	t.Helper()
	cfg.ListenHost = "127.0.0.1"
	cfg.AdvertiseIP = "127.0.0.1"
	p := New(mocks, cfg)
	addr, err := p.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		if p.Addr() != "" {
			_ = p.Stop(context.Background())
		}
	})
	return p, addr
}

func proxyClient(addr string) *http.Client {
	u := &url.URL{Scheme: "http", Host: addr}
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		Timeout:   5 * time.Second,
	}
}

// connect opens a raw connection to the proxy, sends a CONNECT request and
// returns the status line of the answer.
func connect(t *testing.T, proxyAddr, target string) (net.Conn, *bufio.Reader, string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", proxyAddr, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", target, target)
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	require.NoError(t, err)
	return conn, br, strings.TrimSpace(status)
}

func skipHeaders(t *testing.T, br *bufio.Reader) {
	t.Helper()
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			return
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	p := New(nil, Config{ListenHost: "127.0.0.1", AdvertiseIP: "127.0.0.1"})

	err := p.Stop(context.Background())
	assert.True(t, errors.Is(err, acterrors.ErrProxyLifecycle))

	addr, err := p.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "127.0.0.1:"))
	assert.Equal(t, addr, p.Addr())

	_, err = p.Start(context.Background())
	assert.True(t, errors.Is(err, acterrors.ErrProxyLifecycle))

	require.NoError(t, p.Stop(context.Background()))
	assert.Empty(t, p.Addr())
	assert.True(t, errors.Is(p.Stop(context.Background()), acterrors.ErrProxyLifecycle))

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)

	// A stopped proxy can be started again.
	_, err = p.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Stop(context.Background()))
}

func TestStartFailsWithoutIPv4(t *testing.T) {
	orig := interfaceAddrs
	t.Cleanup(func() { interfaceAddrs = orig })
	interfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)}}, nil
	}

	_, err := New(nil, Config{ListenHost: "127.0.0.1"}).Start(context.Background())
	assert.True(t, errors.Is(err, acterrors.ErrProxyLifecycle))
}

func TestLocalIPv4(t *testing.T) {
	orig := interfaceAddrs
	t.Cleanup(func() { interfaceAddrs = orig })
	interfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)},
			&net.IPNet{IP: net.ParseIP("10.0.0.5"), Mask: net.CIDRMask(8, 32)},
		}, nil
	}

	ip, err := localIPv4()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", ip)
}

func TestHTTPMock(t *testing.T) {
	p, addr := startProxy(t, []mockapi.Responder{exampleMock(t, 1)}, Config{})

	resp, err := proxyClient(addr).Get("http://example.com/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "yes", resp.Header.Get("X-Mocked"))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Requests.WithLabelValues(outcomeMocked)))
}

func TestHTTPPassThrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Origin", r.URL.Query().Get("q"))
		w.WriteHeader(http.StatusTeapot)
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s %s", r.Method, r.URL.Path, body)
	}))
	defer origin.Close()

	p, addr := startProxy(t, []mockapi.Responder{exampleMock(t, 1)}, Config{})

	resp, err := proxyClient(addr).Post(origin.URL+"/hello?q=1", "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Origin"))
	assert.Equal(t, "POST /hello payload", string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Requests.WithLabelValues(outcomeForwarded)))
}

func TestHTTPDoesNotFollowRedirects(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer origin.Close()

	_, addr := startProxy(t, nil, Config{})
	client := proxyClient(addr)
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(origin.URL + "/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestHTTPUnreachableOrigin(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := ln.Addr().String()
	ln.Close()

	p, addr := startProxy(t, nil, Config{})
	resp, err := proxyClient(addr).Get("http://" + dead + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Requests.WithLabelValues(outcomeError)))
}

func TestConnectPort80IsRerouted(t *testing.T) {
	p, addr := startProxy(t, []mockapi.Responder{exampleMock(t, 2)}, Config{})

	for i := 0; i < 2; i++ {
		conn, br, status := connect(t, addr, "example.com:80")
		require.Equal(t, "HTTP/1.1 200 OK", status)
		skipHeaders(t, br)

		_, err := io.WriteString(conn, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
		require.NoError(t, err)
		resp, err := http.ReadResponse(br, nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", string(body))
	}

	p.mu.Lock()
	sec := p.secondary
	p.mu.Unlock()
	require.NotNil(t, sec)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.Metrics().Tunnels.WithLabelValues(tunnelRerouted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(sec.Metrics().Requests.WithLabelValues(outcomeMocked)))

	require.NoError(t, p.Stop(context.Background()))
	assert.Empty(t, sec.Addr())
}

func TestConnectDirectTunnel(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "through the tunnel")
	}))
	defer origin.Close()
	target := strings.TrimPrefix(origin.URL, "http://")

	p, addr := startProxy(t, []mockapi.Responder{exampleMock(t, 1)}, Config{})
	conn, br, status := connect(t, addr, target)
	require.Equal(t, "HTTP/1.1 200 OK", status)
	skipHeaders(t, br)

	_, err := fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: %s\r\n\r\n", target)
	require.NoError(t, err)
	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "through the tunnel", string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Tunnels.WithLabelValues(tunnelDirect)))
	p.mu.Lock()
	assert.Nil(t, p.secondary)
	p.mu.Unlock()
}

func TestConnectMalformedTarget(t *testing.T) {
	p, addr := startProxy(t, nil, Config{})
	_, _, status := connect(t, addr, "example.com")
	assert.Equal(t, "HTTP/1.1 400 Bad Request", status)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Tunnels.WithLabelValues(tunnelRejected)))
}

func TestConnectDisabled(t *testing.T) {
	_, addr := startProxy(t, nil, Config{DisableConnect: true})
	_, _, status := connect(t, addr, "example.com:443")
	assert.Equal(t, "HTTP/1.1 400 Bad Request", status)
}

func TestConnectDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := ln.Addr().String()
	ln.Close()

	_, addr := startProxy(t, nil, Config{})
	_, _, status := connect(t, addr, dead)
	assert.Equal(t, "HTTP/1.1 502 Bad Gateway", status)
}

func TestStopClosesOpenTunnels(t *testing.T) {
	silent, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()
	go func() {
		for {
			c, err := silent.Accept()
			if err != nil {
				return
			}
			defer c.Close()
		}
	}()

	p, addr := startProxy(t, nil, Config{})
	conn, br, status := connect(t, addr, silent.Addr().String())
	require.Equal(t, "HTTP/1.1 200 OK", status)
	skipHeaders(t, br)
	assert.Eventually(t, func() bool { return p.conns.len() == 2 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, p.conns.len())
	assert.Equal(t, 0.0, testutil.ToFloat64(p.Metrics().ActiveConnections))
}

func TestVerboseLogsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	_, addr := startProxy(t, []mockapi.Responder{exampleMock(t, 1)}, Config{Logger: zap.New(core), Verbose: true})

	resp, err := proxyClient(addr).Get("http://example.com/")
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("resolved proxy target").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "example.com", fields["host"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/", fields["path"])
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("proxied request").Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestVerboseLogsConnectAtInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	_, addr := startProxy(t, nil, Config{Logger: zap.New(core), Verbose: true, DisableConnect: true})

	_, _, status := connect(t, addr, "example.com:443")
	assert.Equal(t, "HTTP/1.1 400 Bad Request", status)

	entries := logs.FilterMessage("CONNECT rejected: tunneling disabled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "example.com:443", entries[0].ContextMap()["target"])
}

func TestQuietLoggerSkipsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	_, addr := startProxy(t, []mockapi.Responder{exampleMock(t, 1)}, Config{Logger: zap.New(core)})

	resp, err := proxyClient(addr).Get("http://example.com/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Zero(t, logs.FilterMessage("resolved proxy target").Len())
	assert.Zero(t, logs.FilterMessage("proxied request").Len())
}

func TestCopyHeaderDropsHopByHop(t *testing.T) {
	src := http.Header{}
	src.Set("Connection", "keep-alive, X-Custom-Hop")
	src.Set("X-Custom-Hop", "1")
	src.Set("Proxy-Connection", "keep-alive")
	src.Set("Transfer-Encoding", "chunked")
	src.Set("Accept", "*/*")

	dst := http.Header{}
	copyHeader(dst, src)
	assert.Equal(t, http.Header{"Accept": {"*/*"}}, dst)
}

func TestDialable(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", dialable(&net.TCPAddr{IP: net.IPv4zero, Port: 8080}))
	assert.Equal(t, "127.0.0.1:8080", dialable(&net.TCPAddr{IP: net.IPv6unspecified, Port: 8080}))
	assert.Equal(t, "10.1.2.3:80", dialable(&net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 80}))
}
