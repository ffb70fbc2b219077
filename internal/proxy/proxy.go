// Package proxy implements the forward proxy that act's containers are
// pointed at. Plain HTTP requests are matched against mock responders and
// otherwise forwarded. CONNECT requests are tunneled, except those for port
// 80, which are rerouted through a secondary proxy so they can be mocked too.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/mockapi"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Config controls a proxy instance.
type Config struct {
	// Logger receives lifecycle events. Per-request details are only logged
	// when Verbose is set.
	Logger  *zap.Logger
	Verbose bool
	// ListenHost is the interface to bind. Empty binds all interfaces.
	ListenHost string
	// DisableConnect answers every CONNECT request with 400.
	DisableConnect bool
	// AdvertiseIP is reported by Start instead of the first non-internal
	// IPv4 address of the host.
	AdvertiseIP string
	// Registry receives the proxy metrics. A private registry is used when nil.
	Registry prometheus.Registerer

	role string
}

// Proxy is a forward proxy. It can be started and stopped once per cycle.
type Proxy struct {
	cfg       Config
	mocks     []mockapi.Responder
	log       *zap.Logger
	reqLog    *zap.Logger
	engine    *gin.Engine
	transport *http.Transport
	metrics   *Metrics
	conns     *connRegistry

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	addr      string
	done      chan struct{}
	secondary *Proxy
}

// New builds a proxy that answers requests with mocks when one matches.
func New(mocks []mockapi.Responder, cfg Config) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.role == "" {
		cfg.role = "primary"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	p := &Proxy{
		cfg:   cfg,
		mocks: mocks,
		log:   cfg.Logger.With(zap.String("proxy", cfg.role)),
		transport: &http.Transport{
			Proxy: nil,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			DisableCompression:    true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
		metrics: newMetrics(cfg.Registry, cfg.role),
	}
	p.reqLog = zap.NewNop()
	if cfg.Verbose {
		p.reqLog = p.log
	}
	p.conns = newConnRegistry(p.metrics.ActiveConnections)
	p.engine = p.newEngine()
	return p
}

// Metrics returns the collectors of this instance.
func (p *Proxy) Metrics() *Metrics {
	return p.metrics
}

// Addr returns the address Start reported, or "" when not listening.
func (p *Proxy) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// Start arms the mocks, binds an ephemeral port and serves in the
// background. It returns "ip:port" where ip is the advertised address.
func (p *Proxy) Start(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return "", acterrors.NewProxyError("proxy is already listening")
	}

	ip := p.cfg.AdvertiseIP
	if ip == "" {
		var err error
		if ip, err = localIPv4(); err != nil {
			return "", &acterrors.RunError{Type: acterrors.ProxyLifecycle, Message: err.Error(), Cause: err}
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(p.cfg.ListenHost, "0"))
	if err != nil {
		return "", &acterrors.RunError{Type: acterrors.ProxyLifecycle, Message: fmt.Sprintf("listen: %v", err), Cause: err}
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())

	for _, m := range p.mocks {
		m.Arm()
	}

	p.listener = &trackingListener{Listener: ln, reg: p.conns}
	p.server = &http.Server{
		Handler:           p,
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          zap.NewStdLog(p.log),
	}
	p.addr = net.JoinHostPort(ip, port)
	p.done = make(chan struct{})

	go func(srv *http.Server, ln net.Listener, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("proxy serve failed", zap.Error(err))
		}
	}(p.server, p.listener, p.done)

	p.log.Debug("proxy listening",
		zap.String("addr", p.addr),
		zap.String("bind", ln.Addr().String()),
		zap.Int("mocks", len(p.mocks)),
	)
	return p.addr, nil
}

// Stop stops the secondary proxy if one was created, closes the listener and
// destroys every open connection.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.server == nil {
		p.mu.Unlock()
		return acterrors.NewProxyError("proxy is not listening")
	}
	srv, done, secondary := p.server, p.done, p.secondary
	p.server, p.listener, p.secondary, p.addr = nil, nil, nil, ""
	p.mu.Unlock()

	var errs []error
	if secondary != nil {
		if err := secondary.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping secondary proxy: %w", err))
		}
	}
	if err := srv.Close(); err != nil {
		errs = append(errs, err)
	}
	closed := p.conns.closeAll()
	p.transport.CloseIdleConnections()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	p.log.Debug("proxy stopped", zap.Int("closed_connections", closed))
	return errors.Join(errs...)
}

// secondaryProxy returns the proxy that CONNECT requests for port 80 are
// rerouted to, starting it on first use.
func (p *Proxy) secondaryProxy() (*Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return nil, acterrors.NewProxyError("proxy is not listening")
	}
	if p.secondary != nil {
		return p.secondary, nil
	}

	cfg := p.cfg
	cfg.DisableConnect = true
	cfg.ListenHost = "127.0.0.1"
	cfg.AdvertiseIP = "127.0.0.1"
	cfg.role = "secondary"
	sec := New(p.mocks, cfg)
	if _, err := sec.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("starting secondary proxy: %w", err)
	}
	p.secondary = sec
	return sec, nil
}

// dialAddr is the local address of a running proxy.
func (p *Proxy) dialAddr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return dialable(p.listener.Addr())
}

// ServeHTTP sends CONNECT requests to the tunnel handler and everything
// else through the interception engine.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
		return
	}
	p.engine.ServeHTTP(w, r)
}
