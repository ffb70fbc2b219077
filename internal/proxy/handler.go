package proxy

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevehiehn/acttest/internal/mockapi"
)

const outcomeKey = "outcome"

func (p *Proxy) newEngine() *gin.Engine {
	e := gin.New()
	e.RedirectTrailingSlash = false
	e.RedirectFixedPath = false
	e.Use(p.logRequests(), gin.CustomRecovery(func(c *gin.Context, err any) {
		p.log.Error("panic while proxying", zap.Any("error", err), zap.Stack("stacktrace"))
		p.metrics.Requests.WithLabelValues(outcomeError).Inc()
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	e.NoRoute(p.intercept)
	return e
}

// logRequests logs every intercepted request once it has been answered.
func (p *Proxy) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		outcome, _ := c.Get(outcomeKey)
		outcomeStr, _ := outcome.(string)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("host", c.Request.Host),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("outcome", outcomeStr),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		if c.Writer.Status() >= 500 {
			p.reqLog.Warn("proxied request", fields...)
			return
		}
		p.reqLog.Info("proxied request", fields...)
	}
}

// target rebuilds the absolute URL a proxied request is meant for. Requests
// that arrive through a rerouted tunnel are in origin form and only carry
// the host in the Host header.
func target(r *http.Request) *url.URL {
	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	return &u
}

func (p *Proxy) intercept(c *gin.Context) {
	r := c.Request
	u := target(r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.fail(c, http.StatusBadRequest, err)
		return
	}

	p.reqLog.Info("resolved proxy target",
		zap.String("method", r.Method),
		zap.String("host", u.Host),
		zap.String("path", u.RequestURI()),
		zap.Any("headers", r.Header),
	)

	req := &mockapi.Request{Method: r.Method, URL: u, Header: r.Header.Clone(), Body: body}
	for _, m := range p.mocks {
		if reply, ok := m.Match(req); ok {
			p.writeReply(c, reply)
			return
		}
	}
	p.forward(c, u, body)
}

func (p *Proxy) writeReply(c *gin.Context, reply *mockapi.Reply) {
	h := c.Writer.Header()
	for k, vs := range reply.Header {
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Content-Length", strconv.Itoa(len(reply.Body)))
	c.Set(outcomeKey, outcomeMocked)
	p.metrics.Requests.WithLabelValues(outcomeMocked).Inc()
	c.Writer.WriteHeader(reply.Status)
	c.Writer.WriteHeaderNow()
	if len(reply.Body) > 0 {
		if _, err := c.Writer.Write(reply.Body); err != nil {
			_ = c.Error(err)
		}
	}
}

func (p *Proxy) forward(c *gin.Context, u *url.URL, body []byte) {
	r := c.Request
	out, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), bytes.NewReader(body))
	if err != nil {
		p.fail(c, http.StatusBadRequest, err)
		return
	}
	copyHeader(out.Header, r.Header)
	out.Host = u.Host
	if len(body) == 0 {
		out.Body = http.NoBody
		out.ContentLength = 0
	}

	resp, err := p.transport.RoundTrip(out)
	if err != nil {
		p.fail(c, http.StatusBadGateway, err)
		return
	}
	defer resp.Body.Close()

	copyHeader(c.Writer.Header(), resp.Header)
	c.Set(outcomeKey, outcomeForwarded)
	p.metrics.Requests.WithLabelValues(outcomeForwarded).Inc()
	c.Writer.WriteHeader(resp.StatusCode)
	c.Writer.WriteHeaderNow()
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		p.reqLog.Debug("relaying response body", zap.String("host", u.Host), zap.Error(err))
		_ = c.Error(err)
	}
}

func (p *Proxy) fail(c *gin.Context, status int, err error) {
	p.log.Debug("proxy request failed", zap.String("host", c.Request.Host), zap.Error(err))
	c.Set(outcomeKey, outcomeError)
	p.metrics.Requests.WithLabelValues(outcomeError).Inc()
	_ = c.Error(err)
	c.String(status, "%s", err.Error())
}

func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	log := p.reqLog.With(zap.String("method", r.Method), zap.String("target", r.Host))

	if p.cfg.DisableConnect {
		p.metrics.Tunnels.WithLabelValues(tunnelRejected).Inc()
		log.Info("CONNECT rejected: tunneling disabled")
		http.Error(w, "CONNECT is not supported by this proxy", http.StatusBadRequest)
		return
	}
	host, port, err := net.SplitHostPort(r.Host)
	if err != nil || host == "" || port == "" {
		p.metrics.Tunnels.WithLabelValues(tunnelRejected).Inc()
		log.Info("CONNECT rejected: malformed target")
		http.Error(w, "malformed CONNECT target", http.StatusBadRequest)
		return
	}

	dest, mode := r.Host, tunnelDirect
	if port == "80" {
		sec, err := p.secondaryProxy()
		if err != nil {
			p.log.Warn("secondary proxy unavailable", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		dest, mode = sec.dialAddr(), tunnelRerouted
	}

	upstream, err := net.DialTimeout("tcp", dest, 10*time.Second)
	if err != nil {
		log.Info("CONNECT dial failed", zap.String("dest", dest), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	up := p.conns.track(upstream)

	hj, ok := w.(http.Hijacker)
	if !ok {
		up.Close()
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	client, brw, err := hj.Hijack()
	if err != nil {
		up.Close()
		log.Debug("hijack failed", zap.Error(err))
		return
	}
	p.metrics.Tunnels.WithLabelValues(mode).Inc()
	log.Info("tunnel established", zap.String("dest", dest), zap.String("mode", mode))

	if _, err := client.Write([]byte("HTTP/1.1 200 OK\r\n\r\n")); err != nil {
		client.Close()
		up.Close()
		return
	}
	// The client may have sent bytes past the CONNECT request already.
	if n := brw.Reader.Buffered(); n > 0 {
		buffered, _ := brw.Reader.Peek(n)
		if _, err := up.Write(buffered); err != nil {
			client.Close()
			up.Close()
			return
		}
	}

	if err := splice(client, up); err != nil {
		log.Debug("tunnel closed", zap.Error(err))
	}
}

// splice copies bytes both ways until each side has finished, then closes
// both connections.
func splice(a, b net.Conn) error {
	var g errgroup.Group
	g.Go(func() error { return pipe(b, a) })
	g.Go(func() error { return pipe(a, b) })
	err := g.Wait()
	a.Close()
	b.Close()
	return err
}

func pipe(dst, src net.Conn) error {
	_, err := io.Copy(dst, src)
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
	if err != nil && !isClosed(err) {
		// Unblock the opposite direction.
		dst.Close()
		src.Close()
		return err
	}
	return nil
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// Hop-by-hop headers are meaningful for a single connection only.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeader(dst, src http.Header) {
	skip := map[string]bool{}
	for _, h := range hopHeaders {
		skip[h] = true
	}
	for _, v := range src.Values("Connection") {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				skip[http.CanonicalHeaderKey(f)] = true
			}
		}
	}
	for k, vs := range src {
		if skip[k] {
			continue
		}
		dst[k] = append([]string(nil), vs...)
	}
}
