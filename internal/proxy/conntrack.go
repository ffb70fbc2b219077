package proxy

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// connRegistry tracks every live socket of a proxy so Stop can force-close
// them. Ids are assigned in accept order.
type connRegistry struct {
	mu     sync.Mutex
	next   uint64
	conns  map[uint64]*trackedConn
	active prometheus.Gauge
}

func newConnRegistry(active prometheus.Gauge) *connRegistry {
	return &connRegistry{conns: map[uint64]*trackedConn{}, active: active}
}

func (r *connRegistry) track(c net.Conn) *trackedConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	tc := &trackedConn{Conn: c, id: r.next, reg: r}
	r.conns[tc.id] = tc
	r.next++
	r.active.Inc()
	return tc
}

func (r *connRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		delete(r.conns, id)
		r.active.Dec()
	}
}

// closeAll destroys every tracked socket and returns how many there were.
func (r *connRegistry) closeAll() int {
	r.mu.Lock()
	conns := make([]*trackedConn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return len(conns)
}

func (r *connRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

type trackedConn struct {
	net.Conn
	id   uint64
	reg  *connRegistry
	once sync.Once
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { c.reg.remove(c.id) })
	return err
}

// CloseWrite half-closes the underlying TCP connection when it supports it.
func (c *trackedConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

type trackingListener struct {
	net.Listener
	reg *connRegistry
}

func (l *trackingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return l.reg.track(c), nil
}
