package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// Response is one canned reply. Data is sent as-is when it is a string or
// []byte and JSON-encoded otherwise. Repeat is the number of requests it
// answers before the next queued response takes over; zero means once.
type Response struct {
	Status  int               `json:"status" yaml:"status"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Data    any               `json:"data,omitempty" yaml:"data,omitempty"`
	Repeat  int               `json:"repeat,omitempty" yaml:"repeat,omitempty"`
}

// ResponseMocker answers requests for one endpoint with its queued responses.
// It is safe for concurrent use.
type ResponseMocker struct {
	method string
	scheme string
	host   string
	path   string
	query  map[string]string
	body   map[string]any

	mu        sync.Mutex
	responses []Response
	armed     bool
	next      int
	served    int
}

// SetResponse queues a response.
func (r *ResponseMocker) SetResponse(resp Response) *ResponseMocker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return r
}

// Reply arms the mocker. Without a queued response it answers 200 once.
func (r *ResponseMocker) Reply() *ResponseMocker {
	r.Arm()
	return r
}

// Arm implements Responder.
func (r *ResponseMocker) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		r.responses = append(r.responses, Response{Status: http.StatusOK})
	}
	r.armed = true
}

// Pending reports how many more requests the mocker will answer.
func (r *ResponseMocker) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := r.next; i < len(r.responses); i++ {
		n += times(r.responses[i])
	}
	return n - r.served
}

func times(resp Response) int {
	if resp.Repeat <= 0 {
		return 1
	}
	return resp.Repeat
}

// Match implements Responder.
func (r *ResponseMocker) Match(req *Request) (*Reply, bool) {
	if !r.matches(req) {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed || r.next >= len(r.responses) {
		return nil, false
	}
	resp := r.responses[r.next]
	r.served++
	if r.served >= times(resp) {
		r.next++
		r.served = 0
	}
	return render(resp), true
}

func (r *ResponseMocker) matches(req *Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	if !strings.EqualFold(req.Method, r.method) {
		return false
	}
	if !strings.EqualFold(req.URL.Scheme, r.scheme) ||
		normalizeHost(req.URL.Scheme, req.URL.Host) != r.host {
		return false
	}
	if !pathMatches(r.path, req.URL.EscapedPath()) {
		return false
	}
	q := req.URL.Query()
	for k, v := range r.query {
		if q.Get(k) != v {
			return false
		}
	}
	if len(r.body) > 0 {
		var got map[string]any
		if err := json.Unmarshal(req.Body, &got); err != nil {
			return false
		}
		for k, want := range r.body {
			v, ok := got[k]
			if !ok || !jsonEqual(want, v) {
				return false
			}
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	x, err := json.Marshal(a)
	if err != nil {
		return false
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

func render(resp Response) *Reply {
	reply := &Reply{Status: resp.Status, Header: http.Header{}}
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	for k, v := range resp.Headers {
		reply.Header.Set(k, v)
	}
	switch d := resp.Data.(type) {
	case nil:
	case string:
		reply.Body = []byte(d)
	case []byte:
		reply.Body = d
	default:
		body, err := json.Marshal(d)
		if err != nil {
			reply.Status = http.StatusInternalServerError
			reply.Body = []byte(err.Error())
			return reply
		}
		reply.Body = body
		if reply.Header.Get("Content-Type") == "" {
			reply.Header.Set("Content-Type", "application/json")
		}
	}
	return reply
}
