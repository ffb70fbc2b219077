package mockapi

import (
	"fmt"
	"net/url"
	"strings"
)

// RequestMocker creates response mockers for a single endpoint.
type RequestMocker struct {
	base     *url.URL
	endpoint Endpoint
}

// Request narrows the endpoint to requests carrying params. Path parameters
// are substituted into the endpoint path; query and body parameters must be
// present in a matching request. Parameters the endpoint does not declare are
// ignored.
func (m *RequestMocker) Request(params map[string]any) *ResponseMocker {
	path := m.endpoint.Path
	query := map[string]string{}
	body := map[string]any{}

	for _, name := range m.endpoint.Parameters.Path {
		if v, ok := params[name]; ok {
			path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(fmt.Sprint(v)))
		}
	}
	for _, name := range m.endpoint.Parameters.Query {
		if v, ok := params[name]; ok {
			query[name] = fmt.Sprint(v)
		}
	}
	for _, name := range m.endpoint.Parameters.Body {
		if v, ok := params[name]; ok {
			body[name] = v
		}
	}

	return &ResponseMocker{
		method: strings.ToUpper(m.endpoint.Method),
		scheme: strings.ToLower(m.base.Scheme),
		host:   normalizeHost(m.base.Scheme, m.base.Host),
		path:   joinPath(m.base.Path, path),
		query:  query,
		body:   body,
	}
}

func joinPath(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	full := base + path
	if full == "" {
		return "/"
	}
	return full
}

// normalizeHost lower-cases host and drops the scheme's default port.
func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch strings.ToLower(scheme) {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// pathMatches compares slash-separated segments. A template segment such as
// {owner} left unsubstituted matches any non-empty segment.
func pathMatches(pattern, path string) bool {
	if path == "" {
		path = "/"
	}
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if isTemplate(want[i]) {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

func isTemplate(seg string) bool {
	return len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}
