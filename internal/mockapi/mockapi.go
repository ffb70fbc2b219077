// Package mockapi builds HTTP response mocks from a declarative API
// description. The forward proxy consults the armed mocks for every request
// it intercepts.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// Parameters lists which request parameters go into the path, the query
// string and the JSON body.
type Parameters struct {
	Path  []string `json:"path"`
	Query []string `json:"query"`
	Body  []string `json:"body"`
}

// Endpoint is one operation of an API.
type Endpoint struct {
	Path       string     `json:"path"`
	Method     string     `json:"method"`
	Parameters Parameters `json:"parameters"`
}

// API is a base URL and its endpoints grouped by scope, then by name.
type API struct {
	BaseURL   string                         `json:"baseUrl"`
	Endpoints map[string]map[string]Endpoint `json:"endpoints"`
}

// Description maps an API name to its definition.
type Description map[string]API

// Request is the view of an intercepted request that mocks match against.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Reply is a canned response.
type Reply struct {
	Status int
	Header http.Header
	Body   []byte
}

// Responder is a mock the proxy can arm and match requests against.
type Responder interface {
	// Arm makes the mock eligible to answer requests.
	Arm()
	// Match returns the reply for req, or false to let it through.
	Match(req *Request) (*Reply, bool)
}

// MockAPI generates request mockers from a validated description.
type MockAPI struct {
	desc Description
}

// New validates raw JSON against the description schema and decodes it.
func New(raw []byte) (*MockAPI, error) {
	if err := validateDescription(raw); err != nil {
		return nil, err
	}
	var desc Description
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("decoding mock api description: %w", err)
	}
	for name, api := range desc {
		if _, err := url.Parse(api.BaseURL); err != nil {
			return nil, acterrors.NewValidationError(
				fmt.Sprintf("api %q has an invalid baseUrl: %v", name, err), "")
		}
	}
	return &MockAPI{desc: desc}, nil
}

// Load reads a JSON description file.
func Load(path string) (*MockAPI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock api description: %w", err)
	}
	return New(raw)
}

// Description returns the decoded description.
func (m *MockAPI) Description() Description {
	return m.desc
}

// Mock returns the request mocker for an endpoint.
func (m *MockAPI) Mock(api, scope, name string) (*RequestMocker, error) {
	a, ok := m.desc[api]
	if !ok {
		return nil, acterrors.NewNotFoundError(fmt.Sprintf("api %q is not described", api))
	}
	ep, ok := a.Endpoints[scope][name]
	if !ok {
		return nil, acterrors.NewNotFoundError(fmt.Sprintf("endpoint %s.%s.%s is not described", api, scope, name))
	}
	base, err := url.Parse(a.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing baseUrl: %w", err)
	}
	return &RequestMocker{base: base, endpoint: ep}, nil
}
