package mockapi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// File is a set of mocks kept on disk, e.g.
//
//	description: api.json
//	mocks:
//	  - endpoint: github.repos.get
//	    params: {owner: kie, repo: act-js}
//	    responses:
//	      - status: 200
//	        data: {full_name: kie/act-js}
//
// description is either a path relative to the file or an inline description.
type File struct {
	Description yaml.Node `yaml:"description"`
	Mocks       []Spec    `yaml:"mocks"`
}

// Spec configures one response mocker. Endpoint is "api.scope.name".
type Spec struct {
	Endpoint  string         `yaml:"endpoint"`
	Params    map[string]any `yaml:"params,omitempty"`
	Responses []Response     `yaml:"responses"`
}

// LoadFile reads a mock file and returns its response mockers, not yet armed.
func LoadFile(path string) ([]*ResponseMocker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing mock file: %w", err)
	}

	api, err := f.api(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	mocks := make([]*ResponseMocker, 0, len(f.Mocks))
	for i, spec := range f.Mocks {
		parts := strings.Split(spec.Endpoint, ".")
		if len(parts) != 3 {
			return nil, acterrors.NewValidationError(
				fmt.Sprintf("mock %d: endpoint %q is not api.scope.name", i, spec.Endpoint), "")
		}
		rm, err := api.Mock(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, fmt.Errorf("mock %d: %w", i, err)
		}
		m := rm.Request(spec.Params)
		for _, resp := range spec.Responses {
			m.SetResponse(resp)
		}
		mocks = append(mocks, m)
	}
	return mocks, nil
}

func (f *File) api(dir string) (*MockAPI, error) {
	switch f.Description.Kind {
	case yaml.ScalarNode:
		p := f.Description.Value
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return Load(p)
	case yaml.MappingNode:
		var desc map[string]any
		if err := f.Description.Decode(&desc); err != nil {
			return nil, fmt.Errorf("decoding inline description: %w", err)
		}
		raw, err := json.Marshal(desc)
		if err != nil {
			return nil, fmt.Errorf("encoding inline description: %w", err)
		}
		return New(raw)
	}
	return nil, acterrors.NewValidationError("mock file has no description", "Set description to a JSON file path or an inline API description")
}

// Responders converts mockers to the interface the proxy accepts.
func Responders(mocks []*ResponseMocker) []Responder {
	out := make([]Responder, len(mocks))
	for i, m := range mocks {
		out[i] = m
	}
	return out
}
