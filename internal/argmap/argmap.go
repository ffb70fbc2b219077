// Package argmap renders key/value pairs as act command-line arguments.
package argmap

// Map accumulates key/value pairs and renders them as prefixed CLI tokens.
// Keys keep their first insertion position; setting an existing key replaces
// its value in place.
type Map struct {
	prefix    string
	delimiter string
	keys      []string
	values    map[string][]string
}

// New creates a Map that renders each pair as [prefix, "key=value"].
func New(prefix string) *Map {
	return NewWithDelimiter(prefix, "=")
}

// NewWithDelimiter creates a Map with a custom key/value delimiter.
func NewWithDelimiter(prefix, delimiter string) *Map {
	if delimiter == "" {
		delimiter = "="
	}
	return &Map{
		prefix:    prefix,
		delimiter: delimiter,
		values:    map[string][]string{},
	}
}

// Set stores a single value for key.
func (m *Map) Set(key, value string) {
	m.SetList(key, []string{value})
}

// SetList stores a list of values for key. Each element renders as its own
// prefix/value pair.
func (m *Map) SetList(key string, values []string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	cp := make([]string, len(values))
	copy(cp, values)
	m.values[key] = cp
}

// Get returns the values stored for key.
func (m *Map) Get(key string) ([]string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Clear removes every key.
func (m *Map) Clear() {
	m.keys = nil
	m.values = map[string][]string{}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns key -> first value for single-valued use, e.g. folding
// inputs into an event payload.
func (m *Map) Entries() map[string]string {
	out := make(map[string]string, len(m.keys))
	for _, k := range m.keys {
		if v := m.values[k]; len(v) > 0 {
			out[k] = v[0]
		} else {
			out[k] = ""
		}
	}
	return out
}

// Args renders the map as a flat token sequence in insertion order.
func (m *Map) Args() []string {
	args := []string{}
	for _, k := range m.keys {
		for _, v := range m.values[k] {
			args = append(args, m.prefix, k+m.delimiter+v)
		}
	}
	return args
}

// Clone returns an independent copy of m.
func (m *Map) Clone() *Map {
	c := NewWithDelimiter(m.prefix, m.delimiter)
	for _, k := range m.keys {
		c.SetList(k, m.values[k])
	}
	return c
}
