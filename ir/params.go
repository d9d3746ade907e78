package ir

import (
	"encoding/json"
	"sort"

	"github.com/loomhq/weft/value"
)

// EdgeParameters is the complete name → value bag passed to an edge
// resolution, with all schema-declared defaults filled in.
type EdgeParameters struct {
	values map[string]value.Value
}

// NoEdgeParameters is the empty parameter bag.
func NoEdgeParameters() *EdgeParameters {
	return &EdgeParameters{values: map[string]value.Value{}}
}

// NewEdgeParameters copies values into a parameter bag.
func NewEdgeParameters(values map[string]value.Value) *EdgeParameters {
	copied := make(map[string]value.Value, len(values))
	for name, v := range values {
		copied[name] = v
	}
	return &EdgeParameters{values: copied}
}

// Get returns the named parameter, or Null when absent.
func (p *EdgeParameters) Get(name string) value.Value {
	if p == nil {
		return value.Null()
	}
	return p.values[name]
}

// Has reports whether the named parameter is present.
func (p *EdgeParameters) Has(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.values[name]
	return ok
}

// Names returns the parameter names in sorted order.
func (p *EdgeParameters) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of parameters.
func (p *EdgeParameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// MarshalJSON renders the bag as a JSON object with sorted keys.
func (p *EdgeParameters) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.values)
}

// UnmarshalJSON parses a JSON object into the bag.
func (p *EdgeParameters) UnmarshalJSON(data []byte) error {
	values := make(map[string]value.Value)
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	p.values = values
	return nil
}
