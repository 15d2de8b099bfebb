package dao

// Parameter is a named List filter.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a filter parameter; multiple values are matched as alternatives.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Matches reports whether actual equals the parameter value, or one of its
// values when the parameter holds a list.
func (p *Parameter) Matches(actual string) bool {
	switch expected := p.Value.(type) {
	case string:
		return expected == actual
	case []string:
		for _, candidate := range expected {
			if candidate == actual {
				return true
			}
		}
		return false
	}
	return false
}
