package domain

// Resource is a JSON:API resource object as accepted by the marketing API.
type Resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Document is a request body carrying a single resource.
type Document struct {
	Data Resource `json:"data"`
}

// Relationship is a request body carrying resource identifiers only.
type Relationship struct {
	Data []Resource `json:"data"`
}

// related nests a resource under a "data" key, the shape used for inline relationships.
func related(resource Resource) map[string]any {
	return map[string]any{"data": resource}
}

// cloneMap returns a shallow copy of m, or nil when m is empty.
func cloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneStrings returns a copy of s, or nil when s is empty.
func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
