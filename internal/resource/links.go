package resource

import (
	"fmt"
	"net/http"

	"github.com/strata-api/strata/internal/store"
)

// LookupParam is one level of a resource's URL lookup chain: the URL
// parameter name and the stringified id filling it.
type LookupParam struct {
	Field string
	Value string
}

// URLReverser is the route-reversal collaborator: it turns a route name and
// an ordered lookup map into a path.
type URLReverser interface {
	Reverse(name string, params []LookupParam) (string, error)
}

// LinkContext carries the request-level information needed to build
// absolute URLs. A nil or hostless context produces relative paths.
type LinkContext struct {
	Scheme string
	Host   string
}

// NewLinkContext builds a link context from an incoming request
func NewLinkContext(r *http.Request) *LinkContext {
	if r == nil {
		return nil
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return &LinkContext{Scheme: scheme, Host: r.Host}
}

// SelfLink computes a resource's canonical self URL by walking its viewset
// binding chain. The leaf level contributes the resource's own id under the
// leaf lookup field; each parent level dereferences that binding's lookup
// field on the current record to reach the parent record and contributes
// its id. Params are ordered root first.
func (m *Mapper) SelfLink(res *Resource, linkCtx *LinkContext) (string, error) {
	binding := res.Type.Binding
	if binding == nil {
		return "", &BindingError{Type: res.Type.Name}
	}
	if m.reverser == nil {
		return "", &BindingError{Type: res.Type.Name, Detail: "no URL reverser configured"}
	}

	// Walk leaf to root, then reverse into root-first order.
	params := []LookupParam{{Field: binding.LookupField, Value: store.RecordID(res.Record)}}
	record := res.Record
	for parent := binding.Parent; parent != nil; parent = parent.Parent {
		next, ok := record[parent.LookupField].(store.Record)
		if !ok || next == nil {
			return "", &BindingError{
				Type:   res.Type.Name,
				Detail: fmt.Sprintf("record has no %s parent to build its link from", parent.LookupField),
			}
		}
		record = next
		params = append(params, LookupParam{Field: parent.LookupField, Value: store.RecordID(record)})
	}
	for i, j := 0, len(params)-1; i < j; i, j = i+1, j-1 {
		params[i], params[j] = params[j], params[i]
	}

	path, err := m.reverser.Reverse(binding.BaseName+"-detail", params)
	if err != nil {
		return "", &BindingError{Type: res.Type.Name, Detail: err.Error()}
	}

	if linkCtx != nil && linkCtx.Host != "" {
		scheme := linkCtx.Scheme
		if scheme == "" {
			scheme = "http"
		}
		return fmt.Sprintf("%s://%s%s", scheme, linkCtx.Host, path), nil
	}
	return path, nil
}
