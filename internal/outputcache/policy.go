/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import (
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Policy describes how responses of a route are cached.
type Policy struct {
	Name          string        `mapstructure:"name" yaml:"name" json:"name"`
	Tags          []string      `mapstructure:"tags" yaml:"tags" json:"tags"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"` // Zero means no expiration.
	VaryByQuery   bool          `mapstructure:"varyByQuery" yaml:"varyByQuery" json:"varyByQuery"`
	VaryByHeaders []string      `mapstructure:"varyByHeaders" yaml:"varyByHeaders" json:"varyByHeaders"`
}

// Key builds a cache key for the request: "METHOD|path[?sorted query][|Header=value...]".
func (p *Policy) Key(r *http.Request) string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte('|')
	sb.WriteString(r.URL.Path)
	if p.VaryByQuery {
		if query := r.URL.Query().Encode(); query != "" { // Encode sorts values by key.
			sb.WriteByte('?')
			sb.WriteString(query)
		}
	}
	for _, h := range p.VaryByHeaders {
		name := textproto.CanonicalMIMEHeaderKey(h)
		sb.WriteByte('|')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strings.Join(r.Header.Values(name), ","))
	}
	return sb.String()
}

// ExpiresAt returns the expiration time of the entry stored at now, zero if the policy has no TTL.
func (p *Policy) ExpiresAt(now time.Time) time.Time {
	if p.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(p.TTL)
}

// PolicySet is a set of named policies.
type PolicySet struct {
	policies map[string]*Policy
}

// NewPolicySet creates a new PolicySet. Policy names must be non-empty and unique.
func NewPolicySet(policies ...Policy) (*PolicySet, error) {
	ps := &PolicySet{policies: make(map[string]*Policy, len(policies))}
	for i := range policies {
		policy := policies[i]
		if policy.Name == "" {
			return nil, fmt.Errorf("policy #%d: name cannot be empty", i)
		}
		if policy.TTL < 0 {
			return nil, fmt.Errorf("policy %q: ttl should not be negative", policy.Name)
		}
		if _, dup := ps.policies[policy.Name]; dup {
			return nil, fmt.Errorf("policy %q is defined more than once", policy.Name)
		}
		ps.policies[policy.Name] = &policy
	}
	return ps, nil
}

// Get returns the policy by its name.
func (ps *PolicySet) Get(name string) (*Policy, bool) {
	p, ok := ps.policies[name]
	return p, ok
}

// MustGet returns the policy by its name and panics if it doesn't exist.
func (ps *PolicySet) MustGet(name string) *Policy {
	p, ok := ps.policies[name]
	if !ok {
		panic(fmt.Sprintf("output cache policy %q is not defined", name))
	}
	return p
}
