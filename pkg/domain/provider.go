package domain

import (
	"encoding"
	"strings"
)

// ProviderKind selects the request payload shape and auth header family for
// an LLM endpoint. It is resolved once at configuration time, never
// re-derived per call.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderXedu      ProviderKind = "xedu"
	ProviderGeneric   ProviderKind = "generic"
)

var (
	_ encoding.BinaryMarshaler = ProviderKind("")
	_ encoding.TextMarshaler   = ProviderKind("")
)

func (k ProviderKind) MarshalBinary() ([]byte, error) { return []byte(string(k)), nil }
func (k ProviderKind) MarshalText() ([]byte, error)   { return []byte(string(k)), nil }

func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderOpenAI, ProviderAnthropic, ProviderXedu, ProviderGeneric:
		return true
	}
	return false
}

// KindFromEndpoint infers the provider family from case-insensitive
// substring matches against the endpoint URL. This matching is kept for
// compatibility with existing stored configurations; an explicit
// ProviderConfig.Kind always wins.
func KindFromEndpoint(endpoint string) ProviderKind {
	ep := strings.ToLower(endpoint)
	switch {
	case strings.Contains(ep, "claude"), strings.Contains(ep, "anthropic"):
		return ProviderAnthropic
	case strings.Contains(ep, "xeduapi"):
		return ProviderXedu
	case strings.Contains(ep, "openai"):
		return ProviderOpenAI
	default:
		return ProviderGeneric
	}
}

// ProviderConfig is immutable once handed to a batch run.
type ProviderConfig struct {
	Endpoint string       `json:"endpoint"`
	APIKey   string       `json:"apiKey,omitempty"`
	Model    string       `json:"model,omitempty"`
	Kind     ProviderKind `json:"kind,omitempty"`
	// StrictExtract disables the legacy behavior of stringifying the whole
	// response body when no known content field matches; with it set, an
	// unrecognized shape becomes an extraction error instead.
	StrictExtract bool `json:"strictExtract,omitempty"`
}

// ResolvedKind returns the explicit Kind when set and valid, otherwise the
// endpoint inference.
func (c ProviderConfig) ResolvedKind() ProviderKind {
	if c.Kind.Valid() {
		return c.Kind
	}
	return KindFromEndpoint(c.Endpoint)
}
