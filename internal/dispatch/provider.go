// Package dispatch implements the multi-tenant handler-dispatch core:
// resolving credential bundles for an endpoint, building live provider
// handlers, routing fetch identifiers by prefix and fanning search out
// across all handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"searchrelay/pkg/catalog"
)

// Separator joins a provider prefix to a native id in wire identifiers.
const Separator = "::"

var (
	// ErrInvalidIdentifier rejects ids lacking the "<prefix>::<native_id>" shape.
	ErrInvalidIdentifier = errors.New("identifier must be of the form '<prefix>::<native_id>'")
	// ErrUnknownPrefix rejects ids whose prefix matches no live handler.
	ErrUnknownPrefix = errors.New("no handler registered for prefix")
)

// Result is one search hit. ID is always prefixed (see MakeID).
type Result struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Text     string         `json:"text,omitempty"`
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Record is the full object behind a Result, returned by fetch.
type Record struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Text     string         `json:"text,omitempty"`
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Provider is the capability contract every backend implements. Instances
// are built from one credential bundle; construction performs no network
// I/O (token acquisition is lazy, on first use).
type Provider interface {
	Kind() catalog.SourceKind
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Fetch(ctx context.Context, nativeID string) (Record, error)
}

// Prefix maps a provider kind to its wire prefix. The mapping is closed:
// adding a kind without a prefix is caught by TestPrefixCoversAllKinds.
func Prefix(k catalog.SourceKind) string {
	switch k {
	case catalog.KindOutlook:
		return "outlook"
	case catalog.KindSnowflake:
		return "snowflake"
	case catalog.KindBox:
		return "box"
	}
	return ""
}

// MakeID builds the wire identifier for a native id of the given kind.
func MakeID(k catalog.SourceKind, nativeID string) string {
	return Prefix(k) + Separator + nativeID
}

// SplitID parses a wire identifier into prefix and native id.
func SplitID(id string) (prefix, nativeID string, err error) {
	i := strings.Index(id, Separator)
	if id == "" || i < 0 {
		return "", "", ErrInvalidIdentifier
	}
	return id[:i], id[i+len(Separator):], nil
}

// Route finds the provider owning the identifier's prefix and returns it with
// the native id. Duplicate prefixes resolve last-writer-wins: prefixes are
// provider-type-scoped, so duplicates are interchangeable instances.
func Route(id string, providers []Provider) (Provider, string, error) {
	prefix, nativeID, err := SplitID(id)
	if err != nil {
		return nil, "", err
	}
	byPrefix := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byPrefix[Prefix(p.Kind())] = p
	}
	p, ok := byPrefix[prefix]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}
	return p, nativeID, nil
}
