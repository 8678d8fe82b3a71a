package extract

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"PriceSentinel/internal/model"
)

// QueryPlaceholder marks where a search query goes in Source.SearchURL.
const QueryPlaceholder = "{query}"

// Source is one upstream listing provider and its extraction chain.
type Source struct {
	ID        string
	SearchURL string
	Methods   Chain
}

// URL resolves a locator to the page to fetch. Targets that are already
// URLs are used as-is; anything else is treated as a search query.
func (s Source) URL(loc model.SourceLocator) (string, error) {
	target := strings.TrimSpace(loc.Target)
	if target == "" {
		return "", fmt.Errorf("source %s: empty target", s.ID)
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if s.SearchURL == "" {
		return "", fmt.Errorf("source %s: target %q is not a URL and no search URL is configured", s.ID, target)
	}
	return strings.Replace(s.SearchURL, QueryPlaceholder, url.QueryEscape(target), 1), nil
}

// Registry holds the known sources by id.
type Registry struct {
	sources map[string]Source
}

// NewRegistry returns a registry holding sources. It panics on invalid
// sources, so it is meant for the built-in set.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) error {
	if err := ValidateSourceID(s.ID); err != nil {
		return err
	}
	if len(s.Methods) == 0 {
		return fmt.Errorf("source %s: no extraction methods", s.ID)
	}
	r.sources[s.ID] = s
	return nil
}

// Lookup returns the source registered under id.
func (r *Registry) Lookup(id string) (Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

// IDs returns the registered source ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateSourceID rejects ids that would make history keys ambiguous.
func ValidateSourceID(id string) error {
	if id == "" {
		return errors.New("source id is empty")
	}
	if strings.ContainsAny(id, "_ ") {
		return fmt.Errorf("source id %q must not contain underscores or spaces", id)
	}
	return nil
}

// MethodSpec declares an extraction method in configuration.
type MethodSpec struct {
	Kind     string `yaml:"kind"` // json-ld, next-data, meta, selector, split-price, regex
	Selector string `yaml:"selector"`
	Scope    string `yaml:"scope"`
	Whole    string `yaml:"whole"`
	Fraction string `yaml:"fraction"`
	Pattern  string `yaml:"pattern"`
	Path     string `yaml:"path"`
}

// SourceSpec declares a source in configuration.
type SourceSpec struct {
	SearchURL string       `yaml:"search_url"`
	Methods   []MethodSpec `yaml:"methods"`
}

// Build turns the method description into a Method.
func (m MethodSpec) Build() (Method, error) {
	switch m.Kind {
	case "json-ld":
		return JSONLD(), nil
	case "meta":
		return MetaPrice(), nil
	case "next-data":
		if m.Path == "" {
			return Method{}, errors.New("next-data requires path")
		}
		return NextData(m.Path), nil
	case "selector":
		if m.Selector == "" {
			return Method{}, errors.New("selector requires selector")
		}
		return ScopedSelector(m.Scope, m.Selector), nil
	case "split-price":
		if m.Whole == "" {
			return Method{}, errors.New("split-price requires whole")
		}
		return SplitPrice(m.Scope, m.Whole, m.Fraction), nil
	case "regex":
		if m.Pattern == "" {
			return Method{}, errors.New("regex requires pattern")
		}
		return Regex(m.Pattern)
	default:
		return Method{}, fmt.Errorf("unknown method kind %q", m.Kind)
	}
}

// BuildSource turns a configured source into a Source.
func BuildSource(id string, spec SourceSpec) (Source, error) {
	if err := ValidateSourceID(id); err != nil {
		return Source{}, err
	}
	if len(spec.Methods) == 0 {
		return Source{}, fmt.Errorf("source %s: no extraction methods", id)
	}
	if spec.SearchURL != "" && !strings.Contains(spec.SearchURL, QueryPlaceholder) {
		return Source{}, fmt.Errorf("source %s: search_url must contain %s", id, QueryPlaceholder)
	}
	chain := make(Chain, 0, len(spec.Methods))
	for i, ms := range spec.Methods {
		m, err := ms.Build()
		if err != nil {
			return Source{}, fmt.Errorf("source %s method %d: %w", id, i, err)
		}
		chain = append(chain, m)
	}
	return Source{ID: id, SearchURL: spec.SearchURL, Methods: chain}, nil
}
