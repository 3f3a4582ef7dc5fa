// Package config discovers and parses the indexer's per-chain YAML
// configuration files: glob *.config.yaml in the working directory, one
// file per chain, each naming its sources and transaction filters.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceType distinguishes the two source adapter kinds.
type SourceType string

const (
	SourceWebsocket SourceType = "websocket"
	SourcePolling   SourceType = "polling"
)

// Source is one configured RPC endpoint for a chain.
type Source struct {
	Name string     `yaml:"name"`
	Type SourceType `yaml:"type"`
	URL  string     `yaml:"url"`
}

// UnmarshalYAML accepts the websocket|ws and polling|http aliases for Type.
func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
		URL  string `yaml:"url"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	s.Name = kebabCase(raw.Name)
	s.URL = raw.URL

	switch strings.ToLower(raw.Type) {
	case "websocket", "ws":
		s.Type = SourceWebsocket
	case "polling", "http":
		s.Type = SourcePolling
	default:
		return fmt.Errorf("unknown source type %q (want websocket|ws|polling|http)", raw.Type)
	}

	return nil
}

// DisplayName renders the source's canonical display form:
// {type}-{name}-{host}:{port}, with port defaulting by URL scheme.
func (s Source) DisplayName() string {
	host, port := "unknown", "0"

	if u, err := url.Parse(s.URL); err == nil {
		host = u.Hostname()
		if p := u.Port(); p != "" {
			port = p
		} else {
			port = defaultPortFor(u.Scheme)
		}
	}

	return fmt.Sprintf("%s-%s-%s:%s", s.Type, s.Name, host, port)
}

func defaultPortFor(scheme string) string {
	switch strings.ToLower(scheme) {
	case "https", "wss":
		return "443"
	default:
		return "80"
	}
}

// AttributeFilter is the YAML form of filter.AttributeFilter.
type AttributeFilter struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Filter is the YAML form of filter.Filter.
type Filter struct {
	TypePattern string            `yaml:"type"`
	Attributes  []AttributeFilter `yaml:"attributes"`
}

// Chain is one fully parsed *.config.yaml file.
type Chain struct {
	Name     string   `yaml:"name"`
	ChainID  string   `yaml:"chain_id"`
	Sources  []Source `yaml:"sources"`
	Filters  []Filter `yaml:"filters"`
	FilePath string   `yaml:"-"`
}

// UnmarshalYAML accepts the chain_id|chain-id alias.
func (c *Chain) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name     string   `yaml:"name"`
		ChainID  string   `yaml:"chain_id"`
		ChainID2 string   `yaml:"chain-id"`
		Sources  []Source `yaml:"sources"`
		Filters  []Filter `yaml:"filters"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Name = raw.Name
	c.ChainID = raw.ChainID
	if c.ChainID == "" {
		c.ChainID = raw.ChainID2
	}
	c.Sources = raw.Sources
	c.Filters = raw.Filters

	return nil
}

// Validate checks invariants a Chain must satisfy before use.
func (c Chain) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("config %q: chain_id is required", c.FilePath)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("config %q: at least one source is required", c.FilePath)
	}
	for _, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("config %q: source %q has no url", c.FilePath, s.Name)
		}
	}
	return nil
}

// Discover globs ./*.config.yaml in dir and parses each into a Chain.
// Returns an empty, non-nil slice (not an error) if no configs are found;
// callers treat "no configs found" as a startup condition of their own.
func Discover(dir string) ([]Chain, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob config files: %w", err)
	}

	chains := make([]Chain, 0, len(matches))
	for _, path := range matches {
		chain, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		if err := chain.Validate(); err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}

	return chains, nil
}

func load(path string) (Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chain{}, err
	}

	var chain Chain
	if err := yaml.Unmarshal(data, &chain); err != nil {
		return Chain{}, fmt.Errorf("parse yaml: %w", err)
	}
	chain.FilePath = path

	return chain, nil
}

func kebabCase(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ToLower(s)
}
