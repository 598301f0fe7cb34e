// Package plugin holds the external capabilities that can add prompt context
// to a chat turn: the plugin catalog, model-driven selection of relevant
// plugin functions, and their concurrent execution.
package plugin

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/opencode-ai/recipechat/pkg/types"
)

// Handler executes a plugin function with parameters chosen by the model.
type Handler func(ctx context.Context, params map[string]any, cfg *types.PluginConfig) (any, error)

// FunctionInfo describes a function to the model.
type FunctionInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Function is one data source offered by a plugin.
type Function struct {
	FunctionInfo
	Handler Handler `json:"-"`
}

// Plugin groups related data sources under one name.
type Plugin struct {
	Name        string
	Description string
	DataSources []*Function

	close func() error
}

// Close releases resources held by the plugin, such as a server connection.
func (p *Plugin) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// Descriptor is a function selected for a request, with its parameters.
type Descriptor struct {
	PluginName string
	Function   *Function
	Parameters map[string]any
}

// Catalog is the set of installed plugins.
type Catalog struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewCatalog creates a catalog holding plugins.
func NewCatalog(plugins ...*Plugin) *Catalog {
	c := &Catalog{plugins: make(map[string]*Plugin)}
	for _, p := range plugins {
		c.Register(p)
	}
	return c
}

// Register adds or replaces a plugin.
func (c *Catalog) Register(p *Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plugins[p.Name] = p
}

// Get returns the named plugin.
func (c *Catalog) Get(name string) (*Plugin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plugins[name]
	return p, ok
}

// Names returns the installed plugin names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled returns the installed plugins named in names, in name order.
// Unknown names are ignored.
func (c *Catalog) Enabled(names []string) []*Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool, len(names))
	var out []*Plugin
	for _, name := range names {
		if p, ok := c.plugins[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close closes every plugin.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, p := range c.plugins {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
