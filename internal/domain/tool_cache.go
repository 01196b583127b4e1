package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProviderTools is one provider's entry in a ToolCache.
type ProviderTools struct {
	Provider string
	Tools    []ToolSchema
}

// ToolCache maps provider names to their tools, preserving insertion order.
type ToolCache struct {
	entries []ProviderTools
	index   map[string]int
}

func NewToolCache() *ToolCache {
	return &ToolCache{index: make(map[string]int)}
}

// Set stores tools for a provider. An empty list removes the provider.
func (c *ToolCache) Set(provider string, tools []ToolSchema) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if len(tools) == 0 {
		c.remove(provider)
		return
	}
	copied := make([]ToolSchema, len(tools))
	copy(copied, tools)
	if idx, ok := c.index[provider]; ok {
		c.entries[idx].Tools = copied
		return
	}
	c.index[provider] = len(c.entries)
	c.entries = append(c.entries, ProviderTools{Provider: provider, Tools: copied})
}

func (c *ToolCache) remove(provider string) {
	idx, ok := c.index[provider]
	if !ok {
		return
	}
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	delete(c.index, provider)
	for i := idx; i < len(c.entries); i++ {
		c.index[c.entries[i].Provider] = i
	}
}

func (c *ToolCache) Tools(provider string) ([]ToolSchema, bool) {
	if c == nil {
		return nil, false
	}
	idx, ok := c.index[provider]
	if !ok {
		return nil, false
	}
	return c.entries[idx].Tools, true
}

func (c *ToolCache) Providers() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.entries))
	for _, entry := range c.entries {
		names = append(names, entry.Provider)
	}
	return names
}

func (c *ToolCache) Entries() []ProviderTools {
	if c == nil {
		return nil
	}
	out := make([]ProviderTools, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *ToolCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func (c *ToolCache) IsEmpty() bool {
	return c.Len() == 0
}

// ToolCount counts tools across providers, duplicates included.
func (c *ToolCache) ToolCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, entry := range c.entries {
		total += len(entry.Tools)
	}
	return total
}

// ToolCollision describes a tool name advertised more than once.
type ToolCollision struct {
	Tool     string   `json:"tool"`
	Winner   string   `json:"winner"`
	Shadowed []string `json:"shadowed"`
}

type flatEntry struct {
	provider string
	tool     ToolSchema
}

func (c *ToolCache) flatEntries() []flatEntry {
	if c == nil {
		return nil
	}
	var all []flatEntry
	for _, entry := range c.entries {
		for _, tool := range entry.Tools {
			all = append(all, flatEntry{provider: entry.Provider, tool: tool})
		}
	}
	return all
}

// Flatten returns one tool per name. On collision the provider that appears
// later in the cache wins and its entry keeps its own position.
func (c *ToolCache) Flatten() []ToolSchema {
	all := c.flatEntries()
	last := make(map[string]int, len(all))
	for i, entry := range all {
		last[entry.tool.Name] = i
	}
	out := make([]ToolSchema, 0, len(last))
	for i, entry := range all {
		if last[entry.tool.Name] == i {
			out = append(out, entry.tool)
		}
	}
	return out
}

// Collisions lists tool names that Flatten had to resolve.
func (c *ToolCache) Collisions() []ToolCollision {
	all := c.flatEntries()
	order := make([]string, 0)
	owners := make(map[string][]string)
	for _, entry := range all {
		name := entry.tool.Name
		if _, seen := owners[name]; !seen {
			order = append(order, name)
		}
		owners[name] = append(owners[name], entry.provider)
	}
	var out []ToolCollision
	for _, name := range order {
		providers := owners[name]
		if len(providers) < 2 {
			continue
		}
		out = append(out, ToolCollision{
			Tool:     name,
			Winner:   providers[len(providers)-1],
			Shadowed: providers[:len(providers)-1],
		})
	}
	return out
}

// MarshalJSON encodes the cache as an object keyed by provider in insertion order.
func (c *ToolCache) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if c != nil {
		for i, entry := range c.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(entry.Provider)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			tools := entry.Tools
			if tools == nil {
				tools = []ToolSchema{}
			}
			value, err := json.Marshal(tools)
			if err != nil {
				return nil, fmt.Errorf("encode tools for %s: %w", entry.Provider, err)
			}
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a provider-keyed object, keeping key order.
func (c *ToolCache) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("tool cache must be a JSON object")
	}
	next := NewToolCache()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		provider, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("tool cache key must be a string")
		}
		var tools []ToolSchema
		if err := dec.Decode(&tools); err != nil {
			return fmt.Errorf("decode tools for %s: %w", provider, err)
		}
		next.Set(provider, tools)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = *next
	return nil
}
