package data

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Model represents a model definition.
type Model struct {
	Name     string  // Name is the key, not stored in YAML
	Endpoint string  // Chat completions base URL
	Key      string  // API key
	Model    string  // Provider-side model id
	Temp     float32 // Model temperature
}

// SearchConfig represents search engine configuration.
type SearchConfig struct {
	Name       string // google, bing, tavily or none
	APIKey     string
	CxKey      string // Google custom search engine id
	Reference  int    // citation cap for composed answers
	MaxResults int
	FetchPages bool
}

// ConfigStore provides typed access to chatrelay.yaml configuration.
// It wraps viper internally and exposes only typed interfaces.
type ConfigStore struct {
	v *viper.Viper
}

// NewConfigStore creates a new ConfigStore using the existing viper
// configuration, reusing whatever config file viper has already loaded.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{v: viper.GetViper()}
}

// Viper lowercases all keys internally, so canonical ids are stored
// lowercased and looked up the same way.
func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetModel returns the named model, or the default model when name is empty.
func (c *ConfigStore) GetModel(name string) (Model, error) {
	if name == "" {
		name = c.v.GetString("default.model")
	}
	key := normalizeKey(name)
	sub := c.v.Sub("models." + key)
	if sub == nil {
		return Model{}, fmt.Errorf("model '%s' not found in config", name)
	}
	m := Model{
		Name:     key,
		Endpoint: sub.GetString("endpoint"),
		Key:      sub.GetString("key"),
		Model:    sub.GetString("model"),
		Temp:     float32(sub.GetFloat64("temperature")),
	}
	if m.Model == "" {
		m.Model = key
	}
	if m.Endpoint == "" {
		return Model{}, fmt.Errorf("model '%s' has no endpoint configured", name)
	}
	return m, nil
}

// ListModels returns the configured model names, sorted.
func (c *ConfigStore) ListModels() []string {
	models := c.v.GetStringMap("models")
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSearchConfig returns the configured search engine. A missing section
// yields the "none" engine, which satisfies queries with empty results.
func (c *ConfigStore) GetSearchConfig() SearchConfig {
	sc := SearchConfig{
		Name:       c.v.GetString("search.engine"),
		APIKey:     c.v.GetString("search.key"),
		CxKey:      c.v.GetString("search.cx"),
		Reference:  c.v.GetInt("search.reference"),
		MaxResults: c.v.GetInt("search.max_results"),
		FetchPages: c.v.GetBool("search.fetch_pages"),
	}
	if sc.Name == "" {
		sc.Name = "none"
	}
	if sc.Reference <= 0 {
		sc.Reference = 5
	}
	return sc
}

// GetSessionTTLMinutes returns the registry TTL, defaulting to 30 minutes.
func (c *ConfigStore) GetSessionTTLMinutes() int {
	ttl := c.v.GetInt("session.ttl_minutes")
	if ttl <= 0 {
		return 30
	}
	return ttl
}

// GetMaxContinuations bounds the tool round-trip loop.
func (c *ConfigStore) GetMaxContinuations() int {
	n := c.v.GetInt("session.max_continuations")
	if n <= 0 {
		return 5
	}
	return n
}
