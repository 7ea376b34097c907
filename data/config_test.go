package data

import (
	"testing"

	"github.com/spf13/viper"
)

func storeFrom(settings map[string]interface{}) *ConfigStore {
	v := viper.New()
	for key, value := range settings {
		v.Set(key, value)
	}
	return &ConfigStore{v: v}
}

func TestGetModel(t *testing.T) {
	store := storeFrom(map[string]interface{}{
		"default.model":           "gpt4",
		"models.gpt4.endpoint":    "https://api.openai.com/v1",
		"models.gpt4.key":         "sk-test",
		"models.gpt4.model":       "gpt-4o",
		"models.gpt4.temperature": 0.7,
		"models.local.endpoint":   "http://localhost:11434/v1",
		"models.broken.key":       "sk-nope",
	})

	m, err := store.GetModel("gpt4")
	if err != nil {
		t.Fatalf("GetModel() error = %v", err)
	}
	if m.Model != "gpt-4o" || m.Endpoint != "https://api.openai.com/v1" {
		t.Errorf("unexpected model: %+v", m)
	}

	// Empty name falls through to the default model.
	m, err = store.GetModel("")
	if err != nil || m.Name != "gpt4" {
		t.Errorf("default lookup = (%+v, %v)", m, err)
	}

	// Provider id falls back to the config key.
	m, err = store.GetModel("LOCAL")
	if err != nil {
		t.Fatalf("GetModel() error = %v", err)
	}
	if m.Model != "local" {
		t.Errorf("model id fallback = %q", m.Model)
	}

	if _, err := store.GetModel("missing"); err == nil {
		t.Error("unknown model must error")
	}
	if _, err := store.GetModel("broken"); err == nil {
		t.Error("model without endpoint must error")
	}
}

func TestListModels(t *testing.T) {
	store := storeFrom(map[string]interface{}{
		"models.zeta.endpoint":  "https://z",
		"models.alpha.endpoint": "https://a",
	})
	names := store.ListModels()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("ListModels() = %v", names)
	}
}

func TestGetSearchConfig(t *testing.T) {
	store := storeFrom(map[string]interface{}{
		"search.engine":      "google",
		"search.key":         "k",
		"search.cx":          "cx",
		"search.max_results": 3,
	})
	sc := store.GetSearchConfig()
	if sc.Name != "google" || sc.MaxResults != 3 {
		t.Errorf("unexpected search config: %+v", sc)
	}
	if sc.Reference != 5 {
		t.Errorf("reference default = %d, want 5", sc.Reference)
	}

	empty := storeFrom(nil).GetSearchConfig()
	if empty.Name != "none" {
		t.Errorf("missing section must yield the none engine, got %q", empty.Name)
	}
}

func TestSessionDefaults(t *testing.T) {
	store := storeFrom(nil)
	if got := store.GetSessionTTLMinutes(); got != 30 {
		t.Errorf("ttl default = %d, want 30", got)
	}
	if got := store.GetMaxContinuations(); got != 5 {
		t.Errorf("continuation default = %d, want 5", got)
	}

	tuned := storeFrom(map[string]interface{}{
		"session.ttl_minutes":       120,
		"session.max_continuations": 2,
	})
	if got := tuned.GetSessionTTLMinutes(); got != 120 {
		t.Errorf("ttl = %d, want 120", got)
	}
	if got := tuned.GetMaxContinuations(); got != 2 {
		t.Errorf("continuations = %d, want 2", got)
	}
}
