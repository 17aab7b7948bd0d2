package persistence

import (
	"testing"

	"github.com/osvaldoandrade/xebench/pkg/domain"
)

func TestRegisterProvider(t *testing.T) {
	mockFactory := func(config PluginConfig) (PluginPersistence, error) {
		return nil, nil
	}

	RegisterProvider("test", mockFactory)

	providers := ListProviders()
	found := false
	for _, p := range providers {
		if p == "test" {
			found = true
			break
		}
	}

	if !found {
		t.Errorf("Expected to find 'test' provider in list, got: %v", providers)
	}
}

func TestNewPersistencePassesDefaultConfig(t *testing.T) {
	var got string
	RegisterProvider("capture", func(config PluginConfig) (PluginPersistence, error) {
		got = string(config.Config)
		return nil, nil
	})

	if _, err := NewPersistence(ProviderConfig{Type: "capture"}); err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	if got != "{}" {
		t.Errorf("Expected empty object config, got %q", got)
	}
}

func TestNewPersistenceUnknownProvider(t *testing.T) {
	cfg := ProviderConfig{
		Type:   "unknown_provider",
		Config: []byte("{}"),
	}

	_, err := NewPersistence(cfg)
	if err == nil {
		t.Error("Expected error for unknown provider, got nil")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err != ErrInvalidReport {
		t.Errorf("nil report: got %v", err)
	}
	if err := Validate(&domain.Report{}); err != ErrInvalidReport {
		t.Errorf("empty id: got %v", err)
	}
	if err := Validate(&domain.Report{ID: "r1"}); err != nil {
		t.Errorf("valid report: got %v", err)
	}
}
