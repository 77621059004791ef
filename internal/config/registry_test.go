package config_test

import (
	"errors"
	"testing"

	"github.com/nomicbot/nomic/internal/config"
	"github.com/nomicbot/nomic/pkg/provider/tts"
	ttsmock "github.com/nomicbot/nomic/pkg/provider/tts/mock"
)

func TestRegistry_CreateTTS(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterTTS("mock", func(entry config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{NameResult: "mock-" + entry.APIKey}, nil
	})

	p, err := reg.CreateTTS(config.ProviderEntry{Name: "mock", APIKey: "k1"})
	if err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if p.Name() != "mock-k1" {
		t.Errorf("provider name = %q, factory did not receive entry", p.Name())
	}
}

func TestRegistry_UnregisteredName(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.CreateTTS(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{NameResult: "first"}, nil
	})
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{NameResult: "second"}, nil
	})

	p, err := reg.CreateTTS(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if p.Name() != "second" {
		t.Errorf("got %q, want the later registration to win", p.Name())
	}

	if names := reg.Names(); len(names) != 1 || names[0] != "mock" {
		t.Errorf("Names = %v", names)
	}
}
