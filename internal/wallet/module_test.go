package wallet

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"
)

type recordingSigner struct {
	mu      sync.Mutex
	account string
	apiKey  string
}

func (s *recordingSigner) SetAccount(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = address
}

func (s *recordingSigner) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

func (s *recordingSigner) snapshot() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.apiKey
}

func testModule(t *testing.T, signer Signer, probe Probe) *Module {
	t.Helper()
	keyring.MockInit()
	store := newTestStore(t)
	keyringStore := NewKeyringStore("oracle-game-test-module", filepath.Join(t.TempDir(), "fallback.json"))
	mod := NewModule(store, keyringStore, ModuleOptions{
		Signer:        signer,
		Probe:         probe,
		DefaultAPIKey: "shared-key",
	})
	mod.Startup(context.Background())
	return mod
}

func TestModuleConnectionCheckAndConnect(t *testing.T) {
	signer := &recordingSigner{}
	var probed []string
	mod := testModule(t, signer, func(ctx context.Context, account, apiKey string) error {
		probed = append(probed, account+"|"+apiKey)
		return nil
	})

	p, err := mod.SaveProfile(Profile{Label: "Primary", Address: addrA})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if err := mod.SetAPIKey(p.ID, "own-key"); err != nil {
		t.Fatalf("set api key: %v", err)
	}
	has, err := mod.HasAPIKey(p.ID)
	if err != nil || !has {
		t.Fatalf("HasAPIKey = %v, %v", has, err)
	}

	check, err := mod.ConnectionCheck(p.ID)
	if err != nil {
		t.Fatalf("connection check err: %v", err)
	}
	if !check.OK || len(check.Steps) != 3 {
		t.Fatalf("expected check OK, got %#v", check)
	}
	if mod.IsConnected() {
		t.Fatal("connection check must not connect")
	}

	var changes []ActiveStatus
	mod.OnChange(func(st ActiveStatus) { changes = append(changes, st) })

	if err := mod.Connect(p.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	status := mod.GetActiveStatus()
	if !status.Connected || status.Address != addrA || status.ProfileID != p.ID {
		t.Fatalf("expected connected status, got %#v", status)
	}
	if mod.ActiveAddress() != addrA {
		t.Fatalf("ActiveAddress = %q", mod.ActiveAddress())
	}
	if account, key := signer.snapshot(); account != addrA || key != "own-key" {
		t.Fatalf("signer got %q/%q", account, key)
	}
	if len(probed) != 2 || probed[1] != addrA+"|own-key" {
		t.Fatalf("unexpected probes %v", probed)
	}

	mod.Disconnect()
	if mod.ActiveAddress() != "" || mod.IsConnected() {
		t.Fatal("expected disconnected")
	}
	if account, key := signer.snapshot(); account != "" || key != "shared-key" {
		t.Fatalf("signer not reset: %q/%q", account, key)
	}
	if len(changes) != 2 || !changes[0].Connected || changes[1].Connected {
		t.Fatalf("unexpected change events %#v", changes)
	}
}

func TestModuleConnectWithoutKeyUsesDefault(t *testing.T) {
	signer := &recordingSigner{}
	mod := testModule(t, signer, nil)

	p, err := mod.SaveProfile(Profile{Label: "NoKey", Address: addrB})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if has, _ := mod.HasAPIKey(p.ID); has {
		t.Fatal("expected no stored key")
	}
	if err := mod.Connect(p.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, key := signer.snapshot(); key != "shared-key" {
		t.Fatalf("expected default key, got %q", key)
	}
}

func TestModuleConnectProbeFailure(t *testing.T) {
	signer := &recordingSigner{}
	mod := testModule(t, signer, func(ctx context.Context, account, apiKey string) error {
		return errors.New("endpoint unreachable")
	})
	p, err := mod.SaveProfile(Profile{Label: "Down", Address: addrA})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}

	check, err := mod.ConnectionCheck(p.ID)
	if err != nil {
		t.Fatalf("connection check err: %v", err)
	}
	if check.OK || len(check.Steps) != 3 || check.Steps[2].Success {
		t.Fatalf("expected endpoint step failure, got %#v", check.Steps)
	}

	if err := mod.Connect(p.ID); err == nil {
		t.Fatal("expected connect error")
	}
	status := mod.GetActiveStatus()
	if status.Connected || status.Error == "" {
		t.Fatalf("expected error status, got %#v", status)
	}
	if account, _ := signer.snapshot(); account != "" {
		t.Fatalf("signer should be untouched, got %q", account)
	}
}

func TestModuleDeleteActiveProfileDisconnects(t *testing.T) {
	mod := testModule(t, &recordingSigner{}, nil)
	p, err := mod.SaveProfile(Profile{Label: "Temp", Address: addrA})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if err := mod.SetAPIKey(p.ID, "k"); err != nil {
		t.Fatalf("set api key: %v", err)
	}
	if err := mod.Connect(p.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := mod.DeleteProfile(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mod.IsConnected() {
		t.Fatal("expected disconnect after deleting active profile")
	}
	if has, _ := mod.HasAPIKey(p.ID); has {
		t.Fatal("expected key removed with profile")
	}
}
