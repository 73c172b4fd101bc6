package bindings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oraclegame/oracle-game/internal/wallet"
)

// WalletModule exposes wallet.Module through the bindings package.
type WalletModule struct {
	inner *wallet.Module
	store *wallet.Store
}

// NewWalletModule opens the profile store. onChange listeners run after every
// connect or disconnect, before the frontend is notified.
func NewWalletModule(dbPath, fallbackSecretsPath string, opts wallet.ModuleOptions, onChange ...func(wallet.ActiveStatus)) (*WalletModule, error) {
	store, err := wallet.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("wallet store init failed: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wallet store migrate failed: %w", err)
	}

	keyringStore := wallet.NewKeyringStore("oracle-game", fallbackSecretsPath)
	inner := wallet.NewModule(store, keyringStore, opts)
	for _, fn := range onChange {
		inner.OnChange(fn)
	}
	return &WalletModule{inner: inner, store: store}, nil
}

// Startup captures the Wails context and forwards wallet changes to the UI.
func (m *WalletModule) Startup(ctx context.Context) {
	m.inner.Startup(ctx)
	emitter := &wailsEmitter{ctx: ctx}
	m.inner.OnChange(func(st wallet.ActiveStatus) {
		emitter.Emit(EventWalletChanged, st)
	})
}

func (m *WalletModule) Shutdown() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// ActiveAddress returns the connected address or "". It lets the module
// stand in as the game service's wallet.
func (m *WalletModule) ActiveAddress() string {
	return m.inner.ActiveAddress()
}

func (m *WalletModule) ListProfiles() ([]wallet.Profile, error) {
	return m.inner.ListProfiles()
}

func (m *WalletModule) SaveProfile(p wallet.Profile) (wallet.Profile, error) {
	return m.inner.SaveProfile(p)
}

func (m *WalletModule) DeleteProfile(id string) error {
	return m.inner.DeleteProfile(id)
}

func (m *WalletModule) SetAPIKey(id, apiKey string) error {
	return m.inner.SetAPIKey(id, apiKey)
}

func (m *WalletModule) HasAPIKey(id string) (bool, error) {
	return m.inner.HasAPIKey(id)
}

func (m *WalletModule) ConnectionCheck(id string) (wallet.ConnectionCheckResult, error) {
	return m.inner.ConnectionCheck(id)
}

func (m *WalletModule) Connect(id string) error {
	return m.inner.Connect(id)
}

func (m *WalletModule) Disconnect() {
	m.inner.Disconnect()
}

func (m *WalletModule) GetActiveStatus() wallet.ActiveStatus {
	return m.inner.GetActiveStatus()
}

func (m *WalletModule) OpenInExplorer(id string) error {
	return m.inner.OpenInExplorer(id)
}

// DefaultFallbackSecretsPath builds a fallback secret file path.
func DefaultFallbackSecretsPath(baseDir string) string {
	return filepath.Join(baseDir, "wallet_secrets_fallback.json")
}
