package wallet

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/oraclegame/oracle-game/internal/calldata"
)

// Signer is the part of the chain client a connected wallet drives.
type Signer interface {
	SetAccount(address string)
	SetAPIKey(key string)
}

// Probe checks that the endpoint accepts the given account and key.
type Probe func(ctx context.Context, account, apiKey string) error

// ConnectionStep reports a single step in connection checks.
type ConnectionStep struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ConnectionCheckResult contains outcomes for all connection check steps.
type ConnectionCheckResult struct {
	OK    bool             `json:"ok"`
	Steps []ConnectionStep `json:"steps"`
}

// ActiveStatus is the frontend-facing connected wallet state.
type ActiveStatus struct {
	Connected bool     `json:"connected"`
	ProfileID string   `json:"profileId,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
	Address   string   `json:"address,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ModuleOptions configures a Module.
type ModuleOptions struct {
	Signer Signer
	Probe  Probe
	// DefaultAPIKey is restored on the signer when the wallet disconnects.
	DefaultAPIKey string
	// ExplorerURL is opened with the address appended. Optional.
	ExplorerURL string
	Logger      *log.Logger
}

// Module provides Wails-bound wallet profile and connection functionality.
type Module struct {
	ctx     context.Context
	store   *Store
	keyring *KeyringStore
	opts    ModuleOptions
	logger  *log.Logger

	mu          sync.RWMutex
	activeState ActiveStatus
	listeners   []func(ActiveStatus)
}

// NewModule creates a wallet module.
func NewModule(store *Store, keyringStore *KeyringStore, opts ModuleOptions) *Module {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[Wallet] ", log.LstdFlags)
	}
	return &Module{
		store:       store,
		keyring:     keyringStore,
		opts:        opts,
		logger:      logger,
		activeState: ActiveStatus{Connected: false},
	}
}

// Startup captures wails context.
func (m *Module) Startup(ctx context.Context) {
	m.ctx = ctx
}

func (m *Module) context() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// OnChange registers a callback fired after every connect or disconnect.
func (m *Module) OnChange(fn func(ActiveStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Module) ListProfiles() ([]Profile, error) {
	return m.store.List()
}

func (m *Module) SaveProfile(p Profile) (Profile, error) {
	return m.store.Save(p)
}

func (m *Module) DeleteProfile(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("profile id is required")
	}
	if err := m.keyring.Delete(id); err != nil && !isNotFound(err) {
		return err
	}
	if err := m.store.Delete(id); err != nil {
		return err
	}

	m.mu.RLock()
	active := m.activeState.ProfileID == id
	m.mu.RUnlock()
	if active {
		m.Disconnect()
	}
	return nil
}

// SetAPIKey stores an endpoint API key for the profile. An empty key removes it.
func (m *Module) SetAPIKey(id, apiKey string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("profile id is required")
	}
	if _, err := m.store.Get(id); err != nil {
		return err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return m.keyring.Delete(id)
	}
	return m.keyring.SetAPIKey(id, apiKey)
}

// HasAPIKey reports whether a key is stored without exposing it.
func (m *Module) HasAPIKey(id string) (bool, error) {
	_, err := m.keyring.GetAPIKey(id)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (m *Module) apiKey(id string) (string, error) {
	key, err := m.keyring.GetAPIKey(id)
	if err != nil {
		if isNotFound(err) {
			return m.opts.DefaultAPIKey, nil
		}
		return "", err
	}
	return key, nil
}

// ConnectionCheck runs the connect steps without changing the active wallet.
func (m *Module) ConnectionCheck(id string) (ConnectionCheckResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ConnectionCheckResult{}, fmt.Errorf("profile id is required")
	}
	profile, err := m.store.Get(id)
	if err != nil {
		return ConnectionCheckResult{}, err
	}

	result := ConnectionCheckResult{Steps: []ConnectionStep{}}

	// 1) Address format
	step1 := ConnectionStep{Name: "address"}
	if !calldata.IsAddress(profile.Address) {
		step1.Message = ErrInvalidAddress.Error()
		result.Steps = append(result.Steps, step1)
		return result, nil
	}
	step1.Success = true
	result.Steps = append(result.Steps, step1)

	// 2) Stored credentials
	step2 := ConnectionStep{Name: "credentials"}
	key, err := m.apiKey(id)
	if err != nil {
		step2.Message = err.Error()
		result.Steps = append(result.Steps, step2)
		return result, nil
	}
	step2.Success = true
	result.Steps = append(result.Steps, step2)

	// 3) Endpoint round trip
	step3 := ConnectionStep{Name: "endpoint"}
	if m.opts.Probe != nil {
		if err := m.opts.Probe(m.context(), profile.Address, key); err != nil {
			step3.Message = err.Error()
			result.Steps = append(result.Steps, step3)
			return result, nil
		}
	}
	step3.Success = true
	result.Steps = append(result.Steps, step3)
	result.OK = true
	return result, nil
}

// Connect makes the profile the active wallet and points the signer at it.
func (m *Module) Connect(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("profile id is required")
	}
	profile, err := m.store.Get(id)
	if err != nil {
		return err
	}
	key, err := m.apiKey(id)
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}

	if m.opts.Probe != nil {
		if err := m.opts.Probe(m.context(), profile.Address, key); err != nil {
			m.setState(ActiveStatus{Connected: false, Error: err.Error()})
			return err
		}
	}

	if m.opts.Signer != nil {
		m.opts.Signer.SetAccount(profile.Address)
		m.opts.Signer.SetAPIKey(key)
	}
	m.logger.Printf("connected %s (%s)", profile.Address, profile.Label)
	m.setState(ActiveStatus{
		Connected: true,
		ProfileID: id,
		Profile:   profile,
		Address:   profile.Address,
	})
	return nil
}

func (m *Module) Disconnect() {
	if m.opts.Signer != nil {
		m.opts.Signer.SetAccount("")
		m.opts.Signer.SetAPIKey(m.opts.DefaultAPIKey)
	}
	m.setState(ActiveStatus{Connected: false})
}

func (m *Module) setState(st ActiveStatus) {
	m.mu.Lock()
	m.activeState = st
	listeners := append([]func(ActiveStatus){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func (m *Module) GetActiveStatus() ActiveStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeState
}

// ActiveAddress returns the connected address or "".
func (m *Module) ActiveAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.activeState.Connected {
		return ""
	}
	return m.activeState.Address
}

func (m *Module) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeState.Connected
}

// OpenInExplorer opens the profile's address in the configured block explorer.
func (m *Module) OpenInExplorer(id string) error {
	profile, err := m.store.Get(strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if m.ctx == nil {
		return fmt.Errorf("wails context not initialized")
	}
	base := strings.TrimRight(strings.TrimSpace(m.opts.ExplorerURL), "/")
	if base == "" {
		return fmt.Errorf("no explorer configured")
	}
	wruntime.BrowserOpenURL(m.ctx, base+"/address/"+profile.Address)
	return nil
}
