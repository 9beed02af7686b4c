package wallet

import (
	"context"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/types"
)

var managerLog = logging.Logger("wallet_manager")

type ManagerConfig struct {
	// EnabledProviders limits the registered adapters that may be used; empty enables all.
	EnabledProviders []types.ProviderID
}

// Manager owns the provider adapters and tracks the single current one.
type Manager struct {
	lk       sync.RWMutex
	services map[types.ProviderID]Service
	order    []types.ProviderID
	enabled  map[types.ProviderID]bool
	current  types.ProviderID
	pending  types.ProviderID
	unsubs   []func()

	// initializing lets Init pick among restored sessions itself
	initializing bool

	connectLk sync.Mutex
	listeners *listenerSet[types.ManagerState]
}

func NewManager(cfg ManagerConfig, services ...Service) *Manager {
	m := &Manager{
		services:  make(map[types.ProviderID]Service, len(services)),
		enabled:   make(map[types.ProviderID]bool),
		listeners: newListenerSet[types.ManagerState](managerLog.With()),
	}
	for _, svc := range services {
		id := svc.Provider()
		if _, ok := m.services[id]; ok {
			managerLog.Warnf("provider %s registered twice, keep the first", id)
			continue
		}
		m.services[id] = svc
		m.order = append(m.order, id)
	}
	if len(cfg.EnabledProviders) == 0 {
		for _, id := range m.order {
			m.enabled[id] = true
		}
	}
	for _, id := range cfg.EnabledProviders {
		if _, ok := m.services[id]; ok {
			m.enabled[id] = true
		} else {
			managerLog.Warnf("provider %s enabled but not registered", id)
		}
	}
	for _, id := range m.order {
		id := id
		unsub, _ := m.services[id].Subscribe(func(state types.WalletState) {
			m.onServiceState(id, state)
		})
		m.unsubs = append(m.unsubs, unsub)
		if g, ok := m.services[id].(adoptGated); ok {
			g.setAdoptGate(func() bool { return m.mayAdopt(id) })
		}
	}
	return m
}

// adoptGated adapters ask before adopting a session they find on their own.
type adoptGated interface {
	setAdoptGate(gate func() bool)
}

// mayAdopt reports whether provider id may become active without an explicit Connect.
func (m *Manager) mayAdopt(id types.ProviderID) bool {
	m.lk.RLock()
	defer m.lk.RUnlock()
	if m.initializing {
		return true
	}
	return m.enabled[id] && (m.current == "" || m.current == id) && (m.pending == "" || m.pending == id)
}

func (m *Manager) onServiceState(id types.ProviderID, state types.WalletState) {
	m.lk.Lock()
	stray := false
	switch {
	case state.Status == types.StatusConnected && m.current == "" && m.enabled[id]:
		m.current = id
	case state.Status == types.StatusConnected && m.current != id && m.pending != id && !m.initializing:
		stray = true
	case state.Status == types.StatusDisconnected && m.current == id:
		m.current = ""
	}
	m.lk.Unlock()
	if stray {
		// only one provider may hold a session
		go m.dropStray(id)
		return
	}
	m.emit()
}

func (m *Manager) dropStray(id types.ProviderID) {
	managerLog.Warnw("provider connected while another is active, disconnecting it", "provider", id)
	if err := m.services[id].Disconnect(context.Background()); err != nil {
		managerLog.Warnw("disconnect stray provider", "provider", id, "err", err)
	}
}

func (m *Manager) emit() {
	m.listeners.emit(m.GetState())
}

// Init initializes every enabled adapter concurrently. A failing adapter is logged and
// stays usable for an explicit Connect.
func (m *Manager) Init(ctx context.Context) error {
	m.lk.Lock()
	m.initializing = true
	m.lk.Unlock()

	var eg errgroup.Group
	for _, id := range m.availableProviders() {
		svc := m.services[id]
		eg.Go(func() error {
			if err := svc.Init(ctx); err != nil {
				managerLog.Warnw("init wallet provider failed", "provider", svc.Provider(), "err", err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	// two restored sessions: keep the first in registration order
	var keep types.ProviderID
	for _, id := range m.availableProviders() {
		if m.services[id].GetState().Status != types.StatusConnected {
			continue
		}
		if keep == "" {
			keep = id
			continue
		}
		managerLog.Infow("drop extra restored session", "provider", id, "keep", keep)
		_ = m.services[id].Disconnect(ctx)
	}
	m.lk.Lock()
	m.current = keep
	m.initializing = false
	m.lk.Unlock()
	m.emit()
	return nil
}

func (m *Manager) service(id types.ProviderID) (Service, error) {
	m.lk.RLock()
	defer m.lk.RUnlock()
	svc, ok := m.services[id]
	if !ok || !m.enabled[id] {
		return nil, apperr.ErrProviderUnavailable.WithContext("provider", id)
	}
	return svc, nil
}

// Connect makes provider the current one, disconnecting a different current provider first.
func (m *Manager) Connect(ctx context.Context, provider types.ProviderID) (string, error) {
	svc, err := m.service(provider)
	if err != nil {
		return "", err
	}
	if !m.connectLk.TryLock() {
		return "", apperr.ErrWalletBusy.WithContext("provider", provider)
	}
	defer m.connectLk.Unlock()

	m.lk.Lock()
	cur := m.current
	m.pending = provider
	m.lk.Unlock()
	defer func() {
		m.lk.Lock()
		m.pending = ""
		m.lk.Unlock()
	}()

	if cur != "" && cur != provider {
		managerLog.Infow("switch wallet provider", "from", cur, "to", provider)
		if err := m.services[cur].Disconnect(ctx); err != nil {
			return "", err
		}
		m.lk.Lock()
		if m.current == cur {
			m.current = ""
		}
		m.lk.Unlock()
	}

	address, err := svc.Connect(ctx)
	if err != nil {
		return "", err
	}
	m.lk.Lock()
	m.current = provider
	m.lk.Unlock()
	m.emit()
	return address, nil
}

// Disconnect ends the current session, or aborts a connect in flight.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.lk.RLock()
	target := m.current
	if target == "" {
		target = m.pending
	}
	m.lk.RUnlock()
	if target == "" {
		return nil
	}

	err := m.services[target].Disconnect(ctx)
	m.lk.Lock()
	if m.current == target {
		m.current = ""
	}
	m.lk.Unlock()
	m.emit()
	return err
}

func (m *Manager) currentService() (Service, error) {
	m.lk.RLock()
	defer m.lk.RUnlock()
	if m.current == "" {
		return nil, apperr.ErrNotConnected
	}
	return m.services[m.current], nil
}

func (m *Manager) SignMessage(ctx context.Context, message string) (*types.Signature, error) {
	svc, err := m.currentService()
	if err != nil {
		return nil, err
	}
	return svc.SignMessage(ctx, message)
}

func (m *Manager) SendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error) {
	svc, err := m.currentService()
	if err != nil {
		return nil, err
	}
	return svc.SendTransaction(ctx, tx)
}

// GetState is the composite view consumers should read.
func (m *Manager) GetState() types.ManagerState {
	m.lk.RLock()
	cur := m.current
	m.lk.RUnlock()

	state := types.ManagerState{AvailableProviders: m.availableProviders()}
	if cur == "" {
		return state
	}
	ws := m.services[cur].GetState()
	state.Address = ws.Address
	state.IsConnected = ws.IsConnected
	state.Network = ws.Network
	state.Provider = cur
	return state
}

func (m *Manager) availableProviders() []types.ProviderID {
	m.lk.RLock()
	defer m.lk.RUnlock()
	out := make([]types.ProviderID, 0, len(m.order))
	for _, id := range m.order {
		if m.enabled[id] {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) Providers() []types.ProviderInfo {
	m.lk.RLock()
	order := append([]types.ProviderID(nil), m.order...)
	m.lk.RUnlock()

	out := make([]types.ProviderInfo, 0, len(order))
	for _, id := range order {
		m.lk.RLock()
		enabled := m.enabled[id]
		m.lk.RUnlock()
		out = append(out, types.ProviderInfo{
			ID:        id,
			Enabled:   enabled,
			Connected: m.services[id].GetState().IsConnected,
		})
	}
	return out
}

func (m *Manager) Subscribe(cb func(types.ManagerState)) (func(), error) {
	return m.listeners.add(cb)
}

func (m *Manager) Watch(ctx context.Context) <-chan types.ManagerState {
	return m.listeners.watch(ctx, m.GetState)
}

// Destroy detaches from and destroys every adapter.
func (m *Manager) Destroy() {
	m.lk.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.current = ""
	services := make([]Service, 0, len(m.order))
	for _, id := range m.order {
		services = append(services, m.services[id])
	}
	m.lk.Unlock()

	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
	for _, svc := range services {
		svc.Destroy()
	}
	m.listeners.clear()
}
