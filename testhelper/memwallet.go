package testhelper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/genetrust/genetrust-gateway/types"
)

var _ types.WalletSDK = (*MemWallet)(nil)

// MemWallet is an in-memory wallet SDK. It authorizes the accounts it was built with.
type MemWallet struct {
	lk       sync.Mutex
	accounts []string
	network  string
	session  *types.WalletSession
	signedIn bool

	fail           bool
	cancel         bool
	failDisconnect bool
	block          chan struct{}
	blockDisc      chan struct{}

	connectCalls    int
	disconnectCalls int
	txs             []*types.TxRequest

	nextSub  int
	handlers map[int]func(*types.WalletEvent)
}

func NewMemWallet(network string, accounts ...string) *MemWallet {
	return &MemWallet{
		accounts: accounts,
		network:  network,
		signedIn: true,
		handlers: make(map[int]func(*types.WalletEvent)),
	}
}

func (m *MemWallet) SetFail(ctx context.Context, fail bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.fail = fail
}

// SetCancel makes prompts behave as if the user closed them.
func (m *MemWallet) SetCancel(cancel bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.cancel = cancel
}

// SetSignedIn controls whether a completed connect reports a signed in session.
func (m *MemWallet) SetSignedIn(signedIn bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.signedIn = signedIn
}

func (m *MemWallet) SetFailDisconnect(fail bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.failDisconnect = fail
}

func (m *MemWallet) SetAccounts(accounts ...string) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.accounts = accounts
}

// Authorize simulates a session left over from an earlier visit.
func (m *MemWallet) Authorize() {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.session = m.newSession()
}

// BlockConnect holds WalletConnect until the returned func is called.
func (m *MemWallet) BlockConnect() (release func()) {
	m.lk.Lock()
	defer m.lk.Unlock()
	ch := make(chan struct{})
	m.block = ch
	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// BlockDisconnect holds WalletDisconnect until the returned func is called.
func (m *MemWallet) BlockDisconnect() (release func()) {
	m.lk.Lock()
	defer m.lk.Unlock()
	ch := make(chan struct{})
	m.blockDisc = ch
	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

func (m *MemWallet) ConnectCalls() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.connectCalls
}

func (m *MemWallet) DisconnectCalls() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.disconnectCalls
}

func (m *MemWallet) Transactions() []*types.TxRequest {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]*types.TxRequest(nil), m.txs...)
}

func (m *MemWallet) Subscribers() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return len(m.handlers)
}

func (m *MemWallet) newSession() *types.WalletSession {
	return &types.WalletSession{
		Accounts: append([]string(nil), m.accounts...),
		SignedIn: m.signedIn,
		Network:  m.network,
		Raw:      fmt.Sprintf(`{"accounts":%d}`, len(m.accounts)),
	}
}

func (m *MemWallet) WalletSession(ctx context.Context) (*types.WalletSession, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if m.session == nil {
		return &types.WalletSession{}, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemWallet) WalletConnect(ctx context.Context, opts *types.ConnectOptions) (*types.WalletSession, error) {
	m.lk.Lock()
	m.connectCalls++
	block := m.block
	m.lk.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if m.cancel {
		return nil, errors.New(types.ErrMsgUserCancelled)
	}
	m.session = m.newSession()
	cp := *m.session
	return &cp, nil
}

func (m *MemWallet) WalletDisconnect(ctx context.Context) error {
	m.lk.Lock()
	m.disconnectCalls++
	block := m.blockDisc
	m.lk.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.lk.Lock()
	defer m.lk.Unlock()
	m.session = nil
	if m.fail || m.failDisconnect {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (m *MemWallet) WalletSignMessage(ctx context.Context, req *types.SignMessageRequest) (*types.Signature, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if m.cancel {
		return nil, errors.New(types.ErrMsgUserCancelled)
	}
	if m.session == nil {
		return nil, fmt.Errorf("no session")
	}
	sum := sha256.Sum256([]byte(req.Address + "\n" + req.Message))
	return &types.Signature{
		Address:   req.Address,
		PublicKey: "02" + hex.EncodeToString(sum[:]),
		Signature: hex.EncodeToString(sum[:]),
	}, nil
}

func (m *MemWallet) WalletSendTransaction(ctx context.Context, tx *types.TxRequest) (*types.TxResult, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if m.cancel {
		return nil, errors.New(types.ErrMsgUserCancelled)
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	m.txs = append(m.txs, tx)
	sum := sha256.Sum256(data)
	return &types.TxResult{TxID: "0x" + hex.EncodeToString(sum[:])}, nil
}

func (m *MemWallet) Subscribe(handler func(*types.WalletEvent)) func() {
	m.lk.Lock()
	defer m.lk.Unlock()
	id := m.nextSub
	m.nextSub++
	m.handlers[id] = handler
	return func() {
		m.lk.Lock()
		defer m.lk.Unlock()
		delete(m.handlers, id)
	}
}

// Emit delivers an SDK event to every subscriber synchronously.
func (m *MemWallet) Emit(ev *types.WalletEvent) {
	m.lk.Lock()
	if ev.Type == types.EventDisconnect {
		m.session = nil
	}
	handlers := make([]func(*types.WalletEvent), 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.lk.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
