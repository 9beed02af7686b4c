package types

import (
	"fmt"
	"strings"
	"time"
)

type ProviderID string

const (
	ProviderReown ProviderID = "reown"
	ProviderHiro  ProviderID = "hiro"
)

var AllProviders = []ProviderID{ProviderReown, ProviderHiro}

func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range AllProviders {
		if p == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown wallet provider %q", s)
}

// ConnStatus is the explicit connection state of a wallet adapter.
type ConnStatus string

const (
	StatusDisconnected  ConnStatus = "disconnected"
	StatusConnecting    ConnStatus = "connecting"
	StatusConnected     ConnStatus = "connected"
	StatusDisconnecting ConnStatus = "disconnecting"
)

// WalletState is owned by a single adapter. IsConnected is true iff Address is set.
type WalletState struct {
	Address     string     `json:"address,omitempty"`
	IsConnected bool       `json:"isConnected"`
	Network     string     `json:"network,omitempty"`
	Provider    ProviderID `json:"provider,omitempty"`
	Status      ConnStatus `json:"status"`
}

func DisconnectedState(provider ProviderID) WalletState {
	return WalletState{Provider: provider, Status: StatusDisconnected}
}

type ProviderInfo struct {
	ID        ProviderID `json:"id"`
	Enabled   bool       `json:"enabled"`
	Connected bool       `json:"connected"`
}

// ManagerState is the composite read model consumers should rely on.
type ManagerState struct {
	Address            string       `json:"address,omitempty"`
	IsConnected        bool         `json:"isConnected"`
	Network            string       `json:"network,omitempty"`
	Provider           ProviderID   `json:"provider,omitempty"`
	AvailableProviders []ProviderID `json:"availableProviders"`
}

// WalletSession is what a wallet SDK reports about its authorization. Accounts are either
// bare Stacks addresses or CAIP-10 ids (stacks:<chain>:<address>).
type WalletSession struct {
	Accounts []string `json:"accounts"`
	SignedIn bool     `json:"signedIn"`
	Network  string   `json:"network,omitempty"`
	// Raw is the opaque session blob some SDKs let callers persist.
	Raw string `json:"raw,omitempty"`
}

type ConnectOptions struct {
	AppName string `json:"appName"`
	AppIcon string `json:"appIcon,omitempty"`
	Network string `json:"network"`
}

type Signature struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type SignMessageRequest struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

type PostConditionMode string

const (
	PostConditionAllow PostConditionMode = "allow"
	PostConditionDeny  PostConditionMode = "deny"
)

// TxRequest describes a contract call the wallet has to sign and broadcast.
type TxRequest struct {
	Sender            string            `json:"sender,omitempty"`
	ContractAddress   string            `json:"contractAddress"`
	ContractName      string            `json:"contractName"`
	FunctionName      string            `json:"functionName"`
	FunctionArgs      []string          `json:"functionArgs"`
	Network           string            `json:"network"`
	PostConditionMode PostConditionMode `json:"postConditionMode"`
	Memo              string            `json:"memo,omitempty"`
}

type TxResult struct {
	TxID string `json:"txId"`
}

type WalletEventType string

const (
	EventAccountsChanged WalletEventType = "accountsChanged"
	EventDisconnect      WalletEventType = "disconnect"
	EventChainChanged    WalletEventType = "chainChanged"
)

type WalletEvent struct {
	Type     WalletEventType `json:"type"`
	Accounts []string        `json:"accounts,omitempty"`
	Network  string          `json:"network,omitempty"`
}

// WalletAppDetail describes one wallet app connection held by the gateway.
type WalletAppDetail struct {
	Provider     ProviderID `json:"provider"`
	Name         string     `json:"name"`
	ChannelID    string     `json:"channelId"`
	IP           string     `json:"ip"`
	RequestCount int        `json:"requestCount"`
	CreateTime   time.Time  `json:"createTime"`
}
