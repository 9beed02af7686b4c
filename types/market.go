package types

import (
	"time"
)

// Access levels a listing can grant, lowest to highest.
const (
	AccessLevelBasic    = 1
	AccessLevelDetailed = 2
	AccessLevelFull     = 3
)

// DefaultListingPrice is in micro-STX.
const DefaultListingPrice uint64 = 1_000_000

type DatasetStats struct {
	Variants int `json:"variants"`
	Genes    int `json:"genes"`
}

type Dataset struct {
	ID           uint64       `json:"id"`
	Owner        string       `json:"owner"`
	Description  string       `json:"description"`
	AccessLevels []int        `json:"accessLevels"`
	StorageURL   string       `json:"storageUrl,omitempty"`
	Stats        DatasetStats `json:"stats"`
	CreatedAt    time.Time    `json:"createdAt"`
	TxID         string       `json:"txId,omitempty"`
}

type Listing struct {
	ListingID   uint64    `json:"listingId"`
	DataID      uint64    `json:"dataId"`
	Owner       string    `json:"owner"`
	Price       uint64    `json:"price"`
	AccessLevel int       `json:"accessLevel"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	TxID        string    `json:"txId,omitempty"`
}

type PurchaseReceipt struct {
	ListingID   uint64    `json:"listingId"`
	Buyer       string    `json:"buyer"`
	AccessLevel int       `json:"accessLevel"`
	Price       uint64    `json:"price"`
	TxID        string    `json:"txId"`
	Success     bool      `json:"success"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

type InitParams struct {
	WalletAddress string `json:"walletAddress"`
}

type CreateDatasetParams struct {
	Description  string       `json:"description"`
	AccessLevels []int        `json:"accessLevels,omitempty"`
	StorageURL   string       `json:"storageUrl,omitempty"`
	Stats        DatasetStats `json:"stats"`
	Price        uint64       `json:"price,omitempty"`
	// Records are raw VCF-like lines; stats are derived from them when Stats is empty.
	Records []string `json:"records,omitempty"`
}

// CreateListingParams keeps numbers optional so that zero means "use the default".
type CreateListingParams struct {
	DataID      uint64 `json:"dataId"`
	Price       uint64 `json:"price,omitempty"`
	AccessLevel int    `json:"accessLevel,omitempty"`
	Description string `json:"description,omitempty"`
}

type PurchaseParams struct {
	ListingID          uint64 `json:"listingId"`
	DesiredAccessLevel int    `json:"desiredAccessLevel"`
}

type ListMarketplaceParams struct {
	OwnerOnly bool `json:"ownerOnly"`
}

type ContractMode string

const (
	ModeMock ContractMode = "mock"
	ModeReal ContractMode = "real"
)

type ContractStatus struct {
	Mode          ContractMode `json:"mode"`
	Initialized   bool         `json:"initialized"`
	WalletAddress string       `json:"walletAddress,omitempty"`
	Network       string       `json:"network"`
	Contracts     []string     `json:"contracts"`
	DatasetCount  int          `json:"datasetCount"`
	ListingCount  int          `json:"listingCount"`
}

// AnalyticsConsent holds the cookie-consent category flags.
type AnalyticsConsent struct {
	Necessary bool      `json:"necessary"`
	Analytics bool      `json:"analytics"`
	Marketing bool      `json:"marketing"`
	UpdatedAt time.Time `json:"updatedAt"`
}
