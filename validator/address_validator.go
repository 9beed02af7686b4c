package validator

import (
	"context"
	"fmt"

	"github.com/genetrust/genetrust-gateway/apperr"
	"github.com/genetrust/genetrust-gateway/genetrust"
)

type IAddressValidator interface {
	Validate(ctx context.Context, address string) error
}

var _ IAddressValidator = (*AddressValidator)(nil)

// AddressValidator accepts c32check principals of the configured network only.
type AddressValidator struct {
	network string
}

func (av *AddressValidator) Validate(ctx context.Context, address string) error {
	if address == "" {
		return apperr.InvalidInput("wallet address is required")
	}
	addr, err := genetrust.ParseAddress(address)
	if err != nil {
		return apperr.InvalidInput("invalid wallet address").WithCause(err)
	}
	mainnet := av.network == genetrust.NetworkMainnet
	if addr.Mainnet() != mainnet {
		return apperr.InvalidInput("address %s does not belong to %s", address, av.network).
			WithContext("address", address)
	}
	return nil
}

func NewAddressValidator(network string) (IAddressValidator, error) {
	switch network {
	case genetrust.NetworkMainnet, genetrust.NetworkTestnet:
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
	return &AddressValidator{network: network}, nil
}
