package validator

import (
	"context"

	"github.com/genetrust/genetrust-gateway/apperr"
)

var _ IAddressValidator = (*MockAddressValidator)(nil)

// MockAddressValidator accepts every non empty address unless it is listed as rejected.
type MockAddressValidator struct {
	Rejected []string
}

func (m MockAddressValidator) Validate(ctx context.Context, address string) error {
	if address == "" {
		return apperr.InvalidInput("wallet address is required")
	}
	for _, addr := range m.Rejected {
		if addr == address {
			return apperr.InvalidInput("not validated address")
		}
	}
	return nil
}
