package metrics

import (
	"context"
	"time"

	"go.opencensus.io/tag"

	"github.com/genetrust/genetrust-gateway/types"
)

// StateSource is the read side of the gateway API the loop samples.
type StateSource interface {
	WalletState(ctx context.Context) (*types.ManagerState, error)
	ListWalletConnections(ctx context.Context) ([]*types.WalletAppDetail, error)
	ContractStatus(ctx context.Context) (*types.ContractStatus, error)
}

func recordMetricsLoop(ctx context.Context, src StateSource) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			recordWalletInfo(ctx, src)
			recordWalletAppInfo(ctx, src)
			recordContractInfo(ctx, src)
		case <-ctx.Done():
			log.Infof("context done, stop record metrics")
			return
		}
	}
}

func recordWalletInfo(ctx context.Context, src StateSource) {
	state, err := src.WalletState(ctx)
	if err != nil {
		log.Warnf("failed to get wallet state %v", err)
		return
	}
	for _, provider := range state.AvailableProviders {
		var connected int64
		if state.IsConnected && state.Provider == provider {
			connected = 1
		}
		pctx, _ := tag.New(ctx, tag.Upsert(ProviderKey, string(provider)))
		WalletConnected.Set(pctx, connected)
	}
}

func recordWalletAppInfo(ctx context.Context, src StateSource) {
	apps, err := src.ListWalletConnections(ctx)
	if err != nil {
		log.Warnf("failed to list wallet connections %v", err)
		return
	}
	counts := make(map[types.ProviderID]int64)
	for _, app := range apps {
		counts[app.Provider]++
	}
	for _, provider := range types.AllProviders {
		pctx, _ := tag.New(ctx, tag.Upsert(ProviderKey, string(provider)))
		WalletAppConnNum.Set(pctx, counts[provider])
	}
}

func recordContractInfo(ctx context.Context, src StateSource) {
	status, err := src.ContractStatus(ctx)
	if err != nil {
		log.Warnf("failed to get contract status %v", err)
		return
	}
	mctx, _ := tag.New(ctx, tag.Upsert(ModeKey, string(status.Mode)))
	DatasetNum.Set(mctx, int64(status.DatasetCount))
	ListingNum.Set(mctx, int64(status.ListingCount))
}
