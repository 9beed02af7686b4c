package metrics

import (
	"time"

	rpcMetrics "github.com/filecoin-project/go-jsonrpc/metrics"
	"github.com/ipfs-force-community/metrics"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Global Tags
var (
	ProviderKey, _ = tag.NewKey("provider")
	MethodKey, _   = tag.NewKey("method")
	ModeKey, _     = tag.NewKey("mode")
	ResultKey, _   = tag.NewKey("result")
	IPKey, _       = tag.NewKey("ip")
)

// Distribution
var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 3000, 4000, 5000, 7500, 10000, 20000, 50000, 100000)

var (
	// wallet
	WalletConnected   = metrics.NewInt64("wallet/connected", "Whether a wallet is connected. 0: no, 1: yes", "", ProviderKey)
	WalletAppConnNum  = metrics.NewInt64("wallet/app_conn_num", "Wallet app connection count", "", ProviderKey)
	WalletAppRegister = stats.Int64("wallet/app_register", "Wallet app register", stats.UnitDimensionless)
	WalletAppLeave    = stats.Int64("wallet/app_leave", "Wallet app unregister", stats.UnitDimensionless)
	WalletDisconnect  = stats.Int64("wallet/disconnect", "Wallet disconnect", stats.UnitDimensionless)
	WalletEvent       = stats.Int64("wallet/event", "Wallet SDK event received", stats.UnitDimensionless)

	// marketplace
	DatasetNum = metrics.NewInt64("contract/dataset_num", "Datasets known to the session", "", ModeKey)
	ListingNum = metrics.NewInt64("contract/listing_num", "Listings known to the session", "", ModeKey)

	// method call
	WalletConnect  = stats.Float64("wallet_connect", "Call wallet Connect spent time", stats.UnitMilliseconds)
	WalletSign     = stats.Float64("wallet_sign", "Call wallet SignMessage spent time", stats.UnitMilliseconds)
	WalletSendTx   = stats.Float64("wallet_send_tx", "Call wallet SendTransaction spent time", stats.UnitMilliseconds)
	ContractCall   = stats.Float64("contract_call", "Contract service call spent time", stats.UnitMilliseconds)
	NodeReadOnly   = stats.Float64("node_read_only", "Stacks node read-only call spent time", stats.UnitMilliseconds)
	ContractFailed = stats.Int64("contract/failed", "Contract service call failed", stats.UnitDimensionless)

	ApiState = metrics.NewInt64("api/state", "api service state. 0: down, 1: up", "")
)

var (
	walletAppRegisterView = &view.View{
		Measure:     WalletAppRegister,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ProviderKey, IPKey},
	}
	walletAppLeaveView = &view.View{
		Measure:     WalletAppLeave,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ProviderKey, IPKey},
	}
	walletDisconnectView = &view.View{
		Measure:     WalletDisconnect,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ProviderKey},
	}
	walletEventView = &view.View{
		Measure:     WalletEvent,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ProviderKey, MethodKey},
	}
	contractFailedView = &view.View{
		Measure:     ContractFailed,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{MethodKey, ModeKey},
	}

	// method call
	walletConnectView = &view.View{
		Measure:     WalletConnect,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{ProviderKey, ResultKey},
	}
	walletSignView = &view.View{
		Measure:     WalletSign,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{ProviderKey},
	}
	walletSendTxView = &view.View{
		Measure:     WalletSendTx,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{ProviderKey},
	}
	contractCallView = &view.View{
		Measure:     ContractCall,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{MethodKey, ModeKey},
	}
	nodeReadOnlyView = &view.View{
		Measure:     NodeReadOnly,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{MethodKey},
	}
)

var views = append([]*view.View{
	walletAppRegisterView,
	walletAppLeaveView,
	walletDisconnectView,
	walletEventView,
	contractFailedView,
	walletConnectView,
	walletSignView,
	walletSendTxView,
	contractCallView,
	nodeReadOnlyView,
}, rpcMetrics.DefaultViews...)

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

func init() {
	// register metrics
	_ = view.Register(views...)
}
