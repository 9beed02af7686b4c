package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ipfs-force-community/metrics"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"

	"github.com/genetrust/genetrust-gateway/genetrust"
	"github.com/genetrust/genetrust-gateway/types"
)

const (
	// Configuration file name
	ConfigFile = "config.toml"
	// EnvPrefix prefixes every environment override, e.g. GENETRUST_STACKS_NODE.
	EnvPrefix = "GENETRUST"

	// DefaultDeployer is the testnet account the GeneTrust contracts were deployed from.
	DefaultDeployer = "ST3M31VTN8R1X4X6T2TMHBYMBXF08D7C1ZSMAQNMG"

	TestnetNode = "https://api.testnet.hiro.so"
	MainnetNode = "https://api.hiro.so"
)

type Config struct {
	API      *APIConfig
	Network  *NetworkConfig
	Contract *ContractConfig
	Wallet   *WalletConfig
	Store    *StoreConfig
	Request  *RequestConfig
	Metrics  *metrics.MetricsConfig
	Trace    *metrics.TraceConfig
}

type APIConfig struct {
	ListenAddress string
	// Token, when set, is required as a bearer token from non local callers.
	Token string
}

type NetworkConfig struct {
	Network          string
	StacksNode       string
	RequestPerSecond float64
	RequestBurst     int
	Timeout          time.Duration
	// ProxyNode forwards /v2/ and /extended/ requests to StacksNode.
	ProxyNode bool
}

type ContractConfig struct {
	UseRealSDK      bool
	ContractAddress string
	DataContract    string
	MarketContract  string
	ChunkSize       int
	Workers         int
}

type WalletConfig struct {
	AppName          string
	AppIcon          string
	EnabledProviders []string
}

type StoreConfig struct {
	// Redis url, empty keeps sessions in memory.
	Redis  string
	Prefix string
}

type RequestConfig struct {
	RequestQueueSize int
	RequestTimeout   time.Duration
	ClearInterval    time.Duration
}

func DefaultConfig() *Config {
	reqCfg := types.DefaultConfig()
	cfg := &Config{
		API: &APIConfig{ListenAddress: "/ip4/127.0.0.1/tcp/45132"},
		Network: &NetworkConfig{
			Network:          genetrust.NetworkTestnet,
			StacksNode:       TestnetNode,
			RequestPerSecond: 5,
			RequestBurst:     10,
			Timeout:          30 * time.Second,
			ProxyNode:        true,
		},
		Contract: &ContractConfig{
			UseRealSDK:      false,
			ContractAddress: DefaultDeployer,
			DataContract:    "genetic-data",
			MarketContract:  "exchange",
			ChunkSize:       1000,
			Workers:         4,
		},
		Wallet: &WalletConfig{
			AppName:          "GeneTrust",
			AppIcon:          "",
			EnabledProviders: []string{string(types.ProviderReown), string(types.ProviderHiro)},
		},
		Store: &StoreConfig{Redis: "", Prefix: "genetrust"},
		Request: &RequestConfig{
			RequestQueueSize: reqCfg.RequestQueueSize,
			RequestTimeout:   reqCfg.RequestTimeout,
			ClearInterval:    reqCfg.ClearInterval,
		},
		Metrics: metrics.DefaultMetricsConfig(),
		Trace:   metrics.DefaultTraceConfig(),
	}
	namespace := "genetrust"
	cfg.Metrics.Exporter.Prometheus.Namespace = namespace
	cfg.Metrics.Exporter.Graphite.Namespace = namespace
	cfg.Metrics.Exporter.Prometheus.EndPoint = "/ip4/0.0.0.0/tcp/4569"
	cfg.Metrics.Exporter.Graphite.Port = 4569
	cfg.Trace.ServerName = "genetrust-gateway"
	cfg.Trace.JaegerEndpoint = ""

	return cfg
}

func (c *Config) RequestConfig() *types.RequestConfig {
	return &types.RequestConfig{
		RequestQueueSize: c.Request.RequestQueueSize,
		RequestTimeout:   c.Request.RequestTimeout,
		ClearInterval:    c.Request.ClearInterval,
	}
}

func (c *Config) GenetrustConfig() genetrust.Config {
	return genetrust.Config{
		Network:          c.Network.Network,
		NodeURL:          c.Network.StacksNode,
		ContractAddress:  c.Contract.ContractAddress,
		DataContract:     c.Contract.DataContract,
		MarketContract:   c.Contract.MarketContract,
		RequestPerSecond: c.Network.RequestPerSecond,
		RequestBurst:     c.Network.RequestBurst,
		Timeout:          c.Network.Timeout,
	}
}

// EnabledProviders parses the configured provider ids.
func (c *Config) EnabledProviders() ([]types.ProviderID, error) {
	out := make([]types.ProviderID, 0, len(c.Wallet.EnabledProviders))
	for _, p := range c.Wallet.EnabledProviders {
		id, err := types.ParseProviderID(p)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (c *Config) Validate() error {
	switch c.Network.Network {
	case genetrust.NetworkTestnet, genetrust.NetworkMainnet:
	default:
		return fmt.Errorf("unknown network %q", c.Network.Network)
	}
	if c.Network.StacksNode == "" {
		return fmt.Errorf("stacks node url is required")
	}
	if _, err := genetrust.ParseAddress(c.Contract.ContractAddress); err != nil {
		return fmt.Errorf("contract address %q: %w", c.Contract.ContractAddress, err)
	}
	if c.Contract.DataContract == "" || c.Contract.MarketContract == "" {
		return fmt.Errorf("contract names are required")
	}
	if _, err := c.EnabledProviders(); err != nil {
		return err
	}
	return nil
}

type envOverrides struct {
	Network         string `envconfig:"NETWORK"`
	StacksNode      string `envconfig:"STACKS_NODE"`
	RegistryAddress string `envconfig:"DATASET_REGISTRY_ADDRESS"`
	DataContract    string `envconfig:"DATA_CONTRACT"`
	MarketContract  string `envconfig:"MARKET_CONTRACT"`
	UseRealSDK      *bool  `envconfig:"USE_REAL_SDK"`
	Redis           string `envconfig:"REDIS"`
	Listen          string `envconfig:"LISTEN"`
	Token           string `envconfig:"API_TOKEN"`
}

// ApplyEnv overrides cfg with the GENETRUST_* variables that are set.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.Network != "" {
		cfg.Network.Network = env.Network
		// follow the network unless the node was set explicitly
		if env.StacksNode == "" {
			switch {
			case env.Network == genetrust.NetworkMainnet && cfg.Network.StacksNode == TestnetNode:
				cfg.Network.StacksNode = MainnetNode
			case env.Network == genetrust.NetworkTestnet && cfg.Network.StacksNode == MainnetNode:
				cfg.Network.StacksNode = TestnetNode
			}
		}
	}
	if env.StacksNode != "" {
		cfg.Network.StacksNode = env.StacksNode
	}
	if env.RegistryAddress != "" {
		cfg.Contract.ContractAddress = env.RegistryAddress
	}
	if env.DataContract != "" {
		cfg.Contract.DataContract = env.DataContract
	}
	if env.MarketContract != "" {
		cfg.Contract.MarketContract = env.MarketContract
	}
	if env.UseRealSDK != nil {
		cfg.Contract.UseRealSDK = *env.UseRealSDK
	}
	if env.Redis != "" {
		cfg.Store.Redis = env.Redis
	}
	if env.Listen != "" {
		cfg.API.ListenAddress = env.Listen
	}
	if env.Token != "" {
		cfg.API.Token = env.Token
	}
	return nil
}

func ReadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = toml.Unmarshal(data, cfg)

	return cfg, err
}

func WriteConfig(filePath string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0644)
}
