package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"
	path "github.com/vulpemventures/dinghy/pkg/wallet/derivation-path"
)

const (
	// DatadirKey is the key to customize the dinghy datadir.
	DatadirKey = "DATADIR"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey is the key to customize the Bitcoin network.
	NetworkKey = "NETWORK"
	// ChainDataProviderKey is the key to customize the type of chain data
	// provider to use.
	ChainDataProviderKey = "CHAIN_DATA_PROVIDER"
	// EsploraUrlKey is the key to customize the url of the esplora API.
	// Defaults to the Blockstream one for the configured network.
	EsploraUrlKey = "ESPLORA_URL"
	// BlockcypherUrlKey is the key to customize the url of the BlockCypher API.
	BlockcypherUrlKey = "BLOCKCYPHER_URL"
	// BlockcypherTokenKey is the key to set the optional BlockCypher API token.
	BlockcypherTokenKey = "BLOCKCYPHER_TOKEN"
	// ElectrumUrlKey is the key to customize the electrum server, in the form
	// proto://host:port with proto one of tcp, ssl, ws, wss.
	ElectrumUrlKey = "ELECTRUM_URL"
	// RequestTimeoutKey is the key to customize the timeout of every single
	// call to the chain data provider.
	RequestTimeoutKey = "REQUEST_TIMEOUT_IN_SECONDS"
	// MaxReadRetriesKey is the key to customize how many times a failed read
	// call to an http chain data provider is retried.
	MaxReadRetriesKey = "MAX_READ_RETRIES"
	// FeeRateKey is the key to customize the fee rate in sats/byte used for
	// sends.
	FeeRateKey = "FEE_RATE"
	// FeeTargetKey is the key to customize the confirmation target in blocks
	// for the fee estimations of the chain data provider.
	FeeTargetKey = "FEE_TARGET"
	// CoinSelectionStrategyKey is the key to customize the coin selection
	// algorithm.
	CoinSelectionStrategyKey = "COIN_SELECTION_STRATEGY"
	// DerivationPathKey is the key to use a custom derivation path for the keys
	// of mnemonic credentials, instead of the default m/44'/[0|1]'/0'/0/0
	// (depending on network).
	DerivationPathKey = "DERIVATION_PATH"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// DbUserKey is user used to connect to db
	DbUserKey = "DB_USER"
	// DbPassKey is password used to connect to db
	DbPassKey = "DB_PASS"
	// DbHostKey is host where db is installed
	DbHostKey = "DB_HOST"
	// DbPortKey is port on which db is listening
	DbPortKey = "DB_PORT"
	// DbNameKey is name of database
	DbNameKey = "DB_NAME"
	// DbMigrationPathKey is the optional url of the migration files, the
	// embedded ones are used if not set.
	DbMigrationPathKey = "DB_MIGRATION_PATH"
	// EnableMetricsKey is the key to enable the collection of send metrics.
	EnableMetricsKey = "ENABLE_METRICS"
	// StatsDirKey is the key to customize the folder where metrics are dumped.
	// Defaults to the stats folder inside the datadir.
	StatsDirKey = "STATS_DIR"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"
	// StatsLocation is the folder inside the datadir containing metrics
	// dumps.
	StatsLocation = "stats"
)

var (
	vip *viper.Viper

	defaultDatadir           = btcutil.AppDataDir("dinghy", false)
	defaultLogLevel          = 4
	defaultNetwork           = "testnet"
	defaultChainDataProvider = "esplora"
	defaultRequestTimeout    = 30
	defaultMaxReadRetries    = 3
	defaultFeeRate           = 5
	defaultFeeTarget         = 6
	defaultCoinSelection     = "largest-first"
	defaultDbType            = "badger"

	supportedNetworks = map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"regtest": &chaincfg.RegressionNetParams,
		"signet":  &chaincfg.SigNetParams,
	}
	defaultEsploraUrls = map[string]string{
		"mainnet": "https://blockstream.info/api",
		"testnet": "https://blockstream.info/testnet/api",
		"regtest": "http://localhost:3000",
		"signet":  "https://mempool.space/signet/api",
	}
	defaultBlockcypherUrls = map[string]string{
		"mainnet": "https://api.blockcypher.com/v1/btc/main",
		"testnet": "https://api.blockcypher.com/v1/btc/test3",
	}
	defaultElectrumUrls = map[string]string{
		"mainnet": "ssl://electrum.blockstream.info:50002",
		"testnet": "ssl://electrum.blockstream.info:60002",
		"regtest": "tcp://localhost:50000",
	}
	secretKeys = map[string]struct{}{
		DbPassKey:           {},
		BlockcypherTokenKey: {},
	}
	allKeys = []string{
		DatadirKey, LogLevelKey, NetworkKey, ChainDataProviderKey,
		EsploraUrlKey, BlockcypherUrlKey, BlockcypherTokenKey, ElectrumUrlKey,
		RequestTimeoutKey, MaxReadRetriesKey, FeeRateKey, FeeTargetKey,
		CoinSelectionStrategyKey, DerivationPathKey, DatabaseTypeKey,
		DbUserKey, DbPassKey, DbHostKey, DbPortKey, DbNameKey,
		DbMigrationPathKey, EnableMetricsKey, StatsDirKey,
	}

	SupportedNetworks = supportedType{
		"mainnet": {},
		"testnet": {},
		"regtest": {},
		"signet":  {},
	}
	SupportedChainDataProviders = supportedType{
		"esplora":     {},
		"blockcypher": {},
		"electrum":    {},
	}
	SupportedCoinSelectors = supportedType{
		"largest-first":   {},
		"smallest-subset": {},
	}
	SupportedDbs = supportedType{
		"badger":   {},
		"inmemory": {},
		"postgres": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("DINGHY")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(ChainDataProviderKey, defaultChainDataProvider)
	vip.SetDefault(RequestTimeoutKey, defaultRequestTimeout)
	vip.SetDefault(MaxReadRetriesKey, defaultMaxReadRetries)
	vip.SetDefault(FeeRateKey, defaultFeeRate)
	vip.SetDefault(FeeTargetKey, defaultFeeTarget)
	vip.SetDefault(CoinSelectionStrategyKey, defaultCoinSelection)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(EnableMetricsKey, false)
	vip.SetDefault(DbUserKey, "root")
	vip.SetDefault(DbPassKey, "secret")
	vip.SetDefault(DbHostKey, "127.0.0.1")
	vip.SetDefault(DbPortKey, 5432)
	vip.SetDefault(DbNameKey, "dinghy-db-pg")
}

// Validate checks that the current configuration is consistent.
func Validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	net := GetString(NetworkKey)
	if len(net) == 0 {
		return fmt.Errorf("network must not be null")
	}
	if _, ok := SupportedNetworks[net]; !ok {
		return fmt.Errorf("unknown network, must be one of: %s", SupportedNetworks)
	}

	logLevel := GetInt(LogLevelKey)
	if logLevel < 0 || logLevel > 6 {
		return fmt.Errorf("log level must be in range [0, 6]")
	}

	provider := GetString(ChainDataProviderKey)
	if _, ok := SupportedChainDataProviders[provider]; !ok {
		return fmt.Errorf(
			"unsupported chain data provider, must be one of %s",
			SupportedChainDataProviders,
		)
	}
	if GetChainDataProviderUrl() == "" {
		return fmt.Errorf(
			"no default %s url for network %s, it must be set explicitly",
			provider, net,
		)
	}

	if GetInt(RequestTimeoutKey) <= 0 {
		return fmt.Errorf("request timeout must be greater than zero")
	}
	if GetInt(MaxReadRetriesKey) < 0 {
		return fmt.Errorf("max read retries must not be negative")
	}
	if GetInt(FeeRateKey) <= 0 {
		return fmt.Errorf("fee rate must be greater than zero")
	}
	if GetInt(FeeTargetKey) <= 0 {
		return fmt.Errorf("fee target must be greater than zero")
	}

	strategy := GetString(CoinSelectionStrategyKey)
	if _, ok := SupportedCoinSelectors[strategy]; !ok {
		return fmt.Errorf(
			"unsupported coin selection strategy, must be one of %s",
			SupportedCoinSelectors,
		)
	}

	if derivationPath := GetString(DerivationPathKey); derivationPath != "" {
		if _, err := path.ParseDerivationPath(derivationPath); err != nil {
			return fmt.Errorf("invalid derivation path: %s", err)
		}
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf("unsupported database type, must be one of %s", SupportedDbs)
	}

	return nil
}

// InitDatadir creates the folders used by the configured services.
func InitDatadir() error {
	if GetString(DatabaseTypeKey) == "badger" {
		if err := makeDirectoryIfNotExists(GetDbDir()); err != nil {
			return err
		}
	}
	if GetBool(EnableMetricsKey) {
		if err := makeDirectoryIfNotExists(GetStatsDir()); err != nil {
			return err
		}
	}
	return nil
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

func GetStatsDir() string {
	if dir := GetString(StatsDirKey); dir != "" {
		return dir
	}
	return filepath.Join(GetDatadir(), StatsLocation)
}

func GetNetwork() *chaincfg.Params {
	return supportedNetworks[GetString(NetworkKey)]
}

// GetChainDataProviderUrl returns the url of the configured chain data
// provider, or the default one for the configured network if not set.
func GetChainDataProviderUrl() string {
	net := GetString(NetworkKey)
	switch GetString(ChainDataProviderKey) {
	case "esplora":
		return getStringOrDefault(EsploraUrlKey, defaultEsploraUrls[net])
	case "blockcypher":
		return getStringOrDefault(BlockcypherUrlKey, defaultBlockcypherUrls[net])
	case "electrum":
		return getStringOrDefault(ElectrumUrlKey, defaultElectrumUrls[net])
	default:
		return ""
	}
}

func GetRequestTimeout() time.Duration {
	return time.Duration(GetInt(RequestTimeoutKey)) * time.Second
}

// GetDerivationPath returns the configured derivation path, or the default
// one for the configured network.
func GetDerivationPath() string {
	if derivationPath := GetString(DerivationPathKey); derivationPath != "" {
		return derivationPath
	}
	return path.DefaultDerivationPath(GetNetwork()).String()
}

// Settings returns the current value of every config key. Secrets are
// masked.
func Settings() map[string]string {
	settings := make(map[string]string, len(allKeys))
	for _, key := range allKeys {
		val := GetString(key)
		if _, ok := secretKeys[key]; ok && val != "" {
			val = "********"
		}
		settings[key] = val
	}
	settings[StatsDirKey] = GetStatsDir()
	if url := GetChainDataProviderUrl(); url != "" {
		switch GetString(ChainDataProviderKey) {
		case "esplora":
			settings[EsploraUrlKey] = url
		case "blockcypher":
			settings[BlockcypherUrlKey] = url
		case "electrum":
			settings[ElectrumUrlKey] = url
		}
	}
	return settings
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func getStringOrDefault(key, defaultVal string) string {
	if val := GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	sort.Strings(types)
	return strings.Join(types, " | ")
}
