package appconfig

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/dinghy/internal/config"
	"github.com/vulpemventures/dinghy/internal/core/application"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	blockcypher_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/blockcypher"
	electrum_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/electrum"
	esplora_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/esplora"
	largestfirst_selector "github.com/vulpemventures/dinghy/internal/infrastructure/coin-selector/largest-first"
	smallestsubset_selector "github.com/vulpemventures/dinghy/internal/infrastructure/coin-selector/smallest-subset"
	singlekey_provider "github.com/vulpemventures/dinghy/internal/infrastructure/key-provider/single-key"
	dbbadger "github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/badger"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/postgres"
	"github.com/vulpemventures/dinghy/internal/metrics"
	"github.com/vulpemventures/dinghy/pkg/wallet"
	path "github.com/vulpemventures/dinghy/pkg/wallet/derivation-path"
)

// AppConfig is the struct holding all configuration options for the
// transaction service.
// This data structure acts also as a factory of the service and of the
// portable services used by it.
// Public config args:
//   - Network - (required) The Bitcoin network (mainnet, testnet, regtest, signet).
//   - SatsPerByte - (optional) The fee rate used for sends.
//   - DerivationPath - (optional) HD path of the keys of mnemonic credentials.
//   - CoinSelectorType - (required) One of the supported coin selection strategies.
//   - ChainDataProviderType - (required) One of the supported chain data provider types.
//   - ChainDataProviderConfig - (required) Config args for the chain data provider based on its type.
//   - RepoManagerType - (required) One of the supported repository manager types.
//   - RepoManagerConfig - (optional) Custom config args for the repository manager based on its type.
//   - StatsDir - (optional) If set, send metrics are collected and dumped here on Close.
type AppConfig struct {
	Network        *chaincfg.Params
	SatsPerByte    uint64
	DerivationPath string

	CoinSelectorType        string
	ChainDataProviderType   string
	ChainDataProviderConfig interface{}
	RepoManagerType         string
	RepoManagerConfig       interface{}
	StatsDir                string

	rm         ports.RepoManager
	cdp        ports.ChainDataProvider
	kp         ports.KeyProvider
	cs         ports.CoinSelector
	metricsSvc *metrics.Service
	txSvc      *application.TransactionService
}

func (c *AppConfig) Validate() error {
	if c.Network == nil {
		return fmt.Errorf("missing network")
	}
	if c.DerivationPath != "" {
		if _, err := path.ParseDerivationPath(c.DerivationPath); err != nil {
			return err
		}
	}
	if len(c.CoinSelectorType) == 0 {
		return fmt.Errorf("missing coin selector type")
	}
	if _, ok := config.SupportedCoinSelectors[c.CoinSelectorType]; !ok {
		return fmt.Errorf(
			"coin selector type not supported, must be one of: %s",
			config.SupportedCoinSelectors,
		)
	}
	if len(c.ChainDataProviderType) == 0 {
		return fmt.Errorf("missing chain data provider type")
	}
	if _, ok := config.SupportedChainDataProviders[c.ChainDataProviderType]; !ok {
		return fmt.Errorf(
			"chain data provider type not supported, must be one of: %s",
			config.SupportedChainDataProviders,
		)
	}
	if len(c.RepoManagerType) == 0 {
		return fmt.Errorf("missing repo manager type")
	}
	if _, ok := config.SupportedDbs[c.RepoManagerType]; !ok {
		return fmt.Errorf(
			"repo manager type not supported, must be one of: %s",
			config.SupportedDbs,
		)
	}
	if _, err := c.keyProvider(); err != nil {
		return err
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.chainDataProvider(); err != nil {
		return err
	}
	if _, err := c.metricsService(); err != nil {
		return err
	}

	return nil
}

func (c *AppConfig) RepoManager() ports.RepoManager {
	return c.rm
}

func (c *AppConfig) ChainDataProvider() ports.ChainDataProvider {
	return c.cdp
}

func (c *AppConfig) KeyProvider() ports.KeyProvider {
	return c.kp
}

func (c *AppConfig) TransactionService() (*application.TransactionService, error) {
	return c.transactionService()
}

// Close dumps the collected metrics, if enabled, and closes the connections
// with the chain data provider and the db.
func (c *AppConfig) Close() {
	if c.metricsSvc != nil {
		c.metricsSvc.Stop()
	}
	if c.cdp != nil {
		c.cdp.Close()
	}
	if c.rm != nil {
		c.rm.Close()
	}
}

func (c *AppConfig) repoManager() (ports.RepoManager, error) {
	if c.rm != nil {
		return c.rm, nil
	}

	switch c.RepoManagerType {
	case "inmemory":
		c.rm = inmemory.NewRepoManager()
		return c.rm, nil
	case "badger":
		if c.RepoManagerConfig == nil {
			return nil, fmt.Errorf("missing repo manager config args")
		}
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := dbbadger.NewRepoManager(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	case "postgres":
		dbConfig, ok := c.RepoManagerConfig.(postgresdb.DbConfig)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be postgresdb.DbConfig")
		}

		rm, err := postgresdb.NewRepoManager(dbConfig)
		if err != nil {
			return nil, err
		}

		c.rm = rm
		return c.rm, nil
	default:
		return nil, fmt.Errorf("unknown repo manager type")
	}
}

func (c *AppConfig) chainDataProvider() (ports.ChainDataProvider, error) {
	if c.cdp != nil {
		return c.cdp, nil
	}
	if c.ChainDataProviderConfig == nil {
		return nil, fmt.Errorf("missing chain data provider config args")
	}

	switch c.ChainDataProviderType {
	case "esplora":
		args, ok := c.ChainDataProviderConfig.(esplora_provider.ServiceArgs)
		if !ok {
			return nil, fmt.Errorf(
				"invalid chain data provider config type, must be " +
					"esplora_provider.ServiceArgs",
			)
		}
		if args.Network == nil {
			args.Network = c.Network
		}
		cdp, err := esplora_provider.NewService(args)
		if err != nil {
			return nil, err
		}
		c.cdp = cdp
		return c.cdp, nil
	case "blockcypher":
		args, ok := c.ChainDataProviderConfig.(blockcypher_provider.ServiceArgs)
		if !ok {
			return nil, fmt.Errorf(
				"invalid chain data provider config type, must be " +
					"blockcypher_provider.ServiceArgs",
			)
		}
		if args.Network == nil {
			args.Network = c.Network
		}
		cdp, err := blockcypher_provider.NewService(args)
		if err != nil {
			return nil, err
		}
		c.cdp = cdp
		return c.cdp, nil
	case "electrum":
		args, ok := c.ChainDataProviderConfig.(electrum_provider.ServiceArgs)
		if !ok {
			return nil, fmt.Errorf(
				"invalid chain data provider config type, must be " +
					"electrum_provider.ServiceArgs",
			)
		}
		if args.Network == nil {
			args.Network = c.Network
		}
		cdp, err := electrum_provider.NewService(args)
		if err != nil {
			return nil, err
		}
		c.cdp = cdp
		return c.cdp, nil
	default:
		return nil, fmt.Errorf("unknown chain data provider type")
	}
}

func (c *AppConfig) keyProvider() (ports.KeyProvider, error) {
	if c.kp != nil {
		return c.kp, nil
	}

	kp, err := singlekey_provider.NewService(singlekey_provider.ServiceArgs{
		Network:        c.Network,
		DerivationPath: c.DerivationPath,
	})
	if err != nil {
		return nil, err
	}
	c.kp = kp
	return c.kp, nil
}

func (c *AppConfig) coinSelector() ports.CoinSelector {
	if c.cs != nil {
		return c.cs
	}

	estimator := wallet.NewFeeEstimator()
	switch c.CoinSelectorType {
	case "smallest-subset":
		c.cs = smallestsubset_selector.NewSmallestSubsetCoinSelector(estimator)
	default:
		c.cs = largestfirst_selector.NewLargestFirstCoinSelector(estimator)
	}
	return c.cs
}

func (c *AppConfig) metricsService() (*metrics.Service, error) {
	if c.metricsSvc != nil || c.StatsDir == "" {
		return c.metricsSvc, nil
	}

	svc, err := metrics.NewService(metrics.ServiceOpts{StatsDir: c.StatsDir})
	if err != nil {
		return nil, err
	}
	c.metricsSvc = svc
	return c.metricsSvc, nil
}

func (c *AppConfig) transactionService() (*application.TransactionService, error) {
	if c.txSvc != nil {
		return c.txSvc, nil
	}

	kp, err := c.keyProvider()
	if err != nil {
		return nil, err
	}
	rm, err := c.repoManager()
	if err != nil {
		return nil, err
	}
	cdp, err := c.chainDataProvider()
	if err != nil {
		return nil, err
	}
	metricsSvc, err := c.metricsService()
	if err != nil {
		return nil, err
	}

	txSvc, err := application.NewTransactionService(
		application.TransactionServiceArgs{
			RepoManager:       rm,
			ChainDataProvider: cdp,
			KeyProvider:       kp,
			CoinSelector:      c.coinSelector(),
			Network:           c.Network,
			SatsPerByte:       c.SatsPerByte,
		},
	)
	if err != nil {
		return nil, err
	}
	if metricsSvc != nil {
		metricsSvc.Start(rm)
	}

	c.txSvc = txSvc
	return c.txSvc, nil
}
