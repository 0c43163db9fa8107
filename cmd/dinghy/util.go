package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	appconfig "github.com/vulpemventures/dinghy/internal/app-config"
	"github.com/vulpemventures/dinghy/internal/config"
	"github.com/vulpemventures/dinghy/internal/core/application"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	blockcypher_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/blockcypher"
	electrum_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/electrum"
	esplora_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/esplora"
	postgresdb "github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/postgres"
)

const satsPerBtcExp = 8

var (
	maxSats = decimal.New(21_000_000, satsPerBtcExp)
)

func newAppConfig() *appconfig.AppConfig {
	network := config.GetNetwork()
	timeout := config.GetRequestTimeout()
	maxRetries := config.GetInt(config.MaxReadRetriesKey)
	feeTarget := config.GetInt(config.FeeTargetKey)
	url := config.GetChainDataProviderUrl()

	var providerConfig interface{}
	switch config.GetString(config.ChainDataProviderKey) {
	case "esplora":
		providerConfig = esplora_provider.ServiceArgs{
			URL:            url,
			Network:        network,
			RequestTimeout: timeout,
			MaxRetries:     maxRetries,
			FeeTarget:      feeTarget,
		}
	case "blockcypher":
		providerConfig = blockcypher_provider.ServiceArgs{
			URL:            url,
			Token:          config.GetString(config.BlockcypherTokenKey),
			Network:        network,
			RequestTimeout: timeout,
			MaxRetries:     maxRetries,
		}
	case "electrum":
		providerConfig = electrum_provider.ServiceArgs{
			Addr:           url,
			Network:        network,
			RequestTimeout: timeout,
			FeeTarget:      feeTarget,
		}
	}

	var repoConfig interface{}
	switch config.GetString(config.DatabaseTypeKey) {
	case "badger":
		repoConfig = config.GetDbDir()
	case "postgres":
		repoConfig = postgresdb.DbConfig{
			DbUser:             config.GetString(config.DbUserKey),
			DbPassword:         config.GetString(config.DbPassKey),
			DbHost:             config.GetString(config.DbHostKey),
			DbPort:             config.GetInt(config.DbPortKey),
			DbName:             config.GetString(config.DbNameKey),
			MigrationSourceURL: config.GetString(config.DbMigrationPathKey),
		}
	}

	var statsDir string
	if config.GetBool(config.EnableMetricsKey) {
		statsDir = config.GetStatsDir()
	}

	return &appconfig.AppConfig{
		Network:                 network,
		SatsPerByte:             uint64(config.GetInt(config.FeeRateKey)),
		DerivationPath:          config.GetString(config.DerivationPathKey),
		CoinSelectorType:        config.GetString(config.CoinSelectionStrategyKey),
		ChainDataProviderType:   config.GetString(config.ChainDataProviderKey),
		ChainDataProviderConfig: providerConfig,
		RepoManagerType:         config.GetString(config.DatabaseTypeKey),
		RepoManagerConfig:       repoConfig,
		StatsDir:                statsDir,
	}
}

// getTransactionService returns the service built from the current config
// together with the func to release its resources.
func getTransactionService() (*application.TransactionService, func(), error) {
	appCfg := newAppConfig()
	if err := appCfg.Validate(); err != nil {
		appCfg.Close()
		return nil, nil, err
	}
	svc, err := appCfg.TransactionService()
	if err != nil {
		appCfg.Close()
		return nil, nil, err
	}
	return svc, appCfg.Close, nil
}

// commandContext returns a context canceled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// readCredential reads a WIF key or a mnemonic from the given file, or from
// stdin if path is "-".
func readCredential(
	cmd *cobra.Command, credentialPath, passphrasePath string,
) (domain.Credential, error) {
	if credentialPath == "" {
		return domain.Credential{}, fmt.Errorf(
			"missing credential, use --credential-file path or - for stdin",
		)
	}
	secret, err := readSecret(cmd, credentialPath)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to read credential: %s", err)
	}

	var passphrase string
	if passphrasePath != "" {
		if passphrase, err = readSecret(cmd, passphrasePath); err != nil {
			return domain.Credential{}, fmt.Errorf(
				"failed to read passphrase: %s", err,
			)
		}
	}

	return domain.NewCredential(secret, passphrase)
}

func readSecret(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	buf, err := os.ReadFile(cleanAndExpandPath(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf)), nil
}

// parseAmount returns the amount in sats given either a BTC decimal string
// or an amount in sats. Exactly one must be set.
func parseAmount(btcAmount string, satsAmount uint64) (uint64, error) {
	if btcAmount == "" && satsAmount == 0 {
		return 0, fmt.Errorf("missing amount, use either --amount or --sats")
	}
	if btcAmount != "" && satsAmount != 0 {
		return 0, fmt.Errorf("--amount and --sats are mutually exclusive")
	}
	if btcAmount == "" {
		return satsAmount, nil
	}

	amount, err := decimal.NewFromString(btcAmount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", btcAmount)
	}
	sats := amount.Shift(satsPerBtcExp)
	if !sats.IsInteger() {
		return 0, fmt.Errorf("amount must have at most 8 decimal places")
	}
	if !sats.IsPositive() || sats.GreaterThan(maxSats) {
		return 0, fmt.Errorf("amount must be in range (0, 21000000] BTC")
	}
	return uint64(sats.IntPart()), nil
}

func formatBtc(sats uint64) string {
	return decimal.New(int64(sats), -satsPerBtcExp).StringFixed(satsPerBtcExp)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "   ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %s", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(buf))
	return nil
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
