package main

import (
	"fmt"

	"github.com/SIMPLYBOYS/pay_usdc/internal/config"
	"github.com/SIMPLYBOYS/pay_usdc/internal/db"
	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/ethereum"
	"github.com/SIMPLYBOYS/pay_usdc/internal/noble"
	"github.com/SIMPLYBOYS/pay_usdc/internal/routing"
	"github.com/SIMPLYBOYS/pay_usdc/internal/settlement"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
)

const (
	chainNoble = "noble"
	chainEVM   = "evm"
)

// loadConfig reads the configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return cfg, nil
}

func openStore(cfg *config.Config) (db.DBService, error) {
	store, err := db.NewDBService(db.PostgresOperations{MigrationsPath: cfg.Database.MigrationsPath}, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func newResolver(cfg *config.Config) (*routing.Resolver, *routing.Registry) {
	return routing.NewResolver(cfg.Router.Endpoint, cfg.Router.Timeout, nil), routing.NewRegistry(cfg.Tokens)
}

// newSettlementService registers a sender for every enabled chain. The
// returned cleanup releases chain connections.
func newSettlementService(cfg *config.Config, store settlement.Store, broadcaster settlement.Broadcaster) (*settlement.Service, func(), error) {
	svc := settlement.NewService(store, broadcaster, cfg.Settlement.Decimals)
	cleanup := func() {}

	if cfg.Noble.Enabled {
		if cfg.Noble.SignerURL == "" {
			logger.Warn("Noble is enabled but noble.signer_url is empty; Noble transfers are disabled")
		} else {
			transferer, err := noble.NewTransferer(
				noble.NewClient(cfg.Noble.LCDURL, nil),
				noble.NewRemoteSigner(cfg.Noble.SignerURL, nil),
				noble.TransfererConfig{
					ChainID:      cfg.Noble.ChainID,
					Denom:        cfg.Noble.Denom,
					FeeAmount:    cfg.Noble.FeeAmount,
					GasLimit:     cfg.Noble.GasLimit,
					PollInterval: cfg.Noble.PollInterval,
				})
			if err != nil {
				return nil, cleanup, err
			}
			svc.Register(chainNoble, settlement.NewSender(transferer, cfg.Settlement.CallTimeout))
		}
	}

	if cfg.EVM.Enabled {
		signer, err := ethereum.NewKeySignerFromHex(cfg.EVM.PrivateKey)
		if err != nil {
			return nil, cleanup, err
		}
		client, err := ethereum.Dial(cfg.EVM.RPCURL, nil)
		if err != nil {
			return nil, cleanup, &apperrors.EthereumError{Operation: "dial", Err: err}
		}
		usdc, err := ethereum.NewUSDCService(client, cfg.EVM.USDCContract, signer, cfg.EVM.ChainID, cfg.EVM.PollInterval)
		if err != nil {
			client.Close()
			return nil, cleanup, err
		}
		cleanup = client.Close
		svc.Register(chainEVM, settlement.NewSender(usdc, cfg.Settlement.CallTimeout))
	}

	if len(svc.Chains()) == 0 {
		logger.Warn("No settlement chain is configured")
	} else {
		logger.Info("Settlement chains: %v", svc.Chains())
	}
	return svc, cleanup, nil
}
