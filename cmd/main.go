package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/joltify-bridge/bridge_service/internal/api/handlers"
	"github.com/joltify-bridge/bridge_service/internal/api/routes"
	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/allowance"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/attestation"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/burn"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/forwarder"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/orchestrator"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/relay"
	routetable "github.com/joltify-bridge/bridge_service/internal/domain/services/routes"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/watcher"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/iris"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/relayapi"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/config"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/signing"
	"github.com/joltify-bridge/bridge_service/pkg/graceful"
	"github.com/joltify-bridge/bridge_service/pkg/logger"
	"github.com/joltify-bridge/bridge_service/pkg/metrics"
	"github.com/joltify-bridge/bridge_service/pkg/poll"
	"github.com/joltify-bridge/bridge_service/pkg/tracing"
)

const version = "1.0.0"

// recordOutcomes folds terminal state changes into the transfer metrics.
func recordOutcomes(events <-chan entities.StateChange, orch *orchestrator.Orchestrator) {
	for change := range events {
		if !change.To.Terminal() {
			continue
		}
		recoverable := "false"
		if state, ok := orch.Get(change.TransferID); ok && state.Recoverable {
			recoverable = "true"
		}
		metrics.TransfersFinished.WithLabelValues(string(change.To), recoverable).Inc()
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Adapters
	hubClient := hub.NewClient(hub.Config{
		ChainID:    cfg.Hub.ChainID,
		LCDURL:     cfg.Hub.LCDURL,
		GatewayURL: cfg.Hub.GatewayURL,
		Denom:      cfg.Hub.Denom,
		Timeout:    cfg.HubTimeout(),
	}, log.Zap())

	irisClient := iris.NewClient(iris.Config{
		BaseURL:     cfg.Attestation.BaseURL,
		Environment: cfg.Environment,
	}, log.Zap())

	relayAPI := relayapi.NewClient(relayapi.Config{
		BaseURL: cfg.Routes.ServiceURL,
	}, log.Zap())

	evmClients := make(map[string]*evm.Client, len(cfg.Networks))
	explorers := make(map[string]string, len(cfg.Networks))
	resolver := signing.NewResolver(cfg.Hub.SignerURL, cfg.HubTimeout())
	for name, net := range cfg.Networks {
		client, err := evm.Dial(context.Background(), evm.Config{
			Name:                  name,
			RPC:                   net.RPC,
			ChainID:               net.ChainID,
			USDCAddress:           net.USDCAddress,
			TokenMessengerAddress: net.TokenMessenger,
			ReceiptPollInterval:   time.Duration(net.ReceiptInterval) * time.Second,
			ReceiptTimeout:        time.Duration(net.ReceiptTimeoutS) * time.Second,
		}, log.Zap())
		if err != nil {
			log.Fatal("Failed to connect to network", "network", name, "error", err)
		}
		evmClients[name] = client
		if net.Explorer != "" {
			explorers[name] = net.Explorer
		}
		if net.OperatorKey != "" {
			if err := resolver.RegisterEVMKey(name, net.OperatorKey); err != nil {
				log.Fatal("Failed to register operator key", "network", name, "error", err)
			}
		}
	}

	// Route/fee table, loaded once and refreshed on a schedule
	table := routetable.NewTable(relayAPI, log.Zap())
	if err := table.Load(context.Background()); err != nil {
		log.Fatal("Failed to load route table", "error", err)
	}
	if err := table.StartRefresh(cfg.Routes.RefreshCron); err != nil {
		log.Fatal("Failed to schedule route refresh", "error", err)
	}
	defer table.Stop()

	// Domain services
	allowanceChains := make(map[string]allowance.ChainClient, len(evmClients))
	burnChains := make(map[string]burn.EVMChain, len(evmClients))
	for name, client := range evmClients {
		allowanceChains[name] = client
		burnChains[name] = client
	}
	allowanceManager := allowance.NewManager(allowanceChains, log.Zap())

	gasPrice, err := decimal.NewFromString(cfg.Transfer.GasPrice)
	if err != nil {
		log.Fatal("Invalid gas price", "value", cfg.Transfer.GasPrice, "error", err)
	}
	relayClient := relay.NewClient(hubClient, relay.Config{
		GasMultiplier: cfg.Transfer.GasMultiplier,
		GasPrice:      gasPrice,
		Denom:         cfg.Hub.Denom,
	}, log.Zap())

	burnSubmitter := burn.NewSubmitter(burnChains, relayClient, cfg.Hub.Denom, log.Zap())

	poller := attestation.NewPoller(irisClient, poll.Config{
		Interval:    time.Duration(cfg.Attestation.PollInterval) * time.Second,
		MaxAttempts: cfg.Attestation.MaxAttempts,
	}, log.Zap())

	balanceWatcher := watcher.NewWatcher(hubClient,
		time.Duration(cfg.Transfer.BalanceInterval)*time.Second, log.Zap())

	ibcForwarder := forwarder.NewForwarder(relayClient, hubClient, forwarder.Config{
		SourceChannel: cfg.IBC.Channel,
		Denom:         cfg.Hub.Denom,
		Reserve:       decimal.NewFromInt(cfg.IBC.Reserve),
		TimeoutWindow: cfg.IBCTimeoutWindow(),
	}, log.Zap())

	events := make(chan entities.StateChange, 256)
	orch := orchestrator.New(
		allowanceManager,
		burnSubmitter,
		poller,
		relayClient,
		balanceWatcher,
		ibcForwarder,
		resolver,
		table,
		orchestrator.Config{
			Denom:         cfg.Hub.Denom,
			CreditTimeout: cfg.CreditTimeout(),
			ExplorerURLs:  explorers,
			Events:        events,
		},
		log.Zap(),
	)
	go recordOutcomes(events, orch)

	// Handlers and router
	probes := map[string]handlers.ReadinessProbe{
		"routes": func() error {
			if table.Minter() == "" {
				return fmt.Errorf("route table not loaded")
			}
			return nil
		},
	}
	deps := routes.Dependencies{
		Config:    cfg,
		Logger:    log,
		Transfers: handlers.NewTransferHandlers(orch, table, log),
		Mint:      handlers.NewMintHandlers(irisClient, relayAPI, log),
		Core:      handlers.NewCoreHandlers(version, probes, log),
	}
	router := routes.SetupRoutes(deps)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"networks", len(cfg.Networks),
			"hub", entities.DomainNoble.Name,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	graceful.NewShutdownManager(server, log).WaitForShutdown()
}
