package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"quadfund/custodian"
	"quadfund/db"
	"quadfund/engine"
	"quadfund/handlers"
	"quadfund/logger"
	"quadfund/oracle"
	"quadfund/repository"
	"quadfund/routers"
)

func main() {
	// Load config
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")
	console := viper.GetBool("log.console")

	if err := logger.InitLogger(appLogFile, logLevel, console); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting funding ledger server...")

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	// Initialize repository and collaborators
	repo := repository.NewLedgerRepository(ldb)
	cust := custodian.NewLedgerCustodian(repo)

	prices := viper.GetStringMap("oracle.denominations")
	feedTable := make(map[string]float64, len(prices))
	denominations := make([]string, 0, len(prices))
	for denom := range prices {
		feedTable[denom] = viper.GetFloat64("oracle.denominations." + denom)
		denominations = append(denominations, denom)
	}
	priceOracle := oracle.NewStaticOracle(feedTable, nil)

	// Initialize the allocation engine
	eng := engine.NewEngine(repo, cust, priceOracle, engine.Config{
		SupportedDenominations: denominations,
		MaxQuoteAge:            time.Duration(viper.GetInt("oracle.max_quote_age_seconds")) * time.Second,
		MaxNameLength:          viper.GetInt("ledger.max_name_length"),
		MaxAdmins:              viper.GetInt("ledger.max_admins"),
	})

	// Initialize HTTP handlers
	h := handlers.NewHandler(eng)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	srv.Close()
}
