package main

import (
	"bedrock/internal/api"
	"bedrock/internal/backends"
	"bedrock/internal/config"
	"bedrock/internal/metrics"
	"bedrock/internal/registry"
	"bedrock/internal/types"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err != nil {
		log.Info("The .env file not found.")
	}

	ctx := context.Background()

	store, storeClient, err := backends.ConfigStoreFromEnv(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize config store: %v", err)
	}
	if storeClient != nil {
		defer storeClient.Close()
	}

	var specs types.ClientSpecs
	if store != nil {
		specs, err = config.FromStore(ctx, store)
	} else {
		specs, err = loadClientFile(os.Getenv("BEDROCK_CONFIG"))
	}
	if err != nil {
		log.Fatalf("Failed to load client definitions: %v", err)
	}
	if sqlSpec, ok := backends.SQLSpecFromEnv(); ok {
		if _, exists := specs.SQL[types.DefaultClientID]; !exists {
			if specs.SQL == nil {
				specs.SQL = map[string]types.SQLClientSpec{}
			}
			specs.SQL[types.DefaultClientID] = sqlSpec
		}
	}
	if specs.Empty() {
		log.Warn("no clients defined")
	}

	source, err := backends.ResourceSourceFromEnv(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize mapping resource source: %v", err)
	}

	sqlReg := registry.NewSQLRegistry(source)
	kvReg := registry.NewKVRegistry()
	if err := registry.RegisterAll(ctx, specs, sqlReg, kvReg); err != nil {
		log.Fatalf("Failed to register clients: %v", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(promReg, metrics.NewPoolCollector(sqlReg, kvReg))

	port, err := strconv.Atoi(getenv("PORT", "8080"))
	if err != nil {
		log.Fatalf("Invalid PORT: %v", err)
	}
	stop, done := api.RunServerInterruptible(port, api.NewHandler(sqlReg, kvReg, promReg))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.WithField("signal", s.String()).Info("shutting down")
		close(stop)
		if err := <-done; err != nil {
			log.WithError(err).Error("admin server stopped with error")
		}
	case err := <-done:
		if err != nil {
			log.WithError(err).Error("admin server stopped with error")
		}
	}

	if err := errors.Join(kvReg.Close(), sqlReg.Close()); err != nil {
		log.WithError(err).Error("failed to close clients")
	}
}

// loadClientFile reads the client file at path, defaulting to clients.yaml.
// A missing default file yields no clients.
func loadClientFile(path string) (types.ClientSpecs, error) {
	if path != "" {
		return config.Load(path)
	}
	specs, err := config.Load("clients.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("clients.yaml not found, starting without file-defined clients")
		return types.ClientSpecs{}, nil
	}
	return specs, err
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
