// Command travelcore-router runs the hybrid AI query router: it wires the
// classifier, data engine, RAG engine, LLM gateway, and observability
// recorder described in the router's package docs into a single HTTP
// server and runs it until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/skyconnectsl/travelcore-router/internal/classifier"
	"github.com/skyconnectsl/travelcore-router/internal/config"
	"github.com/skyconnectsl/travelcore-router/internal/corerouter"
	"github.com/skyconnectsl/travelcore-router/internal/dataengine"
	"github.com/skyconnectsl/travelcore-router/internal/encoderclient"
	"github.com/skyconnectsl/travelcore-router/internal/gateway"
	"github.com/skyconnectsl/travelcore-router/internal/observability"
	"github.com/skyconnectsl/travelcore-router/internal/providerpool"
	"github.com/skyconnectsl/travelcore-router/internal/providers"
	"github.com/skyconnectsl/travelcore-router/internal/providers/anthropic"
	"github.com/skyconnectsl/travelcore-router/internal/providers/openai"
	"github.com/skyconnectsl/travelcore-router/internal/ragengine"
	"github.com/skyconnectsl/travelcore-router/internal/server"
	"github.com/skyconnectsl/travelcore-router/internal/store/memstore"
	"github.com/skyconnectsl/travelcore-router/internal/vectorstore/memvectorstore"
)

// Application wires every core component together and owns the HTTP
// server's lifecycle.
type Application struct {
	config *config.Config
	router *corerouter.Router
	server *server.Server
	logger *logrus.Logger
}

// NewApplication loads configuration, constructs every component the
// router depends on, and assembles the HTTP server in front of it.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	recorder := observability.NewRecorder(logger, prometheus.DefaultRegisterer, cfg.Observability.WindowSize)

	gw, err := buildGateway(cfg, recorder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider gateway: %w", err)
	}

	encoder := buildEncoder(cfg, logger)

	cls := classifier.New(context.Background(), encoder, cfg.Classifier.ConfidenceThreshold, logger)

	dataEngine := dataengine.New(memstore.New())

	embedder := buildEmbedder(encoder)
	ragEngine := ragengine.New(memvectorstore.New(embedder), gw, cfg.Rag.SimilarityThreshold)

	routerInstance := corerouter.New(cls, dataEngine, ragEngine, gw, recorder, logger, corerouter.Config{
		TotalTimeout: cfg.RouterConfigTimeout(),
		MaxInFlight:  cfg.Router.MaxInFlight,
		RagTopK:      cfg.Rag.TopK,
	})

	serverInstance, err := server.NewServer(routerInstance, cfg.ToServerConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		router: routerInstance,
		server: serverInstance,
		logger: logger,
	}, nil
}

// buildGateway constructs one providerpool.Pool per configured provider and
// wraps them all in a gateway.Gateway, so the Router never talks to a raw
// providers.LLMProvider directly. recorder is wired straight into the
// Gateway so fallback transitions are reported to observability as they
// happen, not just counted privately.
func buildGateway(cfg *config.Config, recorder *observability.Recorder, logger *logrus.Logger) (*gateway.Gateway, error) {
	pools := make([]*providerpool.Pool, 0, len(cfg.LLM.Providers))

	for _, p := range cfg.LLM.Providers {
		provider, err := buildProvider(p, logger)
		if err != nil {
			return nil, err
		}

		timeout := time.Duration(p.TimeoutMs) * time.Millisecond
		pools = append(pools, providerpool.New(providerpool.Entry{
			ProviderID: p.ID,
			Provider:   provider,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		}, logger))

		logger.WithFields(logrus.Fields{
			"provider_id": p.ID,
			"kind":        p.Kind,
			"models":      len(p.Models),
		}).Info("llm provider registered")
	}

	return gateway.New(pools, recorder, logger), nil
}

func buildProvider(p config.ProviderConfig, logger *logrus.Logger) (providers.LLMProvider, error) {
	timeout := time.Duration(p.TimeoutMs) * time.Millisecond

	switch p.Kind {
	case "openai":
		return openai.NewOpenAIProvider(&openai.OpenAIConfig{
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Models:  p.Models,
			Timeout: timeout,
		}, logger), nil
	case "anthropic":
		return anthropic.NewAnthropicProvider(&anthropic.AnthropicConfig{
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Models:  p.Models,
			Timeout: timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("llm.providers[%s]: unsupported kind %q", p.ID, p.Kind)
	}
}

// buildEncoder wires the classifier's embedding fallback to an external
// encoder service when one is configured, otherwise leaves the classifier
// in keyword-only mode. Shipping with EncoderURL unset is a supported
// deployment shape, not a degraded one: the keyword stage alone covers the
// intents with unambiguous vocabulary, and the embedding stage only matters
// for paraphrased queries that miss the keyword list.
func buildEncoder(cfg *config.Config, logger *logrus.Logger) classifier.Encoder {
	if cfg.Classifier.EncoderURL == "" {
		logger.Info("classifier.encoder_url not set, running keyword-only classification")
		return nil
	}

	return encoderclient.New(encoderclient.Config{
		BaseURL: cfg.Classifier.EncoderURL,
		APIKey:  cfg.Classifier.EncoderAPIKey,
		Model:   cfg.Classifier.EncoderModel,
		Timeout: cfg.Classifier.EncoderTimeout,
	}, logger)
}

// buildEmbedder adapts the classifier's Encoder into the RAG vector store's
// narrower Embedder contract, or falls back to a bag-of-words embedder over
// the fixture corpus when no encoder service is configured.
func buildEmbedder(encoder classifier.Encoder) memvectorstore.Embedder {
	if client, ok := encoder.(*encoderclient.Client); ok {
		return client
	}
	return memvectorstore.BagOfWordsEmbedder{}
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails to start, then drains in-flight requests before exiting.
func (app *Application) Run() error {
	app.logger.Info("starting travelcore-router")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	app.logger.Info("starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("graceful shutdown completed")
	return nil
}

// setupLogger configures the process-wide logger's level, format, and
// output sink from the loaded LoggingConfig.
func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  (provider API keys and other secrets are read from the config file)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *version {
		fmt.Println("travelcore-router v1.0.0")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
