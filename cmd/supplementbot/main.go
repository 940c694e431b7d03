package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/assistant"
	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/internal/handler"
	"github.com/young1lin/supplementbot/internal/remote"
	"github.com/young1lin/supplementbot/internal/search"
	"github.com/young1lin/supplementbot/internal/storage"
	"github.com/young1lin/supplementbot/internal/tools"
	"github.com/young1lin/supplementbot/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int
	showVer bool
)

var rootCmd = &cobra.Command{
	Use:   "supplementbot",
	Short: "Supplement advisor chat backend",
	Long: `A chat backend that answers supplement questions through a hosted
assistant, looking up products on Google Shopping and reviews on WebMD
when the assistant asks for them.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVer {
			fmt.Printf("supplementbot %s (built %s)\n", Version, BuildDate)
			return
		}

		cfg := loadConfig()
		defer logger.Sync()

		// Override config with command line flags
		if port > 0 {
			cfg.Server.Port = port
		}

		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", zap.Error(err))
			os.Exit(1)
		}

		if err := remote.CheckCompatibility(); err != nil {
			logger.Error("incompatible client library", zap.Error(err))
			os.Exit(1)
		}

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)

		if err := startServer(cfg); err != nil {
			logger.Error("startup failed", zap.Error(err))
			os.Exit(1)
		}
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the persisted assistant ID",
	Long: `Removes the persisted assistant record so the next start registers
a new assistant. The assistant itself is left on the remote service.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		defer logger.Sync()

		store, err := storage.Open(cfg)
		if err != nil {
			logger.Error("failed to open assistant store", zap.Error(err))
			os.Exit(1)
		}
		defer store.Close()

		if err := store.Reset(); err != nil {
			logger.Error("failed to reset assistant record", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("assistant record removed", zap.String("backend", cfg.Storage.Backend))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./config.yaml", "config file path")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

func startServer(cfg *config.Config) error {
	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open assistant store: %w", err)
	}
	defer store.Close()

	instructions, err := assistant.LoadInstructions(cfg.Assistant.InstructionsFile)
	if err != nil {
		return err
	}

	client := remote.NewClient(&cfg.OpenAI)
	registry := tools.NewSupplementRegistry(
		search.NewShoppingProvider(&cfg.Shopping),
		search.NewReviewProvider(&cfg.Reviews),
	)

	provisioner := assistant.NewProvisioner(store, client, assistant.Options{
		Name:          cfg.Assistant.Name,
		Model:         cfg.OpenAI.Model,
		Instructions:  instructions,
		KnowledgeFile: cfg.Assistant.KnowledgeFile,
		Functions:     registry.Definitions(),
	})

	assistantID, err := provisioner.Ensure(context.Background())
	if err != nil {
		return err
	}

	driver := handler.NewChatDriver(client, registry, assistantID, cfg.Run.PollInterval(), cfg.Run.Deadline())
	chatHandler := handler.NewChatHandler(driver, assistantID)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      chatHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("assistant_id", assistantID),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
