package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/compras-gov/dispensa-guard/internal/config"
	"github.com/compras-gov/dispensa-guard/pkg/alerts"
	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
	"github.com/compras-gov/dispensa-guard/pkg/tabela"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dguard",
	Short: "Dispensa Guard - Controle de limites de dispensa de licitacao",
	Long: `Dispensa Guard acompanha o consumo de limites de dispensa de licitacao
por categoria de material ou servico. Ele valida novas dispensas antes do
registro, emite alertas quando os percentuais configurados sao cruzados e
expoe painel e API para a camada de compras.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.dguard/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initTabelas loads statutory ceiling tables from the configured directory.
// The built-in table is always available as a fallback.
func initTabelas(cfg *config.Config) (*tabela.Registry, error) {
	registry := tabela.NewRegistry()
	if err := registry.Register(tabela.Padrao()); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(cfg.Tabelas.Dir)
	if os.IsNotExist(err) {
		return registry, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		t, err := tabela.Load(filepath.Join(cfg.Tabelas.Dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		// the built-in table wins on a name collision
		if _, getErr := registry.Get(t.Nome); getErr == nil {
			continue
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initEngine creates a fully wired limit engine.
func initEngine(cfg *config.Config) (*limite.Engine, storage.Storage, error) {
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	notifiers := initNotifiers(cfg)
	engine := limite.NewEngine(store, notifiers, logger)

	return engine, store, nil
}
