package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KevinDz11/nopro/internal/model"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=..."
var Version = "v0.3.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nopro",
	Short: "nopro - Normative evidence checklists for product documents",
	Long: `nopro reads the technical sheet, user manual or label of a product and
produces a checklist of the Mexican standards (NOM/NMX) that apply to it.

Each standard is marked COMPLIANT when the document carries evidence for it
(matching sentences in sheets and manuals, certification marks on labels)
or NOT_DETECTED otherwise, with a score and the evidence that supports it.

nopro reports evidence found in documents. It does not certify products.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nopro %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.nopro/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("catalog-dir", "", "directory overriding the built-in catalog files")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("catalog.dir", rootCmd.PersistentFlags().Lookup("catalog-dir"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.nopro")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureEnv maps NOPRO_* variables onto config keys
// (vision.api_key -> NOPRO_VISION_API_KEY)
func configureEnv() {
	viper.SetEnvPrefix("NOPRO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	// Keys without a default are unknown to viper until bound
	_ = viper.BindEnv("vision.api_key", "NOPRO_VISION_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("vision.base_url", "NOPRO_VISION_BASE_URL")
	_ = viper.BindEnv("server.inbox", "NOPRO_SERVER_INBOX")
	_ = viper.BindEnv("source.http_proxy", "NOPRO_SOURCE_HTTP_PROXY", "HTTP_PROXY")
	_ = viper.BindEnv("source.https_proxy", "NOPRO_SOURCE_HTTPS_PROXY", "HTTPS_PROXY")
	_ = viper.BindEnv("source.no_proxy", "NOPRO_SOURCE_NO_PROXY", "NO_PROXY")
}

// registerDefaults flattens cfg into viper defaults so every key can be
// overridden from the environment
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults("", tree)
	return nil
}

func setDefaults(prefix string, tree map[string]interface{}) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig resolves the effective configuration: flags, environment,
// config file, then defaults. Defaults reach the struct through viper.
func loadConfig() (*model.Config, error) {
	cfg := &model.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to w (stderr) so command
// output on stdout stays machine readable.
func newLogger(cfg model.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
