package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/dataset"
	"github.com/airframesio/country-compare/cmd/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information - set via ldflags during build
	// Example: go build -ldflags "-X github.com/airframesio/country-compare/cmd.Version=1.2.3"
	Version = "dev"

	// signalContext is set by main() before Cobra initialization
	signalContext context.Context

	// versionCheckResult stores the result of the background version check,
	// shared between the startup banner and the dashboard status endpoint
	versionCheckResult   *VersionCheckResult
	versionCheckResultMu sync.RWMutex

	cfgFile   string
	debug     bool
	logFormat string

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D9FF"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	logger *slog.Logger
)

// SetSignalContext stores the signal-aware context created in main()
func SetSignalContext(ctx context.Context) {
	signalContext = ctx
}

// commandContext returns the signal context, or a fresh one when main() did not set it
func commandContext() (context.Context, context.CancelFunc) {
	if signalContext != nil {
		return signalContext, func() {}
	}
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func setVersionCheckResult(result VersionCheckResult) {
	versionCheckResultMu.Lock()
	defer versionCheckResultMu.Unlock()
	versionCheckResult = &result
}

func getVersionCheckResult() *VersionCheckResult {
	versionCheckResultMu.RLock()
	defer versionCheckResultMu.RUnlock()
	return versionCheckResult
}

// broadcastLogHandler wraps a slog handler and forwards records to dashboard clients
type broadcastLogHandler struct {
	handler slog.Handler
}

func newBroadcastLogHandler(handler slog.Handler) *broadcastLogHandler {
	return &broadcastLogHandler{handler: handler}
}

func (h *broadcastLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *broadcastLogHandler) Handle(ctx context.Context, r slog.Record) error {
	logMsg := LogMessage{
		Timestamp: r.Time.Format("2006-01-02 15:04:05"),
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	select {
	case logBroadcast <- logMsg:
	default:
		// No dashboard is draining the channel; drop rather than block
	}

	return h.handler.Handle(ctx, r)
}

func (h *broadcastLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &broadcastLogHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *broadcastLogHandler) WithGroup(name string) slog.Handler {
	return &broadcastLogHandler{handler: h.handler.WithGroup(name)}
}

// textOnlyHandler is a custom slog handler that outputs human-readable text
// without key=value pairs, suitable for interactive terminal usage
type textOnlyHandler struct {
	opts   slog.HandlerOptions
	writer io.Writer
	mu     *sync.Mutex
}

func newTextOnlyHandler(w io.Writer, opts *slog.HandlerOptions) *textOnlyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textOnlyHandler{
		opts:   *opts,
		writer: w,
		mu:     &sync.Mutex{},
	}
}

func (h *textOnlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *textOnlyHandler) Handle(_ context.Context, r slog.Record) error {
	// Format: YYYY-MM-DD HH:MM:SS LEVEL message
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.writer, "%s %s %s\n", r.Time.Format("2006-01-02 15:04:05"), r.Level.String(), r.Message)
	return err
}

func (h *textOnlyHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	// Attributes are not rendered in text-only mode
	return h
}

func (h *textOnlyHandler) WithGroup(_ string) slog.Handler {
	return h
}

// newLogger builds the slog logger for the given debug flag and log format
func newLogger(w io.Writer, isDebug bool, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if isDebug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "logfmt":
		// logfmt uses slog.TextHandler which outputs key=value pairs
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = newTextOnlyHandler(w, opts)
	}

	return slog.New(newBroadcastLogHandler(handler))
}

// initLogger initializes the package logger. Logs go to stderr so that
// command output on stdout stays clean.
func initLogger(isDebug bool, format string) {
	logger = newLogger(os.Stderr, isDebug, format)
}

var rootCmd = &cobra.Command{
	Use:     "country-compare",
	Version: Version,
	Short:   "🌍 Compare two countries on an Our World in Data metric",
	Long: titleStyle.Render("Country Compare") + `

Compare two countries on a metric taken from a catalog of Our World in Data
style CSV datasets. The catalog maps metric names to dataset URLs and can be
read from a spreadsheet, a CSV file, an s3://bucket/key object or a
PostgreSQL table.

Use 'compare' for a one-shot report, 'pick' for an interactive terminal
picker and 'serve' for the web dashboard.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(countriesCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.country-compare.yaml)")
	flags.BoolVarP(&debug, "debug", "d", false, "enable debug output")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, logfmt, json)")

	// Catalog source
	flags.String("catalog", "", "catalog location: .xlsx/.csv path, s3://bucket/key or postgres:// DSN")
	flags.String("catalog-sheet", catalog.DefaultSheet, "spreadsheet sheet holding the catalog")
	flags.String("catalog-metric-column", catalog.DefaultMetricColumn, "catalog header naming the metric")
	flags.String("catalog-link-column", catalog.DefaultLinkColumn, "catalog header holding the dataset URL")
	flags.String("catalog-table", catalog.DefaultTable, "PostgreSQL table for postgres:// catalogs")
	flags.String("catalog-order-column", "", "PostgreSQL column that orders catalog rows (optional)")

	// Fetching
	flags.Duration("fetch-timeout", dataset.DefaultTimeout, "timeout for each dataset download")
	flags.String("user-agent", dataset.DefaultUserAgent, "User-Agent sent with dataset downloads")
	flags.Int("max-probes", 0, "maximum datasets probed for the country list (0 = all)")

	// S3
	flags.String("s3-endpoint", "", "S3-compatible endpoint URL")
	flags.String("s3-bucket", "", "S3 bucket for exports")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region", "auto", "S3 region")

	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("catalog.location", flags.Lookup("catalog"))
	_ = viper.BindPFlag("catalog.sheet", flags.Lookup("catalog-sheet"))
	_ = viper.BindPFlag("catalog.metric_column", flags.Lookup("catalog-metric-column"))
	_ = viper.BindPFlag("catalog.link_column", flags.Lookup("catalog-link-column"))
	_ = viper.BindPFlag("catalog.table", flags.Lookup("catalog-table"))
	_ = viper.BindPFlag("catalog.order_column", flags.Lookup("catalog-order-column"))
	_ = viper.BindPFlag("fetch.timeout", flags.Lookup("fetch-timeout"))
	_ = viper.BindPFlag("fetch.user_agent", flags.Lookup("user-agent"))
	_ = viper.BindPFlag("countries.max_probes", flags.Lookup("max-probes"))
	_ = viper.BindPFlag("s3.endpoint", flags.Lookup("s3-endpoint"))
	_ = viper.BindPFlag("s3.bucket", flags.Lookup("s3-bucket"))
	_ = viper.BindPFlag("s3.access_key", flags.Lookup("s3-access-key"))
	_ = viper.BindPFlag("s3.secret_key", flags.Lookup("s3-secret-key"))
	_ = viper.BindPFlag("s3.region", flags.Lookup("s3-region"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".country-compare")
	}

	// COMPARE_CATALOG_LOCATION maps to catalog.location
	viper.SetEnvPrefix("COMPARE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debug {
		if logger == nil {
			initLogger(debug, logFormat)
		}
		logger.Debug(fmt.Sprintf("📄 Using config file: %s", viper.ConfigFileUsed()))
	}
}

// loadConfig collects every setting from viper (flags, env, config file)
func loadConfig() *Config {
	return &Config{
		Debug:     viper.GetBool("debug"),
		LogFormat: viper.GetString("log_format"),
		Catalog: CatalogConfig{
			Location:     viper.GetString("catalog.location"),
			Sheet:        viper.GetString("catalog.sheet"),
			MetricColumn: viper.GetString("catalog.metric_column"),
			LinkColumn:   viper.GetString("catalog.link_column"),
			Table:        viper.GetString("catalog.table"),
			OrderColumn:  viper.GetString("catalog.order_column"),
		},
		Fetch: FetchConfig{
			Timeout:   viper.GetDuration("fetch.timeout"),
			UserAgent: viper.GetString("fetch.user_agent"),
		},
		MaxProbes: viper.GetInt("countries.max_probes"),
		S3: S3Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			Bucket:    viper.GetString("s3.bucket"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
			Region:    viper.GetString("s3.region"),
		},
		Export: ExportConfig{
			Path:             viper.GetString("export.path"),
			Format:           viper.GetString("export.format"),
			Compression:      viper.GetString("export.compression"),
			CompressionLevel: viper.GetInt("export.compression_level"),
			ToS3:             viper.GetBool("export.s3"),
		},
		ChartDir: viper.GetString("charts"),
		Raw:      viper.GetBool("raw"),
		Serve: ServeConfig{
			Port:  viper.GetInt("serve.port"),
			Watch: viper.GetBool("serve.watch"),
		},
	}
}

// prepare loads and validates the config and initializes the logger
func prepare(interactive bool) (*Config, error) {
	config := loadConfig()
	config.Interactive = interactive

	initLogger(config.Debug, config.LogFormat)

	logger.Debug("Validating configuration...")
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	logger.Debug("Configuration validated successfully")
	return config, nil
}

// newSession wires a pipeline session from the config
func newSession(config *Config, log *slog.Logger) *pipeline.Session {
	return pipeline.NewSession(pipeline.Options{
		CatalogLocation: config.Catalog.Location,
		Loader:          catalog.NewLoader(config.LoaderOptions(), log),
		Getter:          dataset.NewHTTPGetter(config.Fetch.Timeout, config.Fetch.UserAgent),
		MaxProbes:       config.MaxProbes,
		Logger:          log,
	})
}

// startVersionCheck runs the update check in the background and waits
// briefly so a quick answer can still make the banner.
func startVersionCheck(ctx context.Context, isDebug bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		result := newVersionChecker().Check(ctx, Version)
		setVersionCheckResult(result)

		if result.UpdateAvailable {
			logger.Info(fmt.Sprintf("💡 %s", formatUpdateMessage(result)))
		} else if result.Error != nil && isDebug {
			logger.Debug(fmt.Sprintf("Version check failed: %v", result.Error))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logger.Debug("Version check taking longer than expected, continuing...")
	}
}

// describeError renders a pipeline error with its recovery hint
func describeError(err error) error {
	p := pipeline.Describe(err)
	if p.Hint != "" {
		return fmt.Errorf("%s: %s (%s)", p.Kind, p.Message, p.Hint)
	}
	return fmt.Errorf("%s: %s", p.Kind, p.Message)
}
