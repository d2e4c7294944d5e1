package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lanzoufetch/api"
	"lanzoufetch/internal"
	"lanzoufetch/lanzou"
	"lanzoufetch/utils"
)

// cli carries the state shared by every subcommand of one invocation
type cli struct {
	v          *viper.Viper
	config     *internal.Config
	configPath string

	password string
	rename   string
	mode     string
}

// configKeys maps persistent flags onto viper keys
var configKeys = map[string]string{
	"timeout":     "timeout",
	"max-retries": "max_retries",
	"mirrors":     "mirrors",
	"proxy":       "proxy",
	"fingerprint": "fingerprint",
	"debug":       "debug",
	"quiet":       "quiet",
	"log-level":   "log_level",
	"log-format":  "log_format",
	"log-file":    "log_file",
}

func newRootCmd() *cobra.Command {
	c := &cli{v: internal.NewViper()}
	defaults := internal.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:     "lanzoufetch [flags] <URL>",
		Short:   "Resolve Lanzou share links into direct download URLs",
		Version: "v1.0.0",
		Long: `lanzoufetch resolves a Lanzou cloud share link into a direct download URL.

It replays the share page handshake against a list of mirror domains, solves
the acw_sc__v2 anti-bot challenge when one is served, and follows the download
redirect chain to the final file URL.

Examples:
  lanzoufetch https://www.lanzoux.com/iAbC123
  lanzoufetch --pwd 1234 https://www.lanzoux.com/iAbC123
  lanzoufetch --mode redirect --rename app.apk https://www.lanzoux.com/iAbC123
  lanzoufetch get -o ~/Downloads/ -r 2M https://www.lanzoux.com/iAbC123
  lanzoufetch serve --listen :3000

Environment Variables:
  LANZOUFETCH_TIMEOUT      Per-request timeout (e.g. 10s)
  LANZOUFETCH_MIRRORS      Comma separated mirror origins
  LANZOUFETCH_MAX_RETRIES  Retries for idempotent requests
  LANZOUFETCH_PROXY        HTTP/SOCKS5 proxy URL
  LANZOUFETCH_LOG_LEVEL    debug, info, warn or error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		RunE: c.runResolve,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Config file (default ./lanzoufetch.yaml)")
	pf.StringVar(&c.password, "pwd", "", "Share password")
	pf.StringVar(&c.rename, "rename", "", "Replace the resolved file name")
	pf.Duration("timeout", defaults.Timeout, "Per-request timeout (env: LANZOUFETCH_TIMEOUT)")
	pf.Int("max-retries", defaults.MaxRetries, "Retries for idempotent requests (env: LANZOUFETCH_MAX_RETRIES)")
	pf.StringSlice("mirrors", nil, "Mirror origins tried in order (env: LANZOUFETCH_MIRRORS)")
	pf.String("proxy", "", "HTTP/SOCKS5 proxy URL (env: LANZOUFETCH_PROXY)")
	pf.String("fingerprint", "", "TLS fingerprint: chrome, firefox or none (env: LANZOUFETCH_FINGERPRINT)")
	pf.BoolP("debug", "d", false, "Enable debug logging with caller information (env: LANZOUFETCH_DEBUG)")
	pf.BoolP("quiet", "q", false, "Suppress progress output and non-error logs (env: LANZOUFETCH_QUIET)")
	pf.String("log-level", "", "Set log level (debug, info, warn, error) (env: LANZOUFETCH_LOG_LEVEL)")
	pf.String("log-format", "", "Log format: console or json (env: LANZOUFETCH_LOG_FORMAT)")
	pf.String("log-file", "", "Write logs to file instead of stderr (env: LANZOUFETCH_LOG_FILE)")

	for flag, key := range configKeys {
		// Lookup cannot fail for flags defined above
		_ = c.v.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.Flags().StringVar(&c.mode, "mode", string(internal.ModeParse), "Output mode: parse or redirect")

	rootCmd.AddCommand(newGetCmd(c), newServeCmd(c))
	return rootCmd
}

// Execute runs the command line
func Execute() error {
	return newRootCmd().Execute()
}

// setup loads configuration and initializes logging
func (c *cli) setup() error {
	cfg, err := internal.Load(c.v, c.configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	c.config = cfg

	if err := internal.InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	internal.LogDebug("configuration loaded: mirrors=%d timeout=%v retries=%d fingerprint=%q",
		len(cfg.Mirrors), cfg.Timeout, cfg.MaxRetries, cfg.Fingerprint)
	return nil
}

// newResolver builds the shared HTTP client and a mirror resolver over it
func (c *cli) newResolver() (*lanzou.Resolver, *utils.HTTPClient, error) {
	client, err := utils.NewHTTPClientWithConfig(utils.HTTPClientConfigFrom(c.config))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return lanzou.NewResolver(c.config, client), client, nil
}

func (c *cli) request(shareURL string, mode internal.Mode) internal.ResolutionRequest {
	return internal.ResolutionRequest{
		ShareURL: shareURL,
		Password: c.password,
		RenameTo: c.rename,
		Mode:     mode,
	}
}

func (c *cli) runResolve(cmd *cobra.Command, args []string) error {
	mode, err := internal.ParseMode(c.mode)
	if err != nil {
		return err
	}

	resolver, _, err := c.newResolver()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	meta, resolveErr := resolver.Resolve(ctx, c.request(args[0], mode))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(api.NewOutcome(mode, meta, resolveErr)); err != nil {
		return err
	}

	if resolveErr != nil {
		return fmt.Errorf("resolution failed: %s", internal.AsLanzouError(resolveErr).Message)
	}
	return nil
}

// signalContext cancels on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
