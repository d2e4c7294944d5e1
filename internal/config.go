package internal

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. LANZOUFETCH_TIMEOUT
	EnvPrefix = "LANZOUFETCH"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/72.0.3626.121 Safari/537.36"
	DefaultMask      = "3000176000856006061501533003690027800375"
)

// DefaultMirrors are tried in order for every share link
var DefaultMirrors = []string{
	"https://www.lanzoux.com",
	"https://www.lanzouf.com",
	"https://www.lanzouj.com",
	"https://www.lanzouu.com",
	"https://www.lanzouw.com",
}

// DefaultIPPrefixes is the pool of first octets for forged client IPs
var DefaultIPPrefixes = []int{
	218, 218, 66, 66, 218, 218, 60, 60, 202, 204, 66, 66, 66, 59, 61, 60,
	222, 221, 66, 59, 60, 60, 66, 218, 218, 62, 63, 64, 66, 66, 122, 211,
}

// DefaultPositions maps challenge output slots to 1-based input positions
var DefaultPositions = []int{
	15, 35, 29, 24, 33, 16, 1, 38, 10, 9, 19, 31, 40, 27, 22, 23, 25, 13, 6, 11,
	39, 18, 20, 8, 14, 21, 32, 26, 2, 30, 7, 4, 17, 5, 3, 28, 34, 37, 12, 36,
}

// Config holds application configuration
type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	MaxRedirects int
	Mirrors      []string
	UserAgent    string
	IPPrefixes   []int

	// Anti-bot challenge tables
	ChallengePositions []int
	ChallengeMask      string

	// Outbound transport
	ProxyURL    string
	Fingerprint string

	// HTTP API
	ListenAddr string

	// Logging configuration
	LogLevel    string
	LogFormat   string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:            10 * time.Second,
		MaxRetries:         2,
		MaxRedirects:       10,
		Mirrors:            append([]string(nil), DefaultMirrors...),
		UserAgent:          DefaultUserAgent,
		IPPrefixes:         append([]int(nil), DefaultIPPrefixes...),
		ChallengePositions: append([]int(nil), DefaultPositions...),
		ChallengeMask:      DefaultMask,
		ListenAddr:         ":3000",

		LogLevel:    "info",
		LogFormat:   "console",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// NewViper returns a viper instance carrying the defaults and the
// LANZOUFETCH_ environment mapping.
func NewViper() *viper.Viper {
	d := DefaultConfig()
	v := viper.New()

	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("max_redirects", d.MaxRedirects)
	v.SetDefault("mirrors", d.Mirrors)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("ip_prefixes", d.IPPrefixes)
	v.SetDefault("challenge.positions", d.ChallengePositions)
	v.SetDefault("challenge.mask", d.ChallengeMask)
	v.SetDefault("proxy", d.ProxyURL)
	v.SetDefault("fingerprint", d.Fingerprint)
	v.SetDefault("listen", d.ListenAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("debug", d.EnableDebug)
	v.SetDefault("quiet", d.QuietMode)
	v.SetDefault("log_file", d.LogFile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads an optional YAML file into v and builds a Config from v.
// An empty path searches for lanzoufetch.yaml in the working directory;
// a missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lanzoufetch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	c := &Config{
		Timeout:            v.GetDuration("timeout"),
		MaxRetries:         v.GetInt("max_retries"),
		MaxRedirects:       v.GetInt("max_redirects"),
		Mirrors:            splitList(v.GetStringSlice("mirrors")),
		UserAgent:          v.GetString("user_agent"),
		IPPrefixes:         v.GetIntSlice("ip_prefixes"),
		ChallengePositions: v.GetIntSlice("challenge.positions"),
		ChallengeMask:      v.GetString("challenge.mask"),
		ProxyURL:           v.GetString("proxy"),
		Fingerprint:        v.GetString("fingerprint"),
		ListenAddr:         v.GetString("listen"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		EnableDebug:        v.GetBool("debug"),
		QuietMode:          v.GetBool("quiet"),
		LogFile:            v.GetString("log_file"),
	}

	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// splitList accepts both YAML lists and comma separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.TrimRight(part, "/"))
			}
		}
	}
	return out
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	if c.Timeout <= 0 {
		return NewValidationErrorWithValue("timeout", "must be > 0", c.Timeout)
	}

	if c.MaxRetries < 0 {
		return NewValidationErrorWithValue("max_retries", "must be >= 0", c.MaxRetries)
	}

	if c.MaxRedirects < 0 {
		return NewValidationErrorWithValue("max_redirects", "must be >= 0", c.MaxRedirects)
	}

	if len(c.Mirrors) == 0 {
		return NewValidationError("mirrors", "mirror list cannot be empty")
	}
	for _, m := range c.Mirrors {
		u, err := url.Parse(m)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewValidationErrorWithValue("mirrors", "mirror must be an absolute http(s) URL", m)
		}
	}

	if c.UserAgent == "" {
		return NewValidationError("user_agent", "user agent cannot be empty")
	}

	if len(c.IPPrefixes) == 0 {
		return NewValidationError("ip_prefixes", "prefix pool cannot be empty")
	}
	for _, p := range c.IPPrefixes {
		if p < 1 || p > 255 {
			return NewValidationErrorWithValue("ip_prefixes", "prefix must be 1-255", p)
		}
	}

	if err := validatePositions(c.ChallengePositions); err != nil {
		return err
	}

	if len(c.ChallengeMask)%2 != 0 {
		return NewValidationErrorWithValue("challenge.mask", "mask must have an even length", c.ChallengeMask)
	}
	if _, err := hex.DecodeString(c.ChallengeMask); err != nil {
		return NewValidationErrorWithValue("challenge.mask", "mask must be hexadecimal", c.ChallengeMask)
	}

	switch strings.ToLower(c.Fingerprint) {
	case "", "none", "chrome", "firefox":
	default:
		return NewValidationErrorWithValue("fingerprint", "must be chrome, firefox or none", c.Fingerprint).
			WithSuggestion("Omit --fingerprint to use the standard Go TLS stack")
	}

	return nil
}

// validatePositions checks that positions is a permutation of 1..len(positions)
func validatePositions(positions []int) error {
	if len(positions) == 0 {
		return NewValidationError("challenge.positions", "position table cannot be empty")
	}
	seen := make([]bool, len(positions)+1)
	for _, p := range positions {
		if p < 1 || p > len(positions) || seen[p] {
			return NewValidationErrorWithValue("challenge.positions", "positions must be a permutation of 1..n", p)
		}
		seen[p] = true
	}
	return nil
}
