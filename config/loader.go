package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys shared by the YAML config file, SCRAPER_* environment variables and
// command-line flags.
const (
	KeyBaseURL         = "base-url"
	KeyPages           = "pages"
	KeyDelay           = "delay"
	KeyRandomDelay     = "random-delay"
	KeyTimeout         = "timeout"
	KeyMaxRetries      = "max-retries"
	KeyRetryBackoff    = "retry-backoff"
	KeyRetryBackoffMax = "retry-backoff-max"
	KeyOutput          = "output"
	KeyFormat          = "format"
	KeyImagesDir       = "images-dir"
	KeyNoImages        = "no-images"
	KeyDedupeSize      = "dedupe-size"
	KeyUserAgent       = "user-agent"
	KeyVerbose         = "verbose"
	KeyRespectRobots   = "respect-robots"
	KeyMetricsAddr     = "metrics-addr"
)

// EnvPrefix namespaces environment overrides, e.g. SCRAPER_PAGES.
const EnvPrefix = "SCRAPER"

// Load layers defaults, an optional YAML file, SCRAPER_* environment
// variables and explicitly set flags, in increasing priority.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	return &Config{
		BaseURL:          v.GetString(KeyBaseURL),
		MaxPages:         v.GetInt(KeyPages),
		Delay:            v.GetDuration(KeyDelay),
		RandomDelay:      v.GetDuration(KeyRandomDelay),
		Timeout:          v.GetDuration(KeyTimeout),
		MaxRetries:       v.GetInt(KeyMaxRetries),
		RetryBackoff:     v.GetDuration(KeyRetryBackoff),
		RetryBackoffMax:  v.GetDuration(KeyRetryBackoffMax),
		OutputFile:       v.GetString(KeyOutput),
		OutputFormat:     strings.ToLower(v.GetString(KeyFormat)),
		ImagesDir:        v.GetString(KeyImagesDir),
		SkipImages:       v.GetBool(KeyNoImages),
		DedupeMaxSize:    v.GetInt(KeyDedupeSize),
		UserAgent:        v.GetString(KeyUserAgent),
		Verbose:          v.GetBool(KeyVerbose),
		RespectRobotsTxt: v.GetBool(KeyRespectRobots),
		MetricsAddr:      v.GetString(KeyMetricsAddr),
	}, nil
}

// RegisterFlags declares every configuration flag on fs with defaults taken
// from DefaultConfig.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String(KeyBaseURL, d.BaseURL, "Site root used for category discovery")
	fs.Int(KeyPages, d.MaxPages, "Maximum listing pages to follow per category")
	fs.Duration(KeyDelay, d.Delay, "Fixed delay between requests")
	fs.Duration(KeyRandomDelay, d.RandomDelay, "Random jitter added to the delay")
	fs.Duration(KeyTimeout, d.Timeout, "Per-request timeout")
	fs.Int(KeyMaxRetries, d.MaxRetries, "Retry attempts for transient fetch failures")
	fs.Duration(KeyRetryBackoff, d.RetryBackoff, "Initial retry backoff")
	fs.Duration(KeyRetryBackoffMax, d.RetryBackoffMax, "Maximum retry backoff")
	fs.StringP(KeyOutput, "o", d.OutputFile, "Output file path")
	fs.String(KeyFormat, d.OutputFormat, "Output format: csv, json, or dual")
	fs.String(KeyImagesDir, d.ImagesDir, "Directory for downloaded cover images")
	fs.Bool(KeyNoImages, d.SkipImages, "Skip cover image downloads")
	fs.Int(KeyDedupeSize, d.DedupeMaxSize, "Capacity of the visited-URL and UPC dedupe caches")
	fs.String(KeyUserAgent, d.UserAgent, "User-Agent header sent with every request")
	fs.BoolP(KeyVerbose, "v", d.Verbose, "Enable verbose logging")
	fs.Bool(KeyRespectRobots, d.RespectRobotsTxt, "Respect robots.txt directives")
	fs.String(KeyMetricsAddr, d.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault(KeyBaseURL, cfg.BaseURL)
	v.SetDefault(KeyPages, cfg.MaxPages)
	v.SetDefault(KeyDelay, cfg.Delay)
	v.SetDefault(KeyRandomDelay, cfg.RandomDelay)
	v.SetDefault(KeyTimeout, cfg.Timeout)
	v.SetDefault(KeyMaxRetries, cfg.MaxRetries)
	v.SetDefault(KeyRetryBackoff, cfg.RetryBackoff)
	v.SetDefault(KeyRetryBackoffMax, cfg.RetryBackoffMax)
	v.SetDefault(KeyOutput, cfg.OutputFile)
	v.SetDefault(KeyFormat, cfg.OutputFormat)
	v.SetDefault(KeyImagesDir, cfg.ImagesDir)
	v.SetDefault(KeyNoImages, cfg.SkipImages)
	v.SetDefault(KeyDedupeSize, cfg.DedupeMaxSize)
	v.SetDefault(KeyUserAgent, cfg.UserAgent)
	v.SetDefault(KeyVerbose, cfg.Verbose)
	v.SetDefault(KeyRespectRobots, cfg.RespectRobotsTxt)
	v.SetDefault(KeyMetricsAddr, cfg.MetricsAddr)
}
