package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/api"
	"codeberg.org/mutker/irrigatectl/internal/dashboard"
	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/metrics"
	"codeberg.org/mutker/irrigatectl/internal/sampler"
	"codeberg.org/mutker/irrigatectl/internal/source"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"codeberg.org/mutker/irrigatectl/internal/trend"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel  = "info"
	DefaultEnvPrefix = "IRRIGATECTL"
	DefaultEnvFile   = ".env"
	DefaultPIDDir    = "/run/irrigatectl"

	configName = "irrigatectl"
	configType = "toml"
)

type TrendConfig struct {
	Capacity    int     `mapstructure:"capacity"`
	LabelLayout string  `mapstructure:"label_layout"`
	Tolerance   float64 `mapstructure:"tolerance"`
}

type MQTTConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	source.Config `mapstructure:",squash"`
}

type Config struct {
	LogLevel string                    `mapstructure:"log_level"`
	Interval time.Duration             `mapstructure:"interval"`
	Strategy sampler.Kind              `mapstructure:"strategy"`
	Seed     uint64                    `mapstructure:"seed"`
	PIDDir   string                    `mapstructure:"pid_dir"`
	Trend    TrendConfig               `mapstructure:"trend"`
	Bands    map[string]telemetry.Band `mapstructure:"bands"`
	External sampler.ExternalConfig    `mapstructure:"external"`
	MQTT     MQTTConfig                `mapstructure:"mqtt"`
	HTTP     api.Config                `mapstructure:"http"`
	Metrics  metrics.Config            `mapstructure:"metrics"`
}

// Load reads defaults, the TOML file, the dotenv file, the environment and
// the command line, later sources overriding earlier ones, and validates
// the result.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		configPaths: []string{"/etc"},
		envPrefix:   DefaultEnvPrefix,
		envFile:     DefaultEnvFile,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile picks the file from, in order: WithConfigFile, --config,
// <PREFIX>_CONFIG, then irrigatectl.toml in the search paths. Only an
// explicitly named file has to exist.
func readConfigFile(v *viper.Viper, fs *pflag.FlagSet, o options) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	for _, p := range o.configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("interval", sampler.DefaultInterval)
	v.SetDefault("strategy", string(sampler.KindSynthetic))
	v.SetDefault("seed", 0)
	v.SetDefault("pid_dir", DefaultPIDDir)

	v.SetDefault("trend.capacity", trend.DefaultCapacity)
	v.SetDefault("trend.label_layout", dashboard.DefaultLabelLayout)
	v.SetDefault("trend.tolerance", dashboard.DefaultTolerance)

	for m, b := range telemetry.DefaultBands() {
		prefix := "bands." + m.String() + "."
		v.SetDefault(prefix+"min", b.Min)
		v.SetDefault(prefix+"max", b.Max)
		v.SetDefault(prefix+"optimal_low", b.OptimalLow)
		v.SetDefault(prefix+"optimal_high", b.OptimalHigh)
	}

	ext := sampler.DefaultExternalConfig()
	v.SetDefault("external.timeout", ext.Timeout)
	v.SetDefault("external.breaker_failures", ext.BreakerFailures)
	v.SetDefault("external.breaker_open_for", ext.BreakerOpenFor)

	mq := source.DefaultConfig()
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", mq.Broker)
	v.SetDefault("mqtt.client_id", mq.ClientID)
	v.SetDefault("mqtt.username", mq.Username)
	v.SetDefault("mqtt.password", mq.Password)
	v.SetDefault("mqtt.telemetry_topic", mq.TelemetryTopic)
	v.SetDefault("mqtt.command_topic", mq.CommandTopic)
	v.SetDefault("mqtt.qos", mq.QoS)
	v.SetDefault("mqtt.max_age", mq.MaxAge)
	v.SetDefault("mqtt.connect_retries", mq.ConnectRetries)
	v.SetDefault("mqtt.connect_timeout", mq.ConnectTimeout)

	httpCfg := api.DefaultConfig()
	v.SetDefault("http.addr", httpCfg.Addr)
	v.SetDefault("http.heartbeat", httpCfg.Heartbeat)

	m := metrics.DefaultConfig()
	v.SetDefault("metrics.enabled", m.Enabled)
	v.SetDefault("metrics.path", m.Path)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.String("config", "", "Path to the TOML configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Duration("interval", sampler.DefaultInterval, "Refresh interval")
	fs.String("strategy", string(sampler.KindSynthetic), "Sampling strategy (synthetic, external)")
	fs.Uint64("seed", 0, "Seed for the synthetic strategy, 0 picks one at random")
	fs.Int("trend-capacity", trend.DefaultCapacity, "Points kept per trend window")
	fs.Bool("mqtt", false, "Connect to the MQTT broker")
	fs.String("mqtt-broker", source.DefaultConfig().Broker, "MQTT broker URL")
	fs.String("http-addr", api.DefaultConfig().Addr, "HTTP listen address")
	fs.Bool("metrics", metrics.DefaultConfig().Enabled, "Expose Prometheus metrics")
	fs.String("pid-dir", DefaultPIDDir, "Directory for the PID file")
	return fs
}

var flagKeys = map[string]string{
	"log-level":      "log_level",
	"interval":       "interval",
	"strategy":       "strategy",
	"seed":           "seed",
	"trend-capacity": "trend.capacity",
	"mqtt":           "mqtt.enabled",
	"mqtt-broker":    "mqtt.broker",
	"http-addr":      "http.addr",
	"metrics":        "metrics.enabled",
	"pid-dir":        "pid_dir",
}

// bindFlags binds flags so that only flags set on the command line override
// the file and the environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every section. Any failure is a configuration_error.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errFactory.Wrap(errors.ErrConfiguration, err)
	}
	if c.Interval <= 0 {
		return errFactory.Wrap(errors.ErrConfiguration,
			errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String()))
	}
	if !c.Strategy.Valid() {
		return errFactory.WithData(errors.ErrConfiguration, "unknown strategy "+string(c.Strategy))
	}
	if c.Strategy == sampler.KindExternal && !c.MQTT.Enabled {
		return errFactory.WithData(errors.ErrConfiguration, "strategy external needs mqtt.enabled")
	}

	dash, err := c.Dashboard()
	if err != nil {
		return err
	}
	if err := dash.Validate(); err != nil {
		return err
	}

	if c.MQTT.Enabled {
		if err := c.MQTT.Config.Validate(); err != nil {
			return err
		}
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return errFactory.Wrap(errors.ErrConfiguration, err)
	}

	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logger.LogLevel {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.InfoLevel
	}
	return level
}

// Dashboard converts the trend and band sections into dashboard settings.
func (c *Config) Dashboard() (dashboard.Config, error) {
	errFactory := errors.New()

	bands := make(telemetry.Bands, len(c.Bands))
	for key, b := range c.Bands {
		m, err := telemetry.ParseMetric(key)
		if err != nil {
			return dashboard.Config{}, errFactory.Wrap(errors.ErrConfiguration, err).
				WithMessage("unknown band " + key)
		}
		bands[m] = b
	}

	return dashboard.Config{
		Bands:       bands,
		Capacity:    c.Trend.Capacity,
		LabelLayout: c.Trend.LabelLayout,
		Tolerance:   c.Trend.Tolerance,
	}, nil
}
