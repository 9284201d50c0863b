package config

// Option defines a configuration option that can be passed to Load
type Option func(*options)

// options holds internal configuration options
type options struct {
	configPath  string
	configPaths []string
	envPrefix   string
	envFile     string
	args        []string
	argsSet     bool
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithConfigPaths replaces the directories searched for irrigatectl.toml
func WithConfigPaths(paths ...string) Option {
	return func(o *options) {
		o.configPaths = paths
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "IRRIGATECTL"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithEnvFile specifies the dotenv file loaded before reading the environment.
// An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// WithArgs replaces os.Args[1:] as the command line
func WithArgs(args ...string) Option {
	return func(o *options) {
		o.args = args
		o.argsSet = true
	}
}
