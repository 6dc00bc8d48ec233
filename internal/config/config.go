package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	APIBaseURL     string        `mapstructure:"API_BASE_URL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	PollInterval   time.Duration `mapstructure:"POLL_INTERVAL"`
	NotifyTTL      time.Duration `mapstructure:"NOTIFY_TTL"`
	KBLimit        int           `mapstructure:"KB_LIMIT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFile        string        `mapstructure:"LOG_FILE"`
	StateBackend   string        `mapstructure:"STATE_BACKEND"`
	StatePath      string        `mapstructure:"STATE_PATH"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPrefix    string        `mapstructure:"REDIS_PREFIX"`
	Port           string        `mapstructure:"PORT"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

// Load reads .env and the environment. Flags registered on fs (if any)
// take precedence once parsed; their names are upper-cased with dashes
// turned into underscores to match the env keys.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	stateDir := defaultStateDir()

	v.SetDefault("ENV", "dev")
	v.SetDefault("API_BASE_URL", "http://127.0.0.1:8000/api")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("POLL_INTERVAL", "5s")
	v.SetDefault("NOTIFY_TTL", "5s")
	v.SetDefault("KB_LIMIT", 200)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", filepath.Join(stateDir, "servicedesk.log"))
	v.SetDefault("STATE_BACKEND", StateBackendFile)
	v.SetDefault("STATE_PATH", filepath.Join(stateDir, "state.yaml"))
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PREFIX", "servicedesk")
	v.SetDefault("PORT", "8000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(flagKey(f.Name), f)
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func flagKey(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r == '-':
			out = append(out, '_')
		case r >= 'a' && r <= 'z':
			out = append(out, r-'a'+'A')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "."
	}
	return filepath.Join(dir, "servicedesk")
}
