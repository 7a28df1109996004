package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	BaseURL string `mapstructure:"BASE"`

	UploadDir         string   `mapstructure:"UPLOAD_DIR"`
	OutputDir         string   `mapstructure:"OUTPUT_DIR"`
	MaxUploadSize     int64    `mapstructure:"MAX_UPLOAD_SIZE"`
	AllowedExtensions []string `mapstructure:"ALLOWED_EXTENSIONS"`

	MaxConcurrency int           `mapstructure:"MAX_CONCURRENCY"`
	StageTimeout   time.Duration `mapstructure:"STAGE_TIMEOUT"`

	WhisperBin   string `mapstructure:"WHISPER_BIN"`
	WhisperModel string `mapstructure:"WHISPER_MODEL"`
	FFBin        string `mapstructure:"FF_BIN"`
	GenExtraArgs string `mapstructure:"GEN_EXTRA_ARGS"`

	NumHighlights        int           `mapstructure:"NUM_HIGHLIGHTS"`
	MinHighlightDuration time.Duration `mapstructure:"MIN_HIGHLIGHT_DURATION"`
	MaxHighlightDuration time.Duration `mapstructure:"MAX_HIGHLIGHT_DURATION"`

	UseAIHook   bool   `mapstructure:"USE_AI_HOOK"`
	OpenAIKey   string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel string `mapstructure:"OPENAI_MODEL"`

	PollInterval time.Duration `mapstructure:"POLL_INTERVAL"`

	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("UPLOAD_DIR", "./uploads")
	vp.SetDefault("OUTPUT_DIR", "./outputs")
	vp.SetDefault("MAX_UPLOAD_SIZE", "100MB")
	vp.SetDefault("ALLOWED_EXTENSIONS", []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"})
	vp.SetDefault("MAX_CONCURRENCY", 2)
	vp.SetDefault("STAGE_TIMEOUT", "15m")
	vp.SetDefault("WHISPER_BIN", "whisper")
	vp.SetDefault("WHISPER_MODEL", "base")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("GEN_EXTRA_ARGS", "")
	vp.SetDefault("NUM_HIGHLIGHTS", 3)
	vp.SetDefault("MIN_HIGHLIGHT_DURATION", "15s")
	vp.SetDefault("MAX_HIGHLIGHT_DURATION", "90s")
	vp.SetDefault("USE_AI_HOOK", false)
	vp.SetDefault("OPENAI_API_KEY", "")
	vp.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	vp.SetDefault("POLL_INTERVAL", "2s")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "500MB")
	vp.SetDefault("LOG_LEVEL", "info")

	// Load from config file
	vp.SetConfigName("podlight_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/podlight/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("PODLIGHT")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
