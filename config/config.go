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
	// Inbox / reply collaborator
	RedditClientID     string `mapstructure:"REDDIT_CLIENT_ID"`
	RedditClientSecret string `mapstructure:"REDDIT_CLIENT_SECRET"`
	RedditUsername     string `mapstructure:"REDDIT_USERNAME"`
	RedditPassword     string `mapstructure:"REDDIT_PASSWORD"`
	UserAgent          string `mapstructure:"USER_AGENT"`
	IssueRecipient     string `mapstructure:"ISSUE_RECIPIENT"`

	// Hosting collaborator
	ImgurClientID     string `mapstructure:"IMGUR_CLIENT_ID"`
	ImgurClientSecret string `mapstructure:"IMGUR_CLIENT_SECRET"`
	ImgurAccessToken  string `mapstructure:"IMGUR_ACCESS_TOKEN"`

	// Pipeline
	FetchInterval  time.Duration `mapstructure:"FETCH_INTERVAL"`
	WorkInterval   time.Duration `mapstructure:"WORK_INTERVAL"`
	UploadInterval time.Duration `mapstructure:"UPLOAD_INTERVAL"`
	QueueSize      int           `mapstructure:"QUEUE_SIZE"`
	MaxTaskRetries int           `mapstructure:"MAX_TASK_RETRIES"`
	MaxInputSize   int64         `mapstructure:"MAX_INPUT_SIZE"`
	WatermarkText  string        `mapstructure:"WATERMARK_TEXT"`

	// Cutting engines
	FFBin       string        `mapstructure:"FF_BIN"`
	FFProbeBin  string        `mapstructure:"FFPROBE_BIN"`
	FFTimeout   time.Duration `mapstructure:"FF_TIMEOUT"`
	FFExtraArgs string        `mapstructure:"FF_EXTRA_ARGS"`

	// Resource throttling before a cut is started
	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	// Status API
	Port       string `mapstructure:"PORT"`
	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to time.Duration.
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
		// We only care about converting strings to int64s for byte sizes.
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
	vp.SetDefault("REDDIT_CLIENT_ID", "")
	vp.SetDefault("REDDIT_CLIENT_SECRET", "")
	vp.SetDefault("REDDIT_USERNAME", "")
	vp.SetDefault("REDDIT_PASSWORD", "")
	vp.SetDefault("USER_AGENT", "web:clipbot:v1 (media clipping bot)")
	vp.SetDefault("ISSUE_RECIPIENT", "domac")
	vp.SetDefault("IMGUR_CLIENT_ID", "")
	vp.SetDefault("IMGUR_CLIENT_SECRET", "")
	vp.SetDefault("IMGUR_ACCESS_TOKEN", "")
	vp.SetDefault("FETCH_INTERVAL", "10s")
	vp.SetDefault("WORK_INTERVAL", "5s")
	vp.SetDefault("UPLOAD_INTERVAL", "10s")
	vp.SetDefault("QUEUE_SIZE", 64)
	vp.SetDefault("MAX_TASK_RETRIES", 3)
	vp.SetDefault("MAX_INPUT_SIZE", "200MB")
	vp.SetDefault("WATERMARK_TEXT", "")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_TIMEOUT", "5m")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("LOG_LEVEL", "info")

	// Load from config file
	vp.SetConfigName("clipbot_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/clipbot/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("CLIPBOT")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
