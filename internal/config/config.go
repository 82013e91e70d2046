package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	ServerURL string `mapstructure:"server_url"`
	AuthToken string `mapstructure:"auth_token"`

	// Capture defaults. Empty device ids mean auto-select the first device.
	VideoDeviceID string `mapstructure:"video_device_id"`
	AudioDeviceID string `mapstructure:"audio_device_id"`

	// Composition defaults.
	CanvasWidth    int    `mapstructure:"canvas_width"`
	CanvasHeight   int    `mapstructure:"canvas_height"`
	FrameRate      int    `mapstructure:"frame_rate"`
	PresenterName  string `mapstructure:"presenter_name"`
	PresenterTitle string `mapstructure:"presenter_title"`

	// Recording.
	OutputDir            string `mapstructure:"output_dir"`
	SliceIntervalSeconds int    `mapstructure:"slice_interval_seconds"`

	// Live assist.
	AIEnabled                 bool `mapstructure:"ai_enabled"`
	SuggestionIntervalSeconds int  `mapstructure:"suggestion_interval_seconds"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		CanvasWidth:               1920,
		CanvasHeight:              1080,
		FrameRate:                 30,
		OutputDir:                 defaultOutputDir(),
		SliceIntervalSeconds:      1,
		AIEnabled:                 true,
		SuggestionIntervalSeconds: 15,
		LogLevel:                  "info",
		LogFormat:                 "text",
		LogMaxSizeMB:              50,
		LogMaxBackups:             3,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("studio")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HOTMIKE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("server_url", cfg.ServerURL)
	viper.Set("auth_token", cfg.AuthToken)
	viper.Set("video_device_id", cfg.VideoDeviceID)
	viper.Set("audio_device_id", cfg.AudioDeviceID)
	viper.Set("canvas_width", cfg.CanvasWidth)
	viper.Set("canvas_height", cfg.CanvasHeight)
	viper.Set("frame_rate", cfg.FrameRate)
	viper.Set("presenter_name", cfg.PresenterName)
	viper.Set("presenter_title", cfg.PresenterTitle)
	viper.Set("output_dir", cfg.OutputDir)
	viper.Set("slice_interval_seconds", cfg.SliceIntervalSeconds)
	viper.Set("ai_enabled", cfg.AIEnabled)
	viper.Set("suggestion_interval_seconds", cfg.SuggestionIntervalSeconds)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)
	viper.Set("log_max_size_mb", cfg.LogMaxSizeMB)
	viper.Set("log_max_backups", cfg.LogMaxBackups)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "studio.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains auth token)
	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("AppData"), "HotMike")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "HotMike")
	default:
		return filepath.Join(home, ".config", "hotmike")
	}
}

func defaultOutputDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "HotMike", "Recordings")
}
