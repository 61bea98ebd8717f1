package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Carmen-Shannon/streamforge/dispatcher"
	"github.com/Carmen-Shannon/streamforge/token"
)

// runConfig is the flat configuration this binary reads from flags, a
// config file, and STREAMFORGE_-prefixed environment variables, grounded
// on firestige-Otus's internal/config.Load (viper.New + SetConfigFile +
// AutomaticEnv + mapstructure unmarshal).
type runConfig struct {
	Source struct {
		Dir        string `mapstructure:"dir"`
		Pattern    string `mapstructure:"pattern"`
		LoopCount  int    `mapstructure:"loop_count"`
		FrameNum   int64  `mapstructure:"frame_num"`
		FrameDen   int64  `mapstructure:"frame_den"`
		Width      uint32 `mapstructure:"width"`
		Height     uint32 `mapstructure:"height"`
		PixelFormat string `mapstructure:"pixel_format"`
	} `mapstructure:"source"`

	Render struct {
		PixelFormat string `mapstructure:"pixel_format"`
	} `mapstructure:"render"`

	Preview struct {
		Enabled bool   `mapstructure:"enabled"`
		Title   string `mapstructure:"title"`
		Width   int    `mapstructure:"width"`
		Height  int    `mapstructure:"height"`
	} `mapstructure:"preview"`

	Gpu struct {
		ForceFallbackAdapter bool `mapstructure:"force_fallback_adapter"`
		MultipleGpuContexts  bool `mapstructure:"multiple_gpu_contexts"`
	} `mapstructure:"gpu"`

	Pipeline struct {
		AsyncInput                bool `mapstructure:"async_input"`
		AsyncOutput               bool `mapstructure:"async_output"`
		PersistentMapping         bool `mapstructure:"persistent_mapping"`
		CopyStagingBeforeDownload bool `mapstructure:"copy_staging_before_download"`
	} `mapstructure:"pipeline"`
}

func loadConfig(path string) (*runConfig, error) {
	v := viper.New()
	setConfigDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("streamforge: read config %q: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("streamforge")
	v.AutomaticEnv()

	var cfg runConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("streamforge: unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("source.pattern", "*.raw")
	v.SetDefault("source.loop_count", 1)
	v.SetDefault("source.frame_num", 1001)
	v.SetDefault("source.frame_den", 30000)
	v.SetDefault("source.pixel_format", "rgba8")
	v.SetDefault("render.pixel_format", "rgba8")
	v.SetDefault("preview.title", "streamforge")
	v.SetDefault("preview.width", 1280)
	v.SetDefault("preview.height", 720)
}

func parsePixelFormat(s string) (token.PixelFormat, error) {
	switch strings.ToLower(s) {
	case "rgb8":
		return token.PixelFormatRGB8, nil
	case "rgba8":
		return token.PixelFormatRGBA8, nil
	case "rgba16":
		return token.PixelFormatRGBA16, nil
	case "yuv10_v210":
		return token.PixelFormatYUV10V210, nil
	case "rgba_float16":
		return token.PixelFormatRGBAFloat16, nil
	case "rgba_float32":
		return token.PixelFormatRGBAFloat32, nil
	default:
		return token.PixelFormatInvalid, fmt.Errorf("streamforge: unknown pixel format %q", s)
	}
}

func (c *runConfig) flagSet() dispatcher.FlagSet {
	return dispatcher.FlagSet{
		MultipleGpuContexts:       c.Gpu.MultipleGpuContexts,
		AsyncInput:                c.Pipeline.AsyncInput,
		AsyncOutput:               c.Pipeline.AsyncOutput,
		PersistentMapping:         c.Pipeline.PersistentMapping,
		CopyStagingBeforeDownload: c.Pipeline.CopyStagingBeforeDownload,
	}
}
