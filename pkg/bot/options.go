package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schidstorm/pdf-bot/pkg/convert"
	"github.com/schidstorm/pdf-bot/pkg/fonts"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/render"
	"github.com/schidstorm/pdf-bot/pkg/scratch"
	"gopkg.in/yaml.v3"
)

var ErrMissingToken = errors.New("BOT_TOKEN is not set")

type WebhookOptions struct {
	Port      string `yaml:"port" json:"port"`
	PublicURL string `yaml:"publicUrl" json:"publicUrl"`
}

type Options struct {
	Token       string         `yaml:"token" json:"token"`
	LogLevel    string         `yaml:"logLevel" json:"logLevel"`
	Webhook     WebhookOptions `yaml:"webhook" json:"webhook"`
	PollTimeout time.Duration  `yaml:"pollTimeout" json:"pollTimeout"`
	HttpTimeout time.Duration  `yaml:"httpTimeout" json:"httpTimeout"`
	// MaxFileSize is the largest image the bot will try to download.
	MaxFileSize int64 `yaml:"maxFileSize" json:"maxFileSize"`
	WatchFonts  bool  `yaml:"watchFonts" json:"watchFonts"`
	// SweepAfter removes leftover scratch files older than this at startup.
	SweepAfter time.Duration `yaml:"sweepAfter" json:"sweepAfter"`

	Scratch scratch.Options `yaml:"scratch" json:"scratch"`
	Ocr     ocr.Options     `yaml:"ocr" json:"ocr"`
	Fonts   fonts.Options   `yaml:"fonts" json:"fonts"`
	Render  render.Options  `yaml:"render" json:"render"`
	Convert convert.Options `yaml:"convert" json:"convert"`
}

func DefaultOptions() Options {
	return Options{
		LogLevel:    "info",
		PollTimeout: 10 * time.Second,
		HttpTimeout: 60 * time.Second,
		MaxFileSize: 20 << 20,
		WatchFonts:  true,
		SweepAfter:  time.Hour,
		Ocr: ocr.Options{
			Engine:    "cli",
			Languages: ocr.DefaultLanguages,
		},
		Render: render.Options{
			FontSize: 12,
		},
		Convert: convert.DefaultOptions(),
	}
}

// LoadOptions reads the optional configuration file at p on top of the
// defaults and then applies the environment.
func LoadOptions(p string, lookupEnv func(string) (string, bool)) (Options, error) {
	opts := DefaultOptions()

	if p != "" {
		fileContent, err := os.ReadFile(p)
		if err != nil {
			return opts, err
		}

		switch path.Ext(p) {
		case ".json":
			err = json.Unmarshal(fileContent, &opts)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(fileContent, &opts)
		default:
			return opts, fmt.Errorf("unsupported file format")
		}
		if err != nil {
			return opts, fmt.Errorf("parse %s: %w", p, err)
		}
	}

	opts.ApplyEnv(lookupEnv)

	return opts, opts.Validate()
}

func (o *Options) ApplyEnv(lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv("BOT_TOKEN"); ok && v != "" {
		o.Token = v
	}
	if v, ok := lookupEnv("PORT"); ok && v != "" {
		o.Webhook.Port = v
	}
	if v, ok := lookupEnv("WEBHOOK_URL"); ok && v != "" {
		o.Webhook.PublicURL = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok && v != "" {
		o.LogLevel = v
	}
	if v, ok := lookupEnv("FONT_PATH"); ok && v != "" {
		base := o.Fonts.Paths
		if len(base) == 0 {
			base = fonts.DefaultPaths
		}
		o.Fonts.Paths = append(filepath.SplitList(v), base...)
	}
	if v, ok := lookupEnv("OCR_ENGINE"); ok && v != "" {
		o.Ocr.Engine = v
	}
	if v, ok := lookupEnv("OCR_LANGUAGES"); ok && v != "" {
		o.Ocr.Languages = strings.FieldsFunc(v, func(r rune) bool {
			return r == '+' || r == ',' || r == ' '
		})
	}
	if v, ok := lookupEnv("SCRATCH_DIR"); ok && v != "" {
		o.Scratch.Dir = v
	}
}

func (o *Options) Validate() error {
	if strings.TrimSpace(o.Token) == "" {
		return ErrMissingToken
	}

	if o.PollTimeout <= 0 {
		o.PollTimeout = 10 * time.Second
	}
	// the long poll must finish before the http client gives up on it
	if o.HttpTimeout <= o.PollTimeout {
		o.HttpTimeout = o.PollTimeout + 10*time.Second
	}

	return nil
}

// WebhookMode needs both a port to listen on and the public URL telegram
// should push to. A port alone keeps the bot polling.
func (o Options) WebhookMode() bool {
	return o.Webhook.Port != "" && o.Webhook.PublicURL != ""
}
