package config

import (
	_ "embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

//go:embed sample_config.toml
var sampleConfig string

// Detector contains configuration of the detector boundary.
type Detector struct {
	URL            string  `toml:"url" validate:"omitempty,url"`
	Replay         string  `toml:"replay"`
	Confidence     float64 `toml:"confidence" validate:"gte=0,lte=1"`
	IoU            float64 `toml:"iou" validate:"gte=0,lte=1"`
	TimeoutSeconds int     `toml:"timeout_seconds" validate:"gte=0"`
}

// Processing contains frame and card geometry settings.
type Processing struct {
	FrameSize  int     `toml:"frame_size" validate:"gte=32,lte=4096"`
	CardWidth  int     `toml:"card_width" validate:"gt=0"`
	CardHeight int     `toml:"card_height" validate:"gt=0"`
	// Mirror is set when input frames are horizontally mirrored
	Mirror     bool    `toml:"mirror"`
	Workers    int     `toml:"workers" validate:"gte=0"`
	FPS        float64 `toml:"fps" validate:"gte=0"`
}

// Fingerprint contains fingerprint resolution.
type Fingerprint struct {
	HashSize int `toml:"hash_size" validate:"oneof=8 16 32"`
}

// Matching contains catalogue and matcher settings.
type Matching struct {
	Catalogue string `toml:"catalogue"`
	// Threshold is acceptance distance for 16x16 hashes, scaled with hash size. Zero means the default 14*6.8
	Threshold float64 `toml:"threshold" validate:"gte=0"`
	Index     string  `toml:"index" validate:"oneof=linear indexed"`
	Shards    int     `toml:"shards" validate:"gte=0"`
}

// Tracking contains Track Manager settings.
type Tracking struct {
	IoUThreshold      float64 `toml:"iou_threshold" validate:"gte=0,lte=1"`
	MaxNoMatch        int     `toml:"max_no_match" validate:"gte=0"`
	Algorithm         string  `toml:"algorithm" validate:"oneof=hungarian best-first greedy"`
	HungarianLimit    int     `toml:"hungarian_limit" validate:"gte=1"`
	RetryUnidentified bool    `toml:"retry_unidentified"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	Format     string `toml:"format" validate:"oneof=console json"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"gte=0"`
}

// Output contains result publishing settings.
type Output struct {
	// JSONLines is a file path, "-" for stdout or empty to disable
	JSONLines    string `toml:"json_lines"`
	MQTTBroker   string `toml:"mqtt_broker"`
	MQTTTopic    string `toml:"mqtt_topic" validate:"required_with=MQTTBroker"`
	MQTTClientID string `toml:"mqtt_client_id"`
}

// Config encapsulates all configuration values for tcgscan.
//
// Configuration sections by subsystem:
//   - Detector: inference service address and detection thresholds
//   - Processing: frame size, canonical card size and parallelism
//   - Fingerprint: hash resolution
//   - Matching: catalogue location and acceptance threshold
//   - Tracking: association threshold, grace period and algorithm
//   - Logging: log level, format and rotated file
//   - Output: JSON lines and MQTT result publishing
type Config struct {
	Detector    Detector    `toml:"detector"`
	Processing  Processing  `toml:"processing"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Matching    Matching    `toml:"matching"`
	Tracking    Tracking    `toml:"tracking"`
	Logging     Logging     `toml:"logging"`
	Output      Output      `toml:"output"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tcgscan/config.toml")
}

// Load locates, parses, and validates a configuration file. Missing file means defaults.
// Returns config, resolved path and whether the file exists.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, errors.Wrap(err, "open config")
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrap(err, "parse config")
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, errors.Wrap(err, "stat config")
	}
	if info.IsDir() {
		return "", false, errors.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// Sample returns commented sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes sample configuration to path. Existing file is never overwritten.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	file, err := os.OpenFile(expanded, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "create config file")
	}
	defer file.Close()
	if _, err := file.WriteString(sampleConfig); err != nil {
		return errors.Wrap(err, "write sample config")
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" || pathValue == "-" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", pathValue)
	}
	return absolute, nil
}

// ExpandPath exposes path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
