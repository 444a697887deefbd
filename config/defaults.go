package config

const (
	defaultDetectorURL     = "http://localhost:8000"
	defaultConfidence      = 0.5
	defaultDetectionIoU    = 0.5
	defaultDetectorTimeout = 10
	defaultFrameSize       = 640
	defaultCardWidth       = 320
	defaultCardHeight      = 444
	defaultHashSize        = 16
	defaultCatalogue       = "~/.local/share/tcgscan/catalogue.db"
	defaultIndex           = "indexed"
	defaultTrackIoU        = 0.5
	defaultMaxNoMatch      = 5
	defaultAlgorithm       = "hungarian"
	defaultHungarianLimit  = 64
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultLogMaxSizeMB    = 100
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 7
	defaultJSONLines       = "-"
	defaultMQTTTopic       = "tcgscan/frames"
	defaultMQTTClientID    = "tcgscan"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Detector: Detector{
			URL:            defaultDetectorURL,
			Confidence:     defaultConfidence,
			IoU:            defaultDetectionIoU,
			TimeoutSeconds: defaultDetectorTimeout,
		},
		Processing: Processing{
			FrameSize:  defaultFrameSize,
			CardWidth:  defaultCardWidth,
			CardHeight: defaultCardHeight,
		},
		Fingerprint: Fingerprint{
			HashSize: defaultHashSize,
		},
		Matching: Matching{
			Catalogue: defaultCatalogue,
			Index:     defaultIndex,
		},
		Tracking: Tracking{
			IoUThreshold:   defaultTrackIoU,
			MaxNoMatch:     defaultMaxNoMatch,
			Algorithm:      defaultAlgorithm,
			HungarianLimit: defaultHungarianLimit,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
		Output: Output{
			JSONLines:    defaultJSONLines,
			MQTTTopic:    defaultMQTTTopic,
			MQTTClientID: defaultMQTTClientID,
		},
	}
}
