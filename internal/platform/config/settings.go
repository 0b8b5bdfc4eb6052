package config

import (
	"path/filepath"
	"time"

	"github.com/ayusman/voiceheard/internal/classify"
	"github.com/ayusman/voiceheard/internal/frame"
	"github.com/ayusman/voiceheard/internal/segment"
	"github.com/ayusman/voiceheard/internal/sentence"
	"github.com/ayusman/voiceheard/internal/translate"
)

// Settings is the application configuration.
type Settings struct {
	Port      string
	LogLevel  string
	LogFormat string
	DataDir   string
	StaticDir string

	TranslateURL     string
	TranslateAPIKey  string
	TranslateTimeout time.Duration
	RedisAddr        string
	RedisPassword    string
	// RecognitionTargetLang translates recognized text when set.
	RecognitionTargetLang string

	Frame            frame.Config
	Classify         classify.Config
	Segment          segment.Config
	UtteranceTimeout time.Duration
}

// FromEnv builds Settings from the environment, using defaults for unset
// keys.
func FromEnv() Settings {
	fr := frame.DefaultConfig()
	fr.StarvationTimeout = GetEnvDuration("STARVATION_TIMEOUT", fr.StarvationTimeout)

	cl := classify.DefaultConfig()
	cl.Concurrency = GetEnvInt("CLASSIFY_CONCURRENCY", cl.Concurrency)
	cl.Timeout = GetEnvDuration("CLASSIFY_TIMEOUT", cl.Timeout)

	seg := segment.DefaultConfig()
	seg.Rise = GetEnvFloat("SEG_RISE", seg.Rise)
	seg.Hold = GetEnvFloat("SEG_HOLD", seg.Hold)
	seg.Commit = GetEnvFloat("SEG_COMMIT", seg.Commit)
	seg.Grace = GetEnvDuration("SEG_GRACE", seg.Grace)
	seg.MinDuration = GetEnvDuration("SEG_MIN_DURATION", seg.MinDuration)

	dataDir := GetEnv("DATA_DIR", "data")
	return Settings{
		Port:                  GetEnv("PORT", "8080"),
		LogLevel:              GetEnv("LOG_LEVEL", "info"),
		LogFormat:             GetEnv("LOG_FORMAT", "json"),
		DataDir:               dataDir,
		StaticDir:             GetEnv("STATIC_DIR", ""),
		TranslateURL:          GetEnv("TRANSLATE_URL", ""),
		TranslateAPIKey:       GetEnv("TRANSLATE_API_KEY", ""),
		TranslateTimeout:      GetEnvDuration("TRANSLATE_TIMEOUT", translate.DefaultConfig().Timeout),
		RedisAddr:             GetEnv("REDIS_ADDR", ""),
		RedisPassword:         GetEnv("REDIS_PASSWORD", ""),
		RecognitionTargetLang: GetEnv("RECOGNITION_TARGET_LANG", ""),
		Frame:                 fr,
		Classify:              cl,
		Segment:               seg,
		UtteranceTimeout:      GetEnvDuration("UTTERANCE_TIMEOUT", sentence.DefaultEndTimeout),
	}
}

// DBPath returns the SQLite database location inside DataDir.
func (s Settings) DBPath() string {
	return filepath.Join(s.DataDir, "voiceheard.db")
}

// Addr returns the listen address for Port.
func (s Settings) Addr() string {
	return ":" + s.Port
}
