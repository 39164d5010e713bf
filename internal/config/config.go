// Package config はアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session Token
	JWTSecret   string
	TokenExpiry time.Duration

	// LLM (Groq互換のchat completions API)
	GroqAPIKey  string
	GroqBaseURL string
	LLMModels   []string
	LLMTimeout  time.Duration

	// TTS (ElevenLabs互換の音声合成API)
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	TTSVoiceID        string
	TTSModels         []string
	TTSTimeout        time.Duration

	// シラバスURLインポート
	ImportTimeout time.Duration
	ImportMaxSize int64

	// Rate Limit（req/min/user）
	RateLimitGeneral    int
	RateLimitGeneration int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

const (
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
)

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（未存在は無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発環境向けの補助。本番では環境変数を直接設定する想定。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	if cfg.GroqAPIKey == "" {
		missing = append(missing, "GROQ_API_KEY")
	}

	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	if cfg.ElevenLabsAPIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenExpiry = getEnvDuration("TOKEN_EXPIRY", 7*24*time.Hour)
	cfg.GroqBaseURL = getEnvString("GROQ_BASE_URL", defaultGroqBaseURL)
	cfg.LLMModels = getEnvList("LLM_MODELS", []string{
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
	})
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)
	cfg.ElevenLabsBaseURL = getEnvString("ELEVENLABS_BASE_URL", defaultElevenLabsBaseURL)
	cfg.TTSVoiceID = getEnvString("TTS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb")
	cfg.TTSModels = getEnvList("TTS_MODELS", []string{
		"eleven_turbo_v2_5",
		"eleven_multilingual_v2",
	})
	cfg.TTSTimeout = getEnvDuration("TTS_TIMEOUT", 120*time.Second)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 2097152)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGeneration = getEnvInt("RATE_LIMIT_GENERATION", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数をスライスに分割する。
// 空要素は除去する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
