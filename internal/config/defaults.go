package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration parameters.
const (
	DefaultLogLevel = "info"

	DefaultServerAddr = ":8080"
	DefaultServerEnv  = "development"

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.7
	DefaultGeminiMaxTokens   = 1200
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 * time.Second

	DefaultRateLimitWindow = time.Minute
	DefaultRateLimitMax    = 30

	DefaultMaxMessageLength = 1000
	DefaultHistoryLimit     = 25  // messages sent with each request
	DefaultMaxStored        = 150 // messages kept in the local cache
	DefaultMinInteractions  = 5
	DefaultAssessEvery      = 5

	DefaultStoragePath  = "tutor.db"
	DefaultStorageQuota = 10 * 1024 * 1024
	DefaultDebounce     = 800 * time.Millisecond

	DefaultClientServerURL = "http://localhost:8080"
	DefaultClientMode      = "free_talk"

	// Daily at 04:00, seconds field included (gocron cron with seconds).
	DefaultMaintenanceSchedule = "0 0 4 * * *"
)

// DefaultGeminiInstruction is the base system instruction for the tutor.
// The server appends the student's assessed level and active practice mode
// per request.
const DefaultGeminiInstruction = `You are an expert English tutor for Chinese students learning English. ` +
	`You are bilingual (English and 简体中文) and understand the transfer errors Chinese speakers make: ` +
	`missing articles, plural forms, verb tenses, word order, prepositions, countable/uncountable nouns, ` +
	`modal verbs, pronunciation (TH, R/L, final consonants), and literal idiom translations. ` +
	`Respond primarily in English; use Chinese only for complex grammar points, cultural notes, or when asked. ` +
	`Correct errors gently with the corrected sentence, a short explanation, and two or three examples. ` +
	`Match the student's level: simple sentences with more Chinese support for beginners, ` +
	`natural native-level English with minimal Chinese for advanced students. Be encouraging.`

func setDefaults() {
	viper.SetDefault("log.level", DefaultLogLevel)
	viper.SetDefault("log.json", true)

	viper.SetDefault("server.addr", DefaultServerAddr)
	viper.SetDefault("server.env", DefaultServerEnv)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("gemini.model", DefaultGeminiModel)
	viper.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	viper.SetDefault("gemini.max_tokens", DefaultGeminiMaxTokens)
	viper.SetDefault("gemini.instruction", DefaultGeminiInstruction)
	viper.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	viper.SetDefault("gemini.retry_delay", DefaultGeminiRetryDelay)

	viper.SetDefault("rate_limit.window", DefaultRateLimitWindow)
	viper.SetDefault("rate_limit.max_requests", DefaultRateLimitMax)

	viper.SetDefault("chat.max_message_length", DefaultMaxMessageLength)
	viper.SetDefault("chat.history_limit", DefaultHistoryLimit)
	viper.SetDefault("chat.max_stored", DefaultMaxStored)
	viper.SetDefault("chat.min_interactions", DefaultMinInteractions)
	viper.SetDefault("chat.assess_every", DefaultAssessEvery)

	viper.SetDefault("storage.path", DefaultStoragePath)
	viper.SetDefault("storage.quota_bytes", DefaultStorageQuota)
	viper.SetDefault("storage.debounce", DefaultDebounce)

	viper.SetDefault("client.server_url", DefaultClientServerURL)
	viper.SetDefault("client.mode", DefaultClientMode)

	viper.SetDefault("scheduler.maintenance", DefaultMaintenanceSchedule)
}
