// Package config provides configuration loading, validation, and defaults
// for quizbot. Values come from defaults, an optional config.yaml, an optional
// .env file and environment variables, in increasing order of precedence.
package config

import "time"

// Task names understood by the scheduler.
const (
	TaskQuizPoll       = "quiz_poll"
	TaskSQLMaintenance = "sql_maintenance"
)

// DefaultPrompt asks for one bilingual UPSC / SSC CGL multiple choice question
// in the line-oriented format the generator parses.
const DefaultPrompt = `Generate a multiple choice question for UPSC/SSC CGL exam preparation. Follow this EXACT format and example:

Example Output:
Q: Who was the first President of India?
भारत के प्रथम राष्ट्रपति कौन थे?

A) Dr. Rajendra Prasad / डॉ राजेंद्र प्रसाद
B) Jawaharlal Nehru / जवाहरलाल नेहरू
C) Sardar Vallabhbhai Patel / सरदार वल्लभभाई पटेल
D) Dr. A.P.J. Abdul Kalam / डॉ ए पी जे अब्दुल कलाम

Correct: A
Explanation: Dr. Rajendra Prasad served as the first President of India from 1950 to 1962.

Requirements:
1. Question MUST be shown in both English and Hindi
2. Hindi translation must be accurate and grammatically correct
3. Each option MUST have both English and Hindi versions separated by ' / '
4. Options MUST start with A), B), C), D) followed by a space
5. Topics: Indian History, Geography, Polity, Economics, or Current Affairs
6. Use proper Hindi Unicode characters
7. The explanation MUST be a single sentence in English, under 200 characters
8. Keep formatting consistent throughout`

// Config is the immutable application configuration, loaded once at startup.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	AI        AIConfig        `mapstructure:"ai"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and the target channel.
type TelegramConfig struct {
	Token           string        `mapstructure:"token"            validate:"required"`
	ChannelID       string        `mapstructure:"channel_id"       validate:"required"`
	Anonymous       bool          `mapstructure:"anonymous"`
	SendExplanation bool          `mapstructure:"send_explanation"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  validate:"min=1s,max=5m"`
}

// AIConfig holds the completion provider settings.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"    validate:"oneof=openai gemini"`
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	BaseURL     string        `mapstructure:"base_url"    validate:"omitempty,url"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"  validate:"min=16,max=8192"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	Prompt      string        `mapstructure:"prompt"      validate:"required"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig schedules one task either every Interval or on a cron Schedule.
// Schedule wins when both are set.
type TaskConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"     validate:"min=0"`
	Schedule   string        `mapstructure:"schedule"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// DatabaseConfig controls the SQLite run ledger.
type DatabaseConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"      validate:"required_if=Enabled true"`
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}

var defaults = map[string]any{
	"log.level": "info",
	"log.json":  false,

	"telegram.token":            "",
	"telegram.channel_id":       "",
	"telegram.anonymous":        true,
	"telegram.send_explanation": false,
	"telegram.request_timeout":  30 * time.Second,

	"ai.provider":    "openai",
	"ai.api_key":     "",
	"ai.base_url":    "",
	"ai.model":       "",
	"ai.temperature": 0.7,
	"ai.max_tokens":  400,
	"ai.timeout":     2 * time.Minute,
	"ai.prompt":      DefaultPrompt,

	"scheduler.tasks.quiz_poll.enabled":      true,
	"scheduler.tasks.quiz_poll.interval":     time.Hour,
	"scheduler.tasks.quiz_poll.schedule":     "",
	"scheduler.tasks.quiz_poll.run_on_start": true,

	"scheduler.tasks.sql_maintenance.enabled":      true,
	"scheduler.tasks.sql_maintenance.interval":     time.Duration(0),
	"scheduler.tasks.sql_maintenance.schedule":     "0 3 * * *",
	"scheduler.tasks.sql_maintenance.run_on_start": false,

	"database.enabled":   true,
	"database.path":      "quizbot.db",
	"database.retention": 30 * 24 * time.Hour,
}

// legacyEnv lists the unprefixed variable names accepted for each key.
var legacyEnv = map[string][]string{
	"telegram.token":      {"TELEGRAM_TOKEN"},
	"telegram.channel_id": {"CHANNEL_ID"},
	"ai.api_key":          {"OPENAI_API_KEY", "GEMINI_API_KEY"},
}

// DefaultModels is the model used for each provider when ai.model is unset.
var DefaultModels = map[string]string{
	"openai": "gpt-3.5-turbo",
	"gemini": "gemini-2.0-flash",
}

// applyProviderDefaults fills in values whose default depends on ai.provider.
func (c *Config) applyProviderDefaults() {
	if c.AI.Model == "" {
		c.AI.Model = DefaultModels[c.AI.Provider]
	}
}

// Task returns the configuration for the named task and whether it exists.
func (c *Config) Task(name string) (TaskConfig, bool) {
	tc, ok := c.Scheduler.Tasks[name]
	return tc, ok
}
