// Package config загружает конфигурацию сервиса из переменных окружения.
// Использует envconfig для парсинга переменных окружения в поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config содержит все настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Storage ---
	// memory — только для разработки: данные пропадают при рестарте.
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"coins.db"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"coins"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"coins"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Reward tables ---
	// Пусто — используются встроенные таблицы.
	RewardTablesPath string `envconfig:"REWARD_TABLES_PATH"`

	// --- Casino ---
	CasinoMinBet              int64   `envconfig:"CASINO_MIN_BET" default:"1"`
	CasinoMaxBet              int64   `envconfig:"CASINO_MAX_BET" default:"1000"`
	CasinoJackpotMultiplier   int64   `envconfig:"CASINO_JACKPOT_MULTIPLIER" default:"10"`
	CasinoDiagonalBonus       int64   `envconfig:"CASINO_DIAGONAL_BONUS" default:"1"`
	CasinoMaxPayoutMultiplier int64   `envconfig:"CASINO_MAX_PAYOUT_MULTIPLIER" default:"1000"`
	CasinoDiagonalShare       float64 `envconfig:"CASINO_DIAGONAL_SHARE" default:"0.4"`

	// --- Wheel ---
	WheelPointerOffset float64 `envconfig:"WHEEL_POINTER_OFFSET" default:"90"`
	WheelMinRotations  int     `envconfig:"WHEEL_MIN_ROTATIONS" default:"8"`
	WheelMaxRotations  int     `envconfig:"WHEEL_MAX_ROTATIONS" default:"12"`

	// --- Perks ---
	PerkProtectionKey string `envconfig:"PERK_PROTECTION_KEY" default:"lucky_charm"`
	// Формат: "golden_avatar:10,vip_frame:5" (процент к выигрышу)
	PerkPayoutBoostsRaw string           `envconfig:"PERK_PAYOUT_BOOSTS" default:"golden_avatar:10"`
	PerkPayoutBoosts    map[string]int64 `ignored:"true"`

	// --- Earning ---
	VoteReward     int64 `envconfig:"VOTE_REWARD" default:"5"`
	VoteDailyLimit int   `envconfig:"VOTE_DAILY_LIMIT" default:"10"`

	// --- Admin ---
	// Argon2id-хеш админ-токена, генерируется scripts/generate_hash.go
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`

	// --- Telegram ---
	TelegramBotToken        string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	BotAllowedChatIDsRaw    string  `envconfig:"BOT_ALLOWED_CHAT_IDS"`
	BotAllowedChatIDs       []int64 `ignored:"true"`
	BotMaxInflight          int     `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int     `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Jobs ---
	ReconcileSchedule string `envconfig:"RECONCILE_SCHEDULE" default:"*/5 * * * *"`
	AuditSchedule     string `envconfig:"AUDIT_SCHEDULE" default:"0 3 * * *"`
	ReconcileBatch    int    `envconfig:"RECONCILE_BATCH" default:"100"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureCasinoEnabled bool `envconfig:"FEATURE_CASINO_ENABLED" default:"true"`
	FeatureBotEnabled    bool `envconfig:"FEATURE_BOT_ENABLED" default:"false"`
	FeatureVotingEnabled bool `envconfig:"FEATURE_VOTING_ENABLED" default:"true"`
	FeatureDailyEnabled  bool `envconfig:"FEATURE_DAILY_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory, StoragePostgres, StorageSQLite:
	default:
		return fmt.Errorf("STORAGE_DRIVER должен быть memory, postgres или sqlite, получено %q", c.StorageDriver)
	}
	if c.StorageDriver == StorageSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH не задан")
	}
	if c.StorageDriver == StoragePostgres && (c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.CasinoMinBet <= 0 || c.CasinoMaxBet < c.CasinoMinBet {
		return fmt.Errorf("некорректные CASINO_MIN_BET/CASINO_MAX_BET")
	}
	if c.CasinoJackpotMultiplier <= 0 || c.CasinoMaxPayoutMultiplier <= 0 {
		return fmt.Errorf("множители казино должны быть > 0")
	}
	if c.CasinoDiagonalShare < 0 || c.CasinoDiagonalShare > 1 {
		return fmt.Errorf("CASINO_DIAGONAL_SHARE должен быть в диапазоне [0, 1]")
	}
	if c.WheelMinRotations < 0 || c.WheelMaxRotations < c.WheelMinRotations {
		return fmt.Errorf("некорректные WHEEL_MIN_ROTATIONS/WHEEL_MAX_ROTATIONS")
	}
	if c.VoteReward <= 0 || c.VoteDailyLimit <= 0 {
		return fmt.Errorf("VOTE_REWARD и VOTE_DAILY_LIMIT должны быть > 0")
	}
	if c.FeatureBotEnabled {
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN обязателен при FEATURE_BOT_ENABLED")
		}
		if c.BotMaxInflight <= 0 {
			return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
		}
		if c.BotUpdateTimeoutSeconds <= 0 {
			return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
		}
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
// Файл .env (если есть) подгружается заранее, но не перетирает уже заданные переменные.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		// Отсутствие .env — не ошибка: в Docker переменные приходят из окружения.
		_ = godotenv.Load(envFiles...)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.BotAllowedChatIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("BOT_ALLOWED_CHAT_IDS parse: %w", err)
	}
	cfg.BotAllowedChatIDs = ids

	boosts, err := parseBoosts(cfg.PerkPayoutBoostsRaw)
	if err != nil {
		return nil, fmt.Errorf("PERK_PAYOUT_BOOSTS parse: %w", err)
	}
	cfg.PerkPayoutBoosts = boosts

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseBoosts разбирает "key:percent,key2:percent".
func parseBoosts(s string) (map[string]int64, error) {
	out := make(map[string]int64)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("bad boost %q: want key:percent", part)
		}
		percent, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || percent < 0 {
			return nil, fmt.Errorf("bad boost percent %q", value)
		}
		out[strings.TrimSpace(key)] = percent
	}
	return out, nil
}
