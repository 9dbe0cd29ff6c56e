package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"tg-monitor-bot/internal/domain"
)

// Mode определяет процесс, для которого проверяется конфигурация.
type Mode string

const (
	// ModeWatcher соответствует долгоживущему монитору.
	ModeWatcher Mode = "watcher"
	// ModePurge соответствует одноразовой очистке истории.
	ModePurge Mode = "purge"
)

// Способы доставки уведомлений.
const (
	NotifierBot    = "bot"
	NotifierClient = "client"
)

// Хранилища дедупликации.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Debug  bool   `envconfig:"DEBUG" default:"false"`

	Telegram struct {
		APIID    int    `envconfig:"TG_API_ID"`
		APIHash  string `envconfig:"TG_API_HASH"`
		Token    string `envconfig:"TG_BOT_TOKEN"`
		Notifier string `envconfig:"NOTIFIER" default:"bot"`
	} `envconfig:""`

	MTProto struct {
		SessionFile   string  `envconfig:"MTPROTO_SESSION_FILE"`
		SessionString string  `envconfig:"MTPROTO_SESSION_STRING"`
		GlobalRPS     float64 `envconfig:"MTPROTO_GLOBAL_RPS" default:"20"`
	} `envconfig:""`

	Monitor struct {
		MonitorChats    []string `envconfig:"MONITOR_CHATS"`
		NotMonitorChats []string `envconfig:"NOT_MONITOR_CHATS"`
		Keywords        []string `envconfig:"KEYWORDS"`
		TargetUsers     []string `envconfig:"TARGET_USERS"`
		UserKeywordsRaw string   `envconfig:"USER_KEYWORDS"`
		LotteryKeywords []string `envconfig:"LOTTERY_KEYWORDS" default:"抽奖,开奖,红包"`
		NotifyChannels  []string `envconfig:"NOTIFY_CHANNELS"`
		RetractKeywords []string `envconfig:"RETRACT_KEYWORDS"`
		RulesFile       string   `envconfig:"RULES_FILE"`

		// UserKeywords собирается из USER_KEYWORDS и RULES_FILE.
		UserKeywords map[string][]string `ignored:"true"`
	} `envconfig:""`

	Dedup struct {
		WindowMinutes int           `envconfig:"DEDUP_WINDOW_MINUTES" default:"60"`
		SweepInterval time.Duration `envconfig:"DEDUP_SWEEP_INTERVAL" default:"60s"`
		Backend       string        `envconfig:"DEDUP_BACKEND" default:"memory"`
		RedisAddr     string        `envconfig:"REDIS_ADDR"`
	} `envconfig:""`

	Cleanup struct {
		AutoDeleteMinutes int           `envconfig:"AUTO_DELETE_MINUTES" default:"0"`
		SweepInterval     time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"60s"`
		Concurrency       int           `envconfig:"DELETE_CONCURRENCY" default:"3"`
		BatchSize         int           `envconfig:"DELETE_BATCH_SIZE" default:"100"`
		ChunkDelay        time.Duration `envconfig:"DELETE_CHUNK_DELAY" default:"1s"`
		ItemDelay         time.Duration `envconfig:"DELETE_ITEM_DELAY" default:"200ms"`
		RecentLimit       int           `envconfig:"RECENT_LIMIT" default:"200"`
		RecencyHorizon    time.Duration `envconfig:"RECENCY_HORIZON" default:"10m"`
		HistoryMaxPages   int           `envconfig:"HISTORY_MAX_PAGES" default:"5"`
		HistoryPageSize   int           `envconfig:"HISTORY_PAGE_SIZE" default:"100"`
		PurgeChatDelay    time.Duration `envconfig:"PURGE_CHAT_DELAY" default:"2s"`
		TransientRetries  int           `envconfig:"TRANSIENT_RETRIES" default:"3"`
	} `envconfig:""`

	MetricsAddr   string        `envconfig:"METRICS_ADDR" default:":9090"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
}

// RulesFile описывает необязательный YAML-файл правил. Списки
// дополняют значения из окружения.
type RulesFile struct {
	MonitorChats    []string            `yaml:"monitor_chats"`
	NotMonitorChats []string            `yaml:"not_monitor_chats"`
	Keywords        []string            `yaml:"keywords"`
	TargetUsers     []string            `yaml:"target_users"`
	UserKeywords    map[string][]string `yaml:"user_keywords"`
	LotteryKeywords []string            `yaml:"lottery_keywords"`
	RetractKeywords []string            `yaml:"retract_keywords"`
}

// Load загружает .env (если есть), окружение и файл правил.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("config: .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: %w", err)
	}
	userKeywords, err := ParseUserKeywords(cfg.Monitor.UserKeywordsRaw)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Monitor.UserKeywords = userKeywords
	if cfg.Monitor.RulesFile != "" {
		rules, err := ReadRulesFile(cfg.Monitor.RulesFile)
		if err != nil {
			return AppConfig{}, err
		}
		cfg.applyRules(rules)
	}
	cfg.normalize()
	return cfg, nil
}

// ReadRulesFile читает YAML-файл правил.
func ReadRulesFile(path string) (RulesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RulesFile{}, fmt.Errorf("config: чтение %s: %w", path, err)
	}
	var rules RulesFile
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("config: разбор %s: %w", path, err)
	}
	return rules, nil
}

func (c *AppConfig) applyRules(r RulesFile) {
	m := &c.Monitor
	m.MonitorChats = append(m.MonitorChats, r.MonitorChats...)
	m.NotMonitorChats = append(m.NotMonitorChats, r.NotMonitorChats...)
	m.Keywords = append(m.Keywords, r.Keywords...)
	m.TargetUsers = append(m.TargetUsers, r.TargetUsers...)
	m.LotteryKeywords = append(m.LotteryKeywords, r.LotteryKeywords...)
	m.RetractKeywords = append(m.RetractKeywords, r.RetractKeywords...)
	if m.UserKeywords == nil {
		m.UserKeywords = make(map[string][]string, len(r.UserKeywords))
	}
	for id, words := range r.UserKeywords {
		m.UserKeywords[id] = append(m.UserKeywords[id], words...)
	}
}

func (c *AppConfig) normalize() {
	m := &c.Monitor
	m.MonitorChats = cleanList(m.MonitorChats, false)
	m.NotMonitorChats = cleanList(m.NotMonitorChats, false)
	m.Keywords = cleanList(m.Keywords, true)
	m.TargetUsers = cleanList(m.TargetUsers, false)
	m.LotteryKeywords = cleanList(m.LotteryKeywords, true)
	m.NotifyChannels = cleanList(m.NotifyChannels, false)
	m.RetractKeywords = cleanTriggers(m.RetractKeywords)
	for id, words := range m.UserKeywords {
		m.UserKeywords[id] = cleanList(words, true)
	}
	c.Telegram.Notifier = strings.ToLower(strings.TrimSpace(c.Telegram.Notifier))
	c.Dedup.Backend = strings.ToLower(strings.TrimSpace(c.Dedup.Backend))
}

// ParseUserKeywords разбирает строку вида "id:kw|kw;id:kw".
func ParseUserKeywords(raw string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, group := range strings.Split(raw, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		id, words, ok := strings.Cut(group, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("config: USER_KEYWORDS: ожидали id:слово|слово, получили %q", group)
		}
		for _, word := range strings.Split(words, "|") {
			if word = strings.TrimSpace(word); word != "" {
				out[id] = append(out[id], word)
			}
		}
	}
	return out, nil
}

// Unescape превращает литеральные "\n" в переводы строк.
func Unescape(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// cleanList обрезает пробелы и убирает пустые элементы. Для ключевых слов
// дополнительно раскрываются экранированные переводы строк.
func cleanList(items []string, unescape bool) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if unescape {
			item = Unescape(item)
		}
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// cleanTriggers раскрывает переводы строк в триггерах отзыва и убирает пустые
// значения. Пробелы и переводы строк по краям сохраняются.
func cleanTriggers(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = Unescape(item)
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// DedupWindow возвращает окно дедупликации.
func (c AppConfig) DedupWindow() time.Duration {
	return time.Duration(c.Dedup.WindowMinutes) * time.Minute
}

// Validate проверяет конфигурацию для выбранного процесса и возвращает все
// найденные ошибки сразу.
func (c AppConfig) Validate(mode Mode) error {
	var errs []error
	if c.Telegram.APIID == 0 {
		errs = append(errs, errors.New("TG_API_ID не задан"))
	}
	if c.Telegram.APIHash == "" {
		errs = append(errs, errors.New("TG_API_HASH не задан"))
	}
	if c.MTProto.SessionFile == "" && c.MTProto.SessionString == "" {
		errs = append(errs, errors.New("нужен MTPROTO_SESSION_FILE или MTPROTO_SESSION_STRING"))
	}
	if c.Cleanup.TransientRetries < 0 {
		errs = append(errs, errors.New("TRANSIENT_RETRIES не может быть отрицательным"))
	}
	if c.Cleanup.BatchSize <= 0 || c.Cleanup.BatchSize > 100 {
		errs = append(errs, fmt.Errorf("DELETE_BATCH_SIZE должен быть в пределах 1..100, получили %d", c.Cleanup.BatchSize))
	}

	if mode == ModeWatcher {
		if len(domain.ParseTargets(c.Monitor.NotifyChannels)) == 0 {
			errs = append(errs, errors.New("NOTIFY_CHANNELS не задан"))
		}
		switch c.Telegram.Notifier {
		case NotifierBot:
			if c.Telegram.Token == "" {
				errs = append(errs, errors.New("NOTIFIER=bot требует TG_BOT_TOKEN"))
			}
		case NotifierClient:
		default:
			errs = append(errs, fmt.Errorf("неизвестный NOTIFIER %q", c.Telegram.Notifier))
		}
		switch c.Dedup.Backend {
		case DedupMemory:
		case DedupRedis:
			if c.Dedup.RedisAddr == "" {
				errs = append(errs, errors.New("DEDUP_BACKEND=redis требует REDIS_ADDR"))
			}
		default:
			errs = append(errs, fmt.Errorf("неизвестный DEDUP_BACKEND %q", c.Dedup.Backend))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}
