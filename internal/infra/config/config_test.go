package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TG_API_ID", "12345")
	t.Setenv("TG_API_HASH", "hash")
	t.Setenv("MTPROTO_SESSION_STRING", "1AAAA")
	t.Setenv("NOTIFY_CHANNELS", "-1001234567890")
	t.Setenv("TG_BOT_TOKEN", "token")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Notifier != NotifierBot || cfg.Dedup.Backend != DedupMemory {
		t.Fatalf("unexpected notifier/backend: %q %q", cfg.Telegram.Notifier, cfg.Dedup.Backend)
	}
	if cfg.DedupWindow() != time.Hour || cfg.Cleanup.Concurrency != 3 || cfg.Cleanup.ItemDelay != 200*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg.Cleanup)
	}
	if !reflect.DeepEqual(cfg.Monitor.LotteryKeywords, []string{"抽奖", "开奖", "红包"}) {
		t.Fatalf("lottery keywords = %v", cfg.Monitor.LotteryKeywords)
	}
	if err := cfg.Validate(ModeWatcher); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadUnescapesKeywordsAndParsesUserKeywords(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RETRACT_KEYWORDS", `已结束\n请勿参与,撤回,,\n结束\n`)
	t.Setenv("USER_KEYWORDS", "111:红包|抽奖; 222:air drop")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"已结束\n请勿参与", "撤回", "\n结束\n"}; !reflect.DeepEqual(cfg.Monitor.RetractKeywords, want) {
		t.Fatalf("retract keywords = %q, want %q", cfg.Monitor.RetractKeywords, want)
	}
	want := map[string][]string{"111": {"红包", "抽奖"}, "222": {"air drop"}}
	if !reflect.DeepEqual(cfg.Monitor.UserKeywords, want) {
		t.Fatalf("user keywords = %v, want %v", cfg.Monitor.UserKeywords, want)
	}
}

func TestParseUserKeywordsRejectsMissingID(t *testing.T) {
	if _, err := ParseUserKeywords("红包"); err == nil {
		t.Fatalf("ожидали ошибку для группы без id")
	}
}

func TestLoadMergesRulesFile(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := "keywords: [airdrop]\nmonitor_chats: [\"-100777\"]\nuser_keywords:\n  \"111\": [giveaway]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("RULES_FILE", path)
	t.Setenv("KEYWORDS", "红包")
	t.Setenv("USER_KEYWORDS", "111:抽奖")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"红包", "airdrop"}; !reflect.DeepEqual(cfg.Monitor.Keywords, want) {
		t.Fatalf("keywords = %v, want %v", cfg.Monitor.Keywords, want)
	}
	if want := []string{"-100777"}; !reflect.DeepEqual(cfg.Monitor.MonitorChats, want) {
		t.Fatalf("monitor chats = %v", cfg.Monitor.MonitorChats)
	}
	if want := []string{"抽奖", "giveaway"}; !reflect.DeepEqual(cfg.Monitor.UserKeywords["111"], want) {
		t.Fatalf("user keywords = %v", cfg.Monitor.UserKeywords["111"])
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	var cfg AppConfig
	cfg.Telegram.Notifier = "smoke"
	cfg.Dedup.Backend = DedupRedis
	cfg.Cleanup.BatchSize = 100

	err := cfg.Validate(ModeWatcher)
	if err == nil {
		t.Fatalf("ожидали ошибку")
	}
	for _, want := range []string{"TG_API_ID", "TG_API_HASH", "MTPROTO_SESSION", "NOTIFY_CHANNELS", "NOTIFIER", "REDIS_ADDR"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("ошибка %q не упоминает %s", err, want)
		}
	}

	cfg.Telegram.APIID = 1
	cfg.Telegram.APIHash = "h"
	cfg.MTProto.SessionFile = "session.json"
	if err := cfg.Validate(ModePurge); err != nil {
		t.Fatalf("purge не требует настроек уведомлений: %v", err)
	}
}

func TestValidateBotNotifierNeedsToken(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TG_BOT_TOKEN", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(ModeWatcher); err == nil || !strings.Contains(err.Error(), "TG_BOT_TOKEN") {
		t.Fatalf("ожидали ошибку про TG_BOT_TOKEN, получили %v", err)
	}
}

func TestValidateNegativeAutoDeleteDisablesExpiry(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Cleanup.AutoDeleteMinutes = -1
	if err := cfg.Validate(ModeWatcher); err != nil {
		t.Fatalf("отрицательный возраст отключает очистку и не является ошибкой: %v", err)
	}
}
