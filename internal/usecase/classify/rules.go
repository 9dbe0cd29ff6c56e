package classify

import (
	"strings"

	"tg-monitor-bot/internal/domain"
)

// RulesConfig содержит сырые списки правил мониторинга из конфигурации.
type RulesConfig struct {
	MonitorChats    []string
	NotMonitorChats []string
	Keywords        []string
	TargetUsers     []string
	UserKeywords    map[string][]string
	LotteryKeywords []string
	NotifyChannels  []string
}

// Rules хранит неизменяемый набор правил, собранный один раз при старте.
type Rules struct {
	allow          map[string]struct{}
	deny           map[string]struct{}
	global         Keywords
	perUser        map[string]Keywords
	targetUsers    map[string]struct{}
	lottery        Keywords
	notifyChannels map[string]struct{}
}

// NewRules нормализует идентификаторы и компилирует ключевые слова.
func NewRules(cfg RulesConfig) Rules {
	perUser := make(map[string]Keywords, len(cfg.UserKeywords))
	for rawID, words := range cfg.UserKeywords {
		id := domain.NormalizeID(rawID)
		if id == "" {
			continue
		}
		compiled := CompileKeywords(words)
		if len(compiled) == 0 {
			continue
		}
		perUser[id] = append(perUser[id], compiled...)
	}
	return Rules{
		allow:          domain.NormalizeIDs(cfg.MonitorChats),
		deny:           domain.NormalizeIDs(cfg.NotMonitorChats),
		global:         CompileKeywords(cfg.Keywords),
		perUser:        perUser,
		targetUsers:    domain.NormalizeIDs(cfg.TargetUsers),
		lottery:        CompileKeywords(cfg.LotteryKeywords),
		notifyChannels: domain.NormalizeIDs(cfg.NotifyChannels),
	}
}

// Denied сообщает, исключён ли чат из мониторинга.
func (r Rules) Denied(chatID string) bool { return contains(r.deny, chatID) }

// NotifyChannel сообщает, является ли чат каналом уведомлений.
func (r Rules) NotifyChannel(chatID string) bool { return contains(r.notifyChannels, chatID) }

// Monitored применяет allow-list: пустой список означает «все чаты».
// В fallbacks передаются прежние формы id того же чата (например, до миграции группы).
func (r Rules) Monitored(chatID string, fallbacks ...string) bool {
	if len(r.allow) == 0 {
		return true
	}
	if contains(r.allow, chatID) {
		return true
	}
	for _, id := range fallbacks {
		if contains(r.allow, id) {
			return true
		}
	}
	return false
}

// MonitorAll сообщает, что ключевые слова не заданы и пропускается каждое сообщение.
func (r Rules) MonitorAll() bool {
	return len(r.global) == 0 && len(r.perUser) == 0
}

// MatchKeywords применяет правила ключевых слов к автору и тексту.
func (r Rules) MatchKeywords(senderID, text string) (string, bool) {
	if r.MonitorAll() {
		return "", true
	}
	userWords := r.perUser[senderID]
	if contains(r.targetUsers, senderID) || len(userWords) > 0 {
		if len(userWords) == 0 {
			return "", true
		}
		if kw, ok := userWords.MatchAny(text); ok {
			return kw, true
		}
	}
	return r.global.MatchAny(text)
}

// Lottery возвращает ключевые слова, включающие разбор розыгрышей.
func (r Rules) Lottery() Keywords { return r.lottery }

// Excluded возвращает нормализованный deny-list для очистки истории.
func (r Rules) Excluded() map[string]struct{} {
	out := make(map[string]struct{}, len(r.deny))
	for id := range r.deny {
		out[id] = struct{}{}
	}
	return out
}

func contains(set map[string]struct{}, id string) bool {
	if id == "" {
		return false
	}
	_, ok := set[strings.TrimSpace(id)]
	return ok
}
