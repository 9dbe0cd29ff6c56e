package domain

import (
	"strconv"
	"strings"
)

// channelMarker помечает идентификаторы каналов и супергрупп в Bot API.
const channelMarker = "100"

// NormalizeID приводит идентификатор чата или пользователя к единому виду:
// только цифры, без знака и без префикса -100. Для нераспознанного ввода
// возвращает пустую строку.
//
//	-1001234567890 → 1234567890
//	-4985438208    → 4985438208
//	"  42 "        → 42
func NormalizeID(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return normalizeString(v)
	case int:
		return normalizeString(strconv.FormatInt(int64(v), 10))
	case int32:
		return normalizeString(strconv.FormatInt(int64(v), 10))
	case int64:
		return normalizeString(strconv.FormatInt(v, 10))
	case uint:
		return normalizeString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		return normalizeString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return normalizeString(strconv.FormatUint(v, 10))
	default:
		return ""
	}
}

func normalizeString(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
		// Маркер снимаем только у знаковых id: без этого повторная нормализация
		// "1005" отрезала бы его начало.
		if strings.HasPrefix(s, channelMarker) && hasDigit(s[len(channelMarker):]) {
			s = s[len(channelMarker):]
		}
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// NormalizeIDs нормализует список, пропуская пустые значения.
func NormalizeIDs(raw []string) map[string]struct{} {
	out := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if id := NormalizeID(item); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// ParseTarget разбирает id канала уведомлений из конфига.
func ParseTarget(raw string) (Target, bool) {
	trimmed := strings.TrimSpace(raw)
	normalized := NormalizeID(trimmed)
	if normalized == "" {
		return Target{}, false
	}
	botID, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		botID = 0
	}
	return Target{Raw: trimmed, BotChatID: botID, Normalized: normalized}, true
}

// ParseTargets разбирает список каналов уведомлений, убирая дубли.
func ParseTargets(raw []string) []Target {
	seen := make(map[string]struct{}, len(raw))
	out := make([]Target, 0, len(raw))
	for _, item := range raw {
		target, ok := ParseTarget(item)
		if !ok {
			continue
		}
		if _, dup := seen[target.Normalized]; dup {
			continue
		}
		seen[target.Normalized] = struct{}{}
		out = append(out, target)
	}
	return out
}
