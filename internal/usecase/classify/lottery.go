package classify

import (
	"regexp"
	"strconv"
	"strings"

	"tg-monitor-bot/internal/domain"
)

var (
	prizeLine     = regexp.MustCompile(`^\s*(?:[-•]\s*)?(.+?)(?:\s*[×✕*]|\s+[xX])\s*(\d+)\s*$`)
	quotedKeyword = regexp.MustCompile(`[«「『"“]\s*([^»」』"”]+?)\s*[»」』"”]`)
	autoDrawLine  = regexp.MustCompile(`(?i)(?:满|達到|达到|reach(?:es)?)\s*(\d+)\s*(?:人|participants?)`)
	sendToClaim   = regexp.MustCompile(`(?i)(?:发送|發送|send)\s*[«「『"“]?\s*(.+?)\s*[»」』"”]?\s*(?:领取|領取|to\s+claim)`)
	firstNumber   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

var (
	createdLabels  = []string{"创建时间", "創建時間", "created at", "creation time", "created"}
	creatorLabels  = []string{"创建者", "創建者", "发起人", "发起者", "creator"}
	prizeLabels    = []string{"奖品", "獎品", "prizes", "prize"}
	keywordLabels  = []string{"参与关键词", "參與關鍵詞", "关键词", "口令", "keyword"}
	autoDrawLabels = []string{"开奖人数", "開獎人數", "自动开奖", "auto draw"}
	amountLabels   = []string{"总金额", "總金額", "金额", "total amount", "amount"}
	sharesLabels   = []string{"份数", "份數", "个数", "個數", "shares"}
	redPacketMarks = []string{"红包", "紅包", "red packet", "red envelope"}
)

// ExtractLottery разбирает сообщение о розыгрыше или красном конверте.
// Возвращает nil, если ни одно из ключевых слов не встречается в тексте.
func ExtractLottery(text string, keywords Keywords) *domain.LotteryPayload {
	if len(keywords) == 0 {
		return nil
	}
	if _, ok := keywords.MatchAny(text); !ok {
		return nil
	}

	payload := &domain.LotteryPayload{Kind: domain.PayloadLottery}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		label, value, labeled := splitLabel(line)
		switch {
		case labeled && hasLabel(label, createdLabels):
			payload.CreatedAt = value
		case labeled && hasLabel(label, creatorLabels):
			payload.Creator = value
		case labeled && hasLabel(label, keywordLabels):
			payload.Keyword = unquote(value)
		case labeled && hasLabel(label, autoDrawLabels):
			payload.AutoDrawCount = atoiFirst(value)
		case labeled && hasLabel(label, amountLabels):
			payload.TotalAmount = firstNumber.FindString(value)
		case labeled && hasLabel(label, sharesLabels):
			payload.Shares = atoiFirst(value)
		case labeled && hasLabel(label, prizeLabels):
			if prize, ok := parsePrize(value); ok {
				payload.Prizes = append(payload.Prizes, prize)
			}
		default:
			if prize, ok := parsePrize(line); ok {
				payload.Prizes = append(payload.Prizes, prize)
				continue
			}
			if m := autoDrawLine.FindStringSubmatch(line); m != nil && payload.AutoDrawCount == 0 {
				payload.AutoDrawCount, _ = strconv.Atoi(m[1])
			}
			if payload.Keyword == "" {
				if m := quotedKeyword.FindStringSubmatch(line); m != nil && strings.Contains(line, "参与") {
					payload.Keyword = m[1]
				}
			}
		}
	}

	if isRedPacket(text) {
		payload.Kind = domain.PayloadRedPacket
		if m := sendToClaim.FindStringSubmatch(text); m != nil {
			if kw := unquote(m[1]); kw != "" {
				payload.Keyword = kw
			}
		}
	}
	return payload
}

func splitLabel(line string) (string, string, bool) {
	idx := strings.IndexAny(line, ":：")
	if idx <= 0 {
		return "", "", false
	}
	label := strings.TrimSpace(line[:idx])
	sep := ":"
	if strings.HasPrefix(line[idx:], "：") {
		sep = "："
	}
	value := strings.TrimSpace(line[idx+len(sep):])
	return strings.ToLower(strings.Trim(label, "🎁🎉🧧⏰👤🔑 ")), value, true
}

func hasLabel(label string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(label, c) {
			return true
		}
	}
	return false
}

func parsePrize(s string) (domain.Prize, bool) {
	m := prizeLine.FindStringSubmatch(s)
	if m == nil {
		return domain.Prize{}, false
	}
	count, err := strconv.Atoi(m[2])
	if err != nil || count <= 0 {
		return domain.Prize{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return domain.Prize{}, false
	}
	return domain.Prize{Name: name, Count: count}, true
}

func unquote(s string) string {
	if m := quotedKeyword.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

func atoiFirst(s string) int {
	n, err := strconv.Atoi(firstNumber.FindString(strings.ReplaceAll(s, ",", "")))
	if err != nil {
		return 0
	}
	return n
}

func isRedPacket(text string) bool {
	lower := strings.ToLower(text)
	for _, mark := range redPacketMarks {
		if strings.Contains(lower, mark) {
			return true
		}
	}
	return false
}
