package telegram

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is the maximum visible message length accepted by Telegram, in runes.
const MessageLimit = 4096

// SplitMessage splits HTML text into parts that fit MessageLimit.
func SplitMessage(text string) []string {
	return SplitHTML(text, MessageLimit)
}

// SplitHTML breaks HTML-formatted text into parts of at most limit visible runes.
// Tags do not count towards the limit and an entity such as &amp; counts as one
// rune. It prefers newline boundaries, never cuts inside a tag or an entity, and
// closes tags that are open at a cut, reopening them at the start of the next part.
// Non-positive limits fall back to MessageLimit.
func SplitHTML(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	tokens := tokenize(trimmed)
	var (
		parts []string
		open  tagStack
	)
	for start := 0; start < len(tokens); {
		stack := open.clone()
		size := 0
		end, lastNL := start, -1
		var nlStack tagStack
		for end < len(tokens) {
			tok := tokens[end]
			if size+tok.width > limit && end > start {
				break
			}
			size += tok.width
			stack = stack.apply(tok)
			end++
			if tok.newline {
				lastNL, nlStack = end, stack.clone()
			}
		}
		if end < len(tokens) && lastNL > start {
			end, stack = lastNL, nlStack
		}

		if chunk := render(open, tokens[start:end], stack); chunk != "" {
			parts = append(parts, chunk)
		}

		open = stack
		start = end
		for start < len(tokens) && tokens[start].newline {
			start++
		}
	}
	return parts
}

type token struct {
	text    string
	width   int
	name    string
	opening bool
	closing bool
	newline bool
}

type openTag struct {
	name string
	raw  string
}

type tagStack []openTag

func (s tagStack) clone() tagStack {
	return append(tagStack(nil), s...)
}

// apply returns the stack after tok. The receiver may be modified.
func (s tagStack) apply(tok token) tagStack {
	switch {
	case tok.opening:
		return append(s, openTag{name: tok.name, raw: tok.text})
	case tok.closing:
		for i := len(s) - 1; i >= 0; i-- {
			if s[i].name == tok.name {
				return append(s[:i:i], s[i+1:]...)
			}
		}
	}
	return s
}

// render assembles a part: reopened tags, the tokens without trailing newlines,
// and closing tags for everything still open.
func render(reopen tagStack, tokens []token, open tagStack) string {
	for len(tokens) > 0 && tokens[len(tokens)-1].newline {
		tokens = tokens[:len(tokens)-1]
	}
	visible := false
	var b strings.Builder
	for _, t := range reopen {
		b.WriteString(t.raw)
	}
	for _, tok := range tokens {
		if tok.width > 0 {
			visible = true
		}
		b.WriteString(tok.text)
	}
	if !visible {
		return ""
	}
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i].name + ">")
	}
	return b.String()
}

func tokenize(s string) []token {
	var tokens []token
	for i := 0; i < len(s); {
		switch s[i] {
		case '<':
			if end := strings.IndexByte(s[i:], '>'); end > 0 {
				raw := s[i : i+end+1]
				tokens = append(tokens, tagToken(raw))
				i += end + 1
				continue
			}
		case '&':
			if end := strings.IndexByte(s[i:], ';'); end > 1 && end <= 10 && !strings.ContainsAny(s[i+1:i+end], " \n<&") {
				tokens = append(tokens, token{text: s[i : i+end+1], width: 1})
				i += end + 1
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		tokens = append(tokens, token{text: s[i : i+size], width: 1, newline: r == '\n'})
		i += size
	}
	return tokens
}

func tagToken(raw string) token {
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
	tok := token{text: raw}
	if strings.HasPrefix(body, "/") {
		tok.closing = true
		body = body[1:]
	} else if !strings.HasSuffix(body, "/") {
		tok.opening = true
	}
	if i := strings.IndexAny(body, " \t\n/"); i >= 0 {
		body = body[:i]
	}
	tok.name = strings.ToLower(body)
	return tok
}
