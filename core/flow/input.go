package flow

import (
	"strings"
	"unicode"
)

// Input is one inbound user turn: free text, or a button/list selection
// whose Text carries the option title.
type Input struct {
	Text        string
	SelectionID string
}

// normalized is Input prepared for matching.
type normalized struct {
	raw    string // trimmed, original case
	text   string // lower case, "?" removed, trimmed
	id     string // lower-cased selection id
	tokens []string
}

func normalize(in Input) normalized {
	raw := strings.TrimSpace(in.Text)
	text := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(raw), "?", ""))
	id := strings.ToLower(strings.TrimSpace(in.SelectionID))
	tokens := words(text)
	tokens = append(tokens, words(id)...)
	return normalized{raw: raw, text: text, id: id, tokens: tokens}
}

// is reports an exact match of the text or the selection id.
func (n normalized) is(word string) bool {
	return n.text == word || (n.id != "" && n.id == word)
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords is a keyword set. A plain keyword matches a whole word, a
// trailing "*" matches a word prefix and a keyword with spaces matches the phrase.
type Keywords []string

func (k Keywords) match(n normalized) bool {
	if len(n.tokens) == 0 {
		return false
	}
	joined := " " + strings.Join(n.tokens, " ") + " "
	for _, kw := range k {
		kw = strings.ToLower(strings.TrimSpace(kw))
		switch {
		case kw == "":
			continue
		case strings.HasSuffix(kw, "*"):
			prefix := strings.TrimSuffix(kw, "*")
			for _, tok := range n.tokens {
				if strings.HasPrefix(tok, prefix) {
					return true
				}
			}
		case strings.Contains(kw, " "):
			if strings.Contains(joined, " "+strings.Join(words(kw), " ")+" ") {
				return true
			}
		default:
			for _, tok := range n.tokens {
				if tok == kw {
					return true
				}
			}
		}
	}
	return false
}
