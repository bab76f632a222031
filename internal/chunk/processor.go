package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Processor splits Document text according to the paragraph-first greedy
// cascade: paragraph -> sentence -> word -> hard split, falling through to
// the next level only when a unit does not fit within Size minus Overlap,
// the room left in a passage after the carried overlap prefix.
type Processor struct {
	settings Settings
}

// NewProcessor validates settings and returns a ready Processor.
func NewProcessor(settings Settings) (*Processor, error) {
	if settings.Size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return &Processor{settings: settings}, nil
}

var blankLinePattern = regexp.MustCompile(`\r\n\s*\r\n|\n[ \t]*\n+`)
var sentenceEndPattern = regexp.MustCompile(`[.!?]+(\s+|$)`)

// Process splits a single document's text into an ordered sequence of
// Chunks. Every Chunk's text length is in [1, Size]; consecutive chunks
// share a prefix/suffix of length min(Overlap, len(previous chunk)).
func (p *Processor) Process(doc Document) ([]Chunk, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil, nil
	}
	maxBody := p.settings.Size - p.settings.Overlap
	var bodies []string
	for _, para := range splitParagraphs(text) {
		bodies = append(bodies, p.splitParagraph(para, maxBody)...)
	}
	return stitchOverlap(bodies, p.settings.Overlap), nil
}

// splitParagraphs breaks text on blank-line boundaries, trimming each
// resulting paragraph of surrounding whitespace.
func splitParagraphs(text string) []string {
	raw := blankLinePattern.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitParagraph reduces a single paragraph to one or more body segments,
// each no longer than maxBody runes, falling through sentence -> word ->
// hard-split boundaries only as needed.
func (p *Processor) splitParagraph(para string, maxBody int) []string {
	if utf8.RuneCountInString(para) <= maxBody {
		return []string{para}
	}
	sentences := splitSentences(para)
	if len(sentences) <= 1 {
		return splitWords(para, maxBody)
	}
	return packGreedy(sentences, "", maxBody, func(s string) []string {
		return splitWords(s, maxBody)
	})
}

func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEndPattern.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	return sentences
}

func splitWords(text string, maxBody int) []string {
	if utf8.RuneCountInString(text) <= maxBody {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) <= 1 {
		return hardSplit(text, maxBody)
	}
	return packGreedy(words, " ", maxBody, func(w string) []string {
		return hardSplit(w, maxBody)
	})
}

func hardSplit(text string, maxBody int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(runes); i += maxBody {
		end := i + maxBody
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// packGreedy concatenates units (joined by sep) into groups no longer than
// maxLen runes. A unit that alone exceeds maxLen is flushed through
// fallback instead of being packed.
func packGreedy(units []string, sep string, maxLen int, fallback func(string) []string) []string {
	var out []string
	var cur strings.Builder
	curLen := 0
	sepLen := utf8.RuneCountInString(sep)
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, u := range units {
		uLen := utf8.RuneCountInString(u)
		if uLen > maxLen {
			flush()
			out = append(out, fallback(u)...)
			continue
		}
		extra := uLen
		if curLen > 0 {
			extra += sepLen
		}
		if curLen > 0 && curLen+extra > maxLen {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(u)
		curLen += uLen
	}
	flush()
	return out
}

// stitchOverlap prepends the trailing min(overlap, len(prev)) runes of each
// passage to the next, producing the final chunk sequence.
func stitchOverlap(bodies []string, overlap int) []Chunk {
	if len(bodies) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, len(bodies))
	var prev string
	for i, body := range bodies {
		text := body
		if i > 0 && overlap > 0 {
			prevRunes := []rune(prev)
			n := overlap
			if n > len(prevRunes) {
				n = len(prevRunes)
			}
			text = string(prevRunes[len(prevRunes)-n:]) + body
		}
		chunks = append(chunks, Chunk{Index: i, Text: text})
		prev = text
	}
	return chunks
}
