package utils

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// SplitText splits text into chunks of at most chunkSize characters with up to
// overlap characters carried between neighbours. It prefers to break on the
// coarsest separator that appears in the text and only falls back to finer
// ones for pieces that are still too long.
func SplitText(text string, chunkSize int, overlap int) []string {
	return SplitTextWith(text, chunkSize, overlap, DefaultSeparators)
}

func SplitTextWith(text string, chunkSize int, overlap int, separators []string) []string {
	if chunkSize <= 0 {
		return []string{text}
	}
	if overlap >= chunkSize || overlap < 0 {
		overlap = 0
	}
	s := splitter{size: chunkSize, overlap: overlap}
	return s.split(text, separators)
}

type splitter struct {
	size    int
	overlap int
}

func (s splitter) split(text string, separators []string) []string {
	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	pieces := splitKeepingSeparator(text, separator)

	var out []string
	var good []string
	for _, p := range pieces {
		if runeLen(p) < s.size {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge packs small pieces into chunks, sliding a window so consecutive
// chunks share up to overlap characters.
func (s splitter) merge(pieces []string) []string {
	var docs []string
	var current []string
	total := 0

	for _, p := range pieces {
		l := runeLen(p)
		if total+l > s.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (total+l > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepingSeparator attaches each separator to the start of the piece that follows it.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
