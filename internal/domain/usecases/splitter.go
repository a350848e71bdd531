package usecases

import (
	"regexp"
	"strings"
	"unicode"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// SentenceSplitter packs paragraphs, lines and sentences into chunks of at
// most ChunkSize approximate tokens (whitespace-separated words). Adjacent
// chunks share whole trailing sentences totalling at most Overlap tokens.
type SentenceSplitter struct {
	ChunkSize int
	Overlap   int
}

// NewSentenceSplitter clamps overlap into [0, size).
func NewSentenceSplitter(size, overlap int) *SentenceSplitter {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &SentenceSplitter{ChunkSize: size, Overlap: overlap}
}

// split is one indivisible unit with the separator that precedes it.
type split struct {
	sep    string
	text   string
	tokens int
}

// CountTokens approximates a token count by whitespace-delimited words.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

// Split returns the chunks for text; empty text yields none.
func (s *SentenceSplitter) Split(text string) []string {
	var (
		chunks    []string
		cur       []split
		curTokens int
		fresh     int // splits in cur not yet emitted
	)

	for _, sp := range s.splits(text) {
		if len(cur) > 0 && curTokens+sp.tokens > s.ChunkSize {
			chunks = append(chunks, joinSplits(cur))
			cur = s.overlapTail(cur)
			curTokens = sumTokens(cur)
			for len(cur) > 0 && curTokens+sp.tokens > s.ChunkSize {
				curTokens -= cur[0].tokens
				cur = cur[1:]
			}
			fresh = 0
		}
		cur = append(cur, sp)
		curTokens += sp.tokens
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, joinSplits(cur))
	}
	return chunks
}

// overlapTail keeps the longest run of trailing splits within Overlap.
func (s *SentenceSplitter) overlapTail(cur []split) []split {
	total := 0
	i := len(cur)
	for i > 0 && total+cur[i-1].tokens <= s.Overlap {
		total += cur[i-1].tokens
		i--
	}
	tail := make([]split, len(cur)-i)
	copy(tail, cur[i:])
	return tail
}

func (s *SentenceSplitter) splits(text string) []split {
	var out []split
	for _, para := range paragraphBreak.Split(text, -1) {
		sep := "\n\n"
		for _, line := range strings.Split(para, "\n") {
			for _, sentence := range splitSentences(line) {
				words := strings.Fields(sentence)
				if len(words) == 0 {
					continue
				}
				if len(words) <= s.ChunkSize {
					out = append(out, split{sep: sep, text: sentence, tokens: len(words)})
					sep = " "
					continue
				}
				// Hard-split sentences longer than a chunk.
				for start := 0; start < len(words); start += s.ChunkSize {
					end := start + s.ChunkSize
					if end > len(words) {
						end = len(words)
					}
					out = append(out, split{sep: sep, text: strings.Join(words[start:end], " "), tokens: end - start})
					sep = " "
				}
			}
			if sep == " " {
				sep = "\n"
			}
		}
	}
	return out
}

// splitSentences breaks a line after . ! or ? (plus closing quotes or
// brackets) when whitespace follows.
func splitSentences(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	runes := []rune(line)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(`"')]»“”’`, runes[j]) {
			j++
		}
		if j < len(runes) && unicode.IsSpace(runes[j]) {
			out = append(out, strings.TrimSpace(string(runes[start:j])))
			start = j
			i = j
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func joinSplits(splits []split) string {
	var sb strings.Builder
	for i, sp := range splits {
		if i > 0 {
			sb.WriteString(sp.sep)
		}
		sb.WriteString(sp.text)
	}
	return sb.String()
}

func sumTokens(splits []split) int {
	n := 0
	for _, sp := range splits {
		n += sp.tokens
	}
	return n
}
