package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

type Config struct {
	MinChunkSize int
	MaxChunkSize int
	OverlapSize  int
	MinWordCount int
}

func DefaultConfig() Config {
	return Config{
		MinChunkSize: 500,
		MaxChunkSize: 800,
		OverlapSize:  100,
		MinWordCount: 20,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.MinChunkSize <= 0 {
		out.MinChunkSize = def.MinChunkSize
	}
	if out.MaxChunkSize <= out.MinChunkSize {
		out.MaxChunkSize = out.MinChunkSize + def.MaxChunkSize - def.MinChunkSize
	}
	if out.OverlapSize < 0 {
		out.OverlapSize = 0
	}
	if out.OverlapSize >= out.MinChunkSize {
		out.OverlapSize = out.MinChunkSize / 4
	}
	if out.MinWordCount <= 0 {
		out.MinWordCount = def.MinWordCount
	}
	return out
}

// Chunker splits normalized document text into overlapping, quality-filtered
// chunks. It holds no mutable state and is safe for concurrent use.
type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.normalize()}
}

func (c *Chunker) Chunk(text, fileID, filename string) []domain.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if len(trimmed) <= c.cfg.MinChunkSize {
		return c.finalize([]rawChunk{{text: trimmed}}, fileID, filename)
	}

	b := &builder{cfg: c.cfg}
	for i, paragraph := range splitParagraphs(trimmed) {
		b.paragraph = i
		if len(paragraph) > c.cfg.MaxChunkSize {
			b.addOversizedParagraph(paragraph)
			continue
		}
		b.add(paragraph, "\n\n")
	}
	return c.finalize(b.finish(), fileID, filename)
}

// finalize applies the density filter and reassigns indices densely from 0
// in emission order.
func (c *Chunker) finalize(raw []rawChunk, fileID, filename string) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(raw))
	for _, rc := range raw {
		if !hasGoodInformationDensity(rc.text, c.cfg.MinWordCount) {
			continue
		}
		out = append(out, domain.Chunk{
			Text:           rc.text,
			Index:          len(out),
			CharCount:      len(rc.text),
			WordCount:      len(strings.Fields(rc.text)),
			FileID:         fileID,
			Filename:       filename,
			StartParagraph: rc.startParagraph,
			EndParagraph:   rc.endParagraph,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type rawChunk struct {
	text           string
	startParagraph int
	endParagraph   int
}

// builder accumulates paragraph/sentence/slice units greedily and emits a
// chunk when the next unit would overflow MaxChunkSize, seeding the next
// buffer with a boundary-trimmed overlap tail.
type builder struct {
	cfg      Config
	out      []rawChunk
	buf      strings.Builder
	bufStart int
	// paragraph is the index of the paragraph currently being consumed.
	paragraph int
}

func (b *builder) add(unit, sep string) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return
	}
	if b.buf.Len() == 0 {
		b.bufStart = b.paragraph
		b.buf.WriteString(unit)
		return
	}
	if b.buf.Len()+len(sep)+len(unit) <= b.cfg.MaxChunkSize {
		b.buf.WriteString(sep)
		b.buf.WriteString(unit)
		return
	}

	// Overflow with an underfull buffer must not emit: every non-final
	// chunk keeps MinChunkSize as its floor. Refine the unit to sentence
	// granularity; a single sentence gets sliced so the buffer lands
	// between the floor and the ceiling before the split.
	if b.buf.Len() < b.cfg.MinChunkSize {
		if sentences := splitSentences(unit); len(sentences) > 1 {
			for _, s := range sentences {
				b.add(s, " ")
			}
			return
		}
		room := b.cfg.MaxChunkSize - b.buf.Len() - len(sep)
		need := b.cfg.MinChunkSize - b.buf.Len()
		if need < 1 {
			need = 1
		}
		cut := sliceBoundary(unit, room, need)
		b.buf.WriteString(sep)
		b.buf.WriteString(strings.TrimSpace(unit[:cut]))
		b.emit()
		b.add(strings.TrimSpace(unit[cut:]), " ")
		return
	}

	b.emit()

	// The overlap seed plus a near-max unit can still overflow; in that
	// case the unit starts a fresh chunk without overlap.
	if b.buf.Len() > 0 && b.buf.Len()+1+len(unit) > b.cfg.MaxChunkSize {
		b.buf.Reset()
	}
	if b.buf.Len() == 0 {
		b.bufStart = b.paragraph
		b.buf.WriteString(unit)
		return
	}
	b.buf.WriteString(" ")
	b.buf.WriteString(unit)
}

// addOversizedParagraph falls back to sentence-level accumulation, and to
// fixed-width slicing for a sentence that alone exceeds MaxChunkSize.
func (b *builder) addOversizedParagraph(paragraph string) {
	for _, sentence := range splitSentences(paragraph) {
		if len(sentence) > b.cfg.MaxChunkSize {
			b.addSlices(sentence)
			continue
		}
		b.add(sentence, " ")
	}
}

// addSlices cuts text into MaxChunkSize windows, backing each cut off to the
// nearest preceding sentence boundary, or word boundary, no closer than
// MinChunkSize into the window.
func (b *builder) addSlices(text string) {
	for len(text) > b.cfg.MaxChunkSize {
		cut := sliceBoundary(text, b.cfg.MaxChunkSize, b.cfg.MinChunkSize)
		b.add(text[:cut], " ")
		text = strings.TrimSpace(text[cut:])
	}
	b.add(text, " ")
}

func (b *builder) emit() {
	text := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	if text == "" {
		return
	}
	b.out = append(b.out, rawChunk{
		text:           text,
		startParagraph: b.bufStart,
		endParagraph:   b.paragraph,
	})
	if tail := overlapTail(text, b.cfg.OverlapSize); tail != "" {
		b.bufStart = b.paragraph
		b.buf.WriteString(tail)
	}
}

// finish handles the trailing remainder: an undersized remainder merges into
// the previous chunk instead of becoming a tiny final chunk.
func (b *builder) finish() []rawChunk {
	remainder := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	if remainder == "" {
		return b.out
	}
	if len(b.out) > 0 {
		last := &b.out[len(b.out)-1]
		// A remainder that is nothing but the overlap seed duplicates the
		// previous chunk's tail.
		if strings.HasSuffix(last.text, remainder) {
			return b.out
		}
		if len(remainder) < b.cfg.MinChunkSize/2 {
			last.text = last.text + "\n\n" + remainder
			last.endParagraph = b.paragraph
			return b.out
		}
	}
	b.out = append(b.out, rawChunk{
		text:           remainder,
		startParagraph: b.bufStart,
		endParagraph:   b.paragraph,
	})
	return b.out
}

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

func splitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	out := make([]string, 0, 16)
	start := 0
	for i := 0; i < len(text); i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}
		j := i
		for j+1 < len(text) && isSentenceEnd(text[j+1]) {
			j++
		}
		if j+1 >= len(text) || isSpace(text[j+1]) {
			if s := strings.TrimSpace(text[start : j+1]); s != "" {
				out = append(out, s)
			}
			start = j + 1
		}
		i = j
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// sliceBoundary picks the cut position for a fixed-width slice of width max,
// preferring a sentence boundary, then a word boundary, each no closer than
// min into the slice. Falls back to a hard cut aligned to a rune start.
func sliceBoundary(text string, max, min int) int {
	window := text[:max]
	for i := max - 1; i >= min; i-- {
		if isSentenceEnd(window[i]) && (i+1 >= max || isSpace(window[i+1])) {
			return i + 1
		}
	}
	for i := max - 1; i >= min; i-- {
		if isSpace(window[i]) {
			return i
		}
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

// overlapTail takes the last overlap characters of an emitted chunk and trims
// the tail forward to the first sentence boundary, falling back to a comma or
// semicolon in the first half of the tail, then to the first space.
func overlapTail(text string, overlap int) string {
	if overlap <= 0 || len(text) <= overlap {
		return ""
	}
	tail := text[len(text)-overlap:]
	for i := 0; i < len(tail)-1; i++ {
		if isSentenceEnd(tail[i]) && isSpace(tail[i+1]) {
			return strings.TrimSpace(tail[i+1:])
		}
	}
	for i := 0; i < len(tail)/2; i++ {
		if tail[i] == ',' || tail[i] == ';' {
			return strings.TrimSpace(tail[i+1:])
		}
	}
	if idx := strings.IndexAny(tail, " \t\n"); idx >= 0 {
		return strings.TrimSpace(tail[idx+1:])
	}
	return tail
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
