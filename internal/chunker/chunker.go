// Package chunker splits article bodies into sentence-bounded chunks and
// produces an extractive summary per chunk. Chunks partition the body in
// order: contiguous 0-based indices, each chunk's char_end equal to the
// next chunk's char_start.
package chunker

import (
	"strings"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

// sentenceEnders terminate a sentence. The terminator stays attached to
// its sentence.
var sentenceEnders = map[rune]bool{'。': true, '！': true, '？': true}

// Chunker splits one article at a time. Stateless; safe to share.
type Chunker struct {
	cfg common.ChunkerConfig
}

// New builds a chunker from configuration.
func New(cfg common.ChunkerConfig) *Chunker {
	return &Chunker{cfg: cfg}
}

// Split chunks an article body. Bodies shorter than the short-article
// threshold become a single chunk regardless of sentence count.
func (c *Chunker) Split(articleURL, headline, body string) []*models.Chunk {
	if body == "" {
		return nil
	}

	sentences := SplitSentences(body)

	if len([]rune(body)) < c.cfg.ShortArticleThreshold {
		chunk := c.newChunk(articleURL, headline, 0, sentences, 0)
		return []*models.Chunk{chunk}
	}

	var chunks []*models.Chunk
	var buffer []string
	bufferLen := 0
	charStart := 0

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunk := c.newChunk(articleURL, headline, len(chunks), buffer, charStart)
		charStart = chunk.CharEnd
		chunks = append(chunks, chunk)
		buffer = nil
		bufferLen = 0
	}

	for _, sentence := range sentences {
		runes := len([]rune(sentence))
		// A sentence that would push the buffer past the target starts the
		// next chunk instead; hitting the target exactly still flushes. A
		// single sentence longer than the target becomes its own chunk.
		if len(buffer) > 0 && bufferLen+runes > c.cfg.TargetLength {
			flush()
		}
		buffer = append(buffer, sentence)
		bufferLen += runes
		if bufferLen >= c.cfg.TargetLength {
			flush()
		}
	}

	if bufferLen > 0 {
		if bufferLen < c.cfg.MinLength && len(chunks) > 0 {
			// Tail too small to stand alone: merge into the predecessor.
			last := chunks[len(chunks)-1]
			last.Sentences = append(last.Sentences, buffer...)
			last.FullText += strings.Join(buffer, "")
			last.CharEnd += bufferLen
			last.Summary = c.Summarize(headline, last.Sentences)
		} else {
			flush()
		}
	}

	return chunks
}

func (c *Chunker) newChunk(articleURL, headline string, index int, sentences []string, charStart int) *models.Chunk {
	text := strings.Join(sentences, "")
	return &models.Chunk{
		ChunkID:    models.BuildChunkID(articleURL, index),
		ArticleURL: articleURL,
		ChunkIndex: index,
		Sentences:  sentences,
		FullText:   text,
		Summary:    c.Summarize(headline, sentences),
		CharStart:  charStart,
		CharEnd:    charStart + len([]rune(text)),
	}
}

// SplitSentences cuts text at 。！？ keeping the terminator. A trailing
// fragment without a terminator becomes its own sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if sentenceEnders[r] {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// Summarize builds the extractive summary: headline then the first,
// middle and last sentence of the chunk, joined with 。 and truncated to
// the configured cap.
func (c *Chunker) Summarize(headline string, sentences []string) string {
	parts := []string{strings.TrimSpace(headline)}

	switch n := len(sentences); {
	case n == 0:
	case n == 1:
		parts = append(parts, strings.TrimSpace(sentences[0]))
	case n == 2:
		parts = append(parts, strings.TrimSpace(sentences[0]), strings.TrimSpace(sentences[n-1]))
	default:
		parts = append(parts,
			strings.TrimSpace(sentences[0]),
			strings.TrimSpace(sentences[n/2]),
			strings.TrimSpace(sentences[n-1]))
	}

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	summary := strings.Join(kept, "。")

	if runes := []rune(summary); len(runes) > c.cfg.SummaryMaxLength {
		summary = string(runes[:c.cfg.SummaryMaxLength]) + "..."
	}
	return summary
}
