package ingestion_engine

import (
	"strings"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
)

// charsPerToken is the cheap token estimate (~4 chars ≈ 1 token).
const charsPerToken = 4

// approxTokens estimates the token count of a string.
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / charsPerToken
}

// isBreak reports whether a byte ends a sentence or a line.
func isBreak(b byte) bool {
	switch b {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

// ChunkText splits text into overlapping, token-bounded chunks, preferring
// sentence/line boundaries over raw size. It is a pure function of its input
// and the size constants: chunking the same text twice yields identical
// boundaries and offsets.
//
// The walk proposes an end at start+targetChars, snaps backward to the
// nearest break found in the second half of the window, trims the slice and
// emits it if non-empty. The next start is end-overlapChars but always at
// least start+1, so degenerate input still makes forward progress. A chunk
// that reaches the end of the text is the last one.
func ChunkText(text string, cfg *IngestConfig) []models.Chunk {
	targetChars := cfg.TargetTokens * charsPerToken
	if maxChars := cfg.MaxTokens * charsPerToken; maxChars > 0 && targetChars > maxChars {
		targetChars = maxChars
	}
	overlapChars := cfg.OverlapTokens * charsPerToken

	var out []models.Chunk
	n := len(text)
	start := 0
	idx := 0

	for start < n {
		end := start + targetChars
		atEnd := end >= n
		if atEnd {
			end = n
		} else {
			// Snap to the nearest sentence terminator or newline, but only
			// if that keeps the chunk at least half the target size.
			for b := end - 1; b >= start+targetChars/2; b-- {
				if isBreak(text[b]) {
					end = b + 1
					break
				}
			}
		}

		if slice := strings.TrimSpace(text[start:end]); slice != "" {
			out = append(out, models.Chunk{
				Index:       idx,
				Text:        slice,
				StartOffset: start,
				EndOffset:   end,
				TokenCount:  approxTokens(slice),
			})
			idx++
		}

		if atEnd {
			break
		}

		next := end - overlapChars
		if next < start+1 {
			next = start + 1
		}
		start = next
	}

	return out
}

// TotalTokens sums the estimated token counts of a chunk sequence.
func TotalTokens(chunks []models.Chunk) int {
	total := 0
	for _, c := range chunks {
		total += c.TokenCount
	}
	return total
}
