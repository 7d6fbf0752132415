package terminal

import (
	"context"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// TypewriterConfig controls how replies are rendered to an interactive
// terminal.
type TypewriterConfig struct {
	// CharDelay is the base delay between characters. Zero disables the effect.
	CharDelay time.Duration
	// JitterMax is the maximum random jitter added to CharDelay.
	JitterMax time.Duration
	// PunctuationPause is extra delay after sentence punctuation.
	PunctuationPause time.Duration
}

// DefaultTypewriterConfig returns a brisk typing effect.
func DefaultTypewriterConfig() TypewriterConfig {
	return TypewriterConfig{
		CharDelay:        12 * time.Millisecond,
		JitterMax:        8 * time.Millisecond,
		PunctuationPause: 60 * time.Millisecond,
	}
}

// TypeResult describes one rendered reply.
type TypeResult struct {
	CharactersTyped int
	Duration        time.Duration
}

// Typewriter writes text one character at a time.
type Typewriter struct {
	mu     sync.RWMutex
	config TypewriterConfig
}

// NewTypewriter creates a typewriter.
func NewTypewriter(config TypewriterConfig) *Typewriter {
	return &Typewriter{config: config}
}

// SetCharDelay updates the base per-character delay.
func (t *Typewriter) SetCharDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config.CharDelay = d
}

// Config returns the current configuration.
func (t *Typewriter) Config() TypewriterConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// Type writes text to w. With a zero CharDelay the text is written in one
// call. Cancelling ctx flushes the remaining text immediately.
func (t *Typewriter) Type(ctx context.Context, w io.Writer, text string) (TypeResult, error) {
	cfg := t.Config()
	start := time.Now()

	if cfg.CharDelay <= 0 {
		_, err := io.WriteString(w, text)
		return TypeResult{CharactersTyped: len([]rune(text)), Duration: time.Since(start)}, err
	}

	runes := []rune(text)
	for i, r := range runes {
		if _, err := io.WriteString(w, string(r)); err != nil {
			return TypeResult{CharactersTyped: i, Duration: time.Since(start)}, err
		}

		delay := cfg.CharDelay
		if cfg.JitterMax > 0 {
			delay += rand.N(cfg.JitterMax)
		}
		if strings.ContainsRune(".!?:;\n", r) {
			delay += cfg.PunctuationPause
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			_, err := io.WriteString(w, string(runes[i+1:]))
			return TypeResult{CharactersTyped: len(runes), Duration: time.Since(start)}, err
		case <-timer.C:
		}
	}
	return TypeResult{CharactersTyped: len(runes), Duration: time.Since(start)}, nil
}
