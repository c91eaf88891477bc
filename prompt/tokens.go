package prompt

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt size for log fields. The encoding loads lazily;
// when it cannot be loaded the counter falls back to a bytes/4 estimate.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
	load func() (*tiktoken.Tiktoken, error)
}

// NewTokenCounter uses cl100k_base, which may need to be fetched on first use.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{load: func() (*tiktoken.Tiktoken, error) {
		return tiktoken.GetEncoding("cl100k_base")
	}}
}

// Count returns the estimated token count of text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		if c.load != nil {
			c.enc, c.err = c.load()
		}
	})
	if c.enc != nil {
		if n := len(c.enc.Encode(text, nil, nil)); n > 0 {
			return n
		}
		return 1
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// Err reports why the encoding could not be loaded, if it was attempted.
func (c *TokenCounter) Err() error { return c.err }

var defaultCounter = NewTokenCounter()

// EstimateTokens counts text with the shared cl100k_base counter.
func EstimateTokens(text string) int {
	return defaultCounter.Count(text)
}
