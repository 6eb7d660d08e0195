package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "o200k_base"

// Counter counts tokens with the BPE encoding of a model. Loading an encoding may download its
// ranks file on first use.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter picks the encoding registered for model and falls back to o200k_base for models
// tiktoken does not know yet.
func NewCounter(model string) (*Counter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("error loading %s encoding: %w", fallbackEncoding, err)
		}
	}
	return &Counter{encoding: encoding}, nil
}

func (c *Counter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}
