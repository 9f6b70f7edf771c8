// Package tokenizer estimates how many model tokens an assembled context occupies.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters.
type Config struct {
	Model string
}

const (
	defaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

// NewCounter returns a Counter for the requested model. Models tiktoken does not
// know, including the open-weight models served behind OpenAI-compatible
// endpoints, are estimated with the cl100k_base encoding.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	lowerModel := strings.ToLower(model)

	if isOpenAIModel(lowerModel) {
		encoding, err := tiktoken.EncodingForModel(lowerModel)
		if err == nil && encoding != nil {
			return openAICounter{encoding: encoding, name: lowerModel}, model, nil
		}
	}
	fallback, fallbackErr := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackErr != nil {
		return nil, "", fmt.Errorf("initialize fallback tokenizer: %w", fallbackErr)
	}
	return openAICounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
}

func isOpenAIModel(model string) bool {
	prefixes := []string{
		"gpt-",
		"text-embedding",
		"davinci",
		"curie",
		"babbage",
		"ada",
		"code-",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// lazyCounter defers encoding initialization, which may download the BPE ranks,
// until the first count.
type lazyCounter struct {
	config  Config
	once    sync.Once
	counter Counter
	err     error
}

// NewLazyCounter returns a Counter that resolves its encoding on first use.
func NewLazyCounter(cfg Config) Counter {
	return &lazyCounter{config: cfg}
}

func (counter *lazyCounter) resolve() (Counter, error) {
	counter.once.Do(func() {
		counter.counter, _, counter.err = NewCounter(counter.config)
	})
	return counter.counter, counter.err
}

func (counter *lazyCounter) Name() string {
	if resolved, err := counter.resolve(); err == nil {
		return resolved.Name()
	}
	return counter.config.Model
}

func (counter *lazyCounter) CountString(input string) (int, error) {
	resolved, err := counter.resolve()
	if err != nil {
		return 0, err
	}
	return resolved.CountString(input)
}
