package classify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Keywords is the on-disk shape of a keyword file.
type Keywords struct {
	Urgent []string `yaml:"urgent"`
	Data   []string `yaml:"data"`
}

func (k *Keywords) Validate() error {
	if len(k.Urgent) == 0 {
		return errors.New("urgent keyword list is empty")
	}
	if len(k.Data) == 0 {
		return errors.New("data keyword list is empty")
	}
	return nil
}

// Result is the outcome of classifying one message.
type Result struct {
	Urgent bool
	Data   bool
}

// Classifier matches messages against fixed keyword lists. It is safe for
// concurrent use and never mutates its lists after construction.
type Classifier struct {
	urgent []string
	data   []string
}

// New builds a classifier from the given lists. Keywords are lower-cased and
// blank entries dropped.
func New(kw Keywords) (*Classifier, error) {
	c := &Classifier{
		urgent: normalize(kw.Urgent),
		data:   normalize(kw.Data),
	}
	if err := (&Keywords{Urgent: c.urgent, Data: c.data}).Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the classifier built from the embedded keyword lists.
func Default() *Classifier {
	c, err := Parse(defaultKeywords)
	if err != nil {
		panic(fmt.Sprintf("classify: embedded keywords are invalid: %v", err))
	}
	return c
}

// Parse builds a classifier from YAML.
func Parse(data []byte) (*Classifier, error) {
	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return nil, fmt.Errorf("failed to parse keywords: %w", err)
	}
	return New(kw)
}

// LoadFile builds a classifier from a YAML keyword file.
func LoadFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return Parse(data)
}

func (c *Classifier) IsUrgent(msg string) bool {
	return containsAny(strings.ToLower(msg), c.urgent)
}

func (c *Classifier) IsDataQuery(msg string) bool {
	return containsAny(strings.ToLower(msg), c.data)
}

func (c *Classifier) Classify(msg string) Result {
	lower := strings.ToLower(msg)
	return Result{
		Urgent: containsAny(lower, c.urgent),
		Data:   containsAny(lower, c.data),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
