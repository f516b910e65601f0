// Package censor provides lexical content filtering of user submitted text.
package censor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// Checker reports whether a text contains banned vocabulary.
type Checker interface {
	Banned(ctx context.Context, text string) (bool, error)
}

type Word struct {
	Text       string   `json:"text"`
	Pattern    string   `json:"pattern"`
	Exceptions []string `json:"exceptions"`

	regexPattern *regexp.Regexp
}

type Censor struct {
	bannedWords []Word
}

// New returns an empty Censor instance.
func New() *Censor {
	return &Censor{}
}

// LoadFromJSON loads banned words from a JSON file and compiles regexes.
func (c *Censor) LoadFromJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var words []Word
	if err := json.Unmarshal(data, &words); err != nil {
		return err
	}

	for i, word := range words {
		words[i].regexPattern, err = regexp.Compile(word.Pattern)
		if err != nil {
			return fmt.Errorf("failed to compile pattern %q: %w", word.Pattern, err)
		}
	}

	c.bannedWords = words
	return nil
}

// lookalikes maps characters commonly used to disguise words onto the
// latin letters they imitate.
var lookalikes = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"@", "a",
	"$", "s",
	"а", "a",
	"е", "e",
	"о", "o",
	"р", "p",
	"с", "c",
	"х", "x",
	"у", "y",
)

func normalize(text string) string {
	text = strings.ToLower(text)
	text = lookalikes.Replace(text)
	return strings.TrimSpace(text)
}

// words splits normalized text into words, dropping punctuation.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Check scans text for banned vocabulary using case-insensitive matching and look-alike normalization.
// Returns true if any word:
//   - Matches prohibited pattern(s)
//   - Isn't explicitly allowed in exceptions
func (c *Censor) Check(text string) bool {
	for _, w := range words(normalize(text)) {
		for _, banned := range c.bannedWords {
			match := banned.regexPattern.FindString(w)
			if match == "" {
				continue
			}

			isException := false
			for _, exc := range banned.Exceptions {
				if exc == match {
					isException = true
					break
				}
			}

			if !isException {
				return true
			}
		}
	}

	return false
}

// Banned implements Checker. The local word list never fails.
func (c *Censor) Banned(_ context.Context, text string) (bool, error) {
	return c.Check(text), nil
}
