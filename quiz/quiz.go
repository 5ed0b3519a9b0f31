// File: quiz/quiz.go
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
)

// Text length caps applied during sanitization.
const (
	MaxTitleLength    = 500
	MaxQuestionLength = 2000
	MaxOptionLength   = 500
)

var (
	ErrNoQuestions   = errors.New("quiz has no questions")
	ErrBadOptions    = errors.New("question must have 2 or 4 options")
	ErrBadAnswer     = errors.New("answer index out of range")
	ErrEmptyQuestion = errors.New("question text is empty")
)

// Question is one entry of a quiz snapshot. Immutable once the snapshot is
// handed to a room.
type Question struct {
	ID          int      `json:"id"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	ImageURL    string   `json:"image_url,omitempty"`
	IsBonus     bool     `json:"is_bonus"`
}

// Quiz is the immutable snapshot a room plays through.
type Quiz struct {
	Title     string     `json:"quiz_title"`
	Questions []Question `json:"questions"`
}

// Len returns the number of questions.
func (q *Quiz) Len() int { return len(q.Questions) }

// Parse decodes, sanitizes and validates a quiz document.
func Parse(data []byte) (*Quiz, error) {
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decoding quiz: %w", err)
	}
	q.sanitize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// Validate checks the structural invariants every playable quiz must hold.
func (q *Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrNoQuestions
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Text) == "" {
			return fmt.Errorf("question %d: %w", i, ErrEmptyQuestion)
		}
		if n := len(question.Options); n != 2 && n != 4 {
			return fmt.Errorf("question %d has %d options: %w", i, n, ErrBadOptions)
		}
		if question.AnswerIndex < 0 || question.AnswerIndex >= len(question.Options) {
			return fmt.Errorf("question %d: %w", i, ErrBadAnswer)
		}
	}
	return nil
}

var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	controlCharPattern = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// sanitizeText strips HTML tags and control characters, then trims and caps.
func sanitizeText(text string, maxLen int) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = controlCharPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return text
}

func (q *Quiz) sanitize() {
	q.Title = sanitizeText(q.Title, MaxTitleLength)
	for i := range q.Questions {
		q.Questions[i].Text = sanitizeText(q.Questions[i].Text, MaxQuestionLength)
		for j, opt := range q.Questions[i].Options {
			q.Questions[i].Options[j] = sanitizeText(opt, MaxOptionLength)
		}
	}
}

// AssignBonusRounds flags roughly fraction of the questions as bonus rounds.
// The first question is never a bonus round. Deterministic for a given rng.
func (q *Quiz) AssignBonusRounds(fraction float64, rng *rand.Rand) {
	for i := range q.Questions {
		q.Questions[i].IsBonus = false
	}
	n := len(q.Questions)
	if n <= 1 || fraction <= 0 {
		return
	}
	count := int(math.Round(fraction * float64(n)))
	if count > n-1 {
		count = n - 1
	}
	if count <= 0 {
		return
	}
	perm := rng.Perm(n - 1)
	for _, p := range perm[:count] {
		q.Questions[p+1].IsBonus = true
	}
}
