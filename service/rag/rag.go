// Package rag implements the retrieval-augmented context layer. Memory items
// are scored per query with term overlap decayed by age; the top-K results
// are rendered into a context block injected ahead of the model prompt.
package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/plenum-ai/plenum/internal/clock"
)

// Item is one remembered fact scoped to a user.
type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Match pairs an item with its retrieval score.
type Match struct {
	Item  *Item   `json:"item"`
	Score float64 `json:"score"`
}

// Service is the memory contract used by the orchestrator and the rag tool.
type Service interface {
	Store(ctx context.Context, item *Item) error
	Search(ctx context.Context, userID, query string, limit int) ([]Match, error)
}

// Config tunes retrieval.
type Config struct {
	TopK     int           `json:"topK" yaml:"topK"`
	HalfLife time.Duration `json:"halfLife" yaml:"halfLife"`
}

// DefaultConfig returns conservative retrieval settings.
func DefaultConfig() Config {
	return Config{
		TopK:     4,
		HalfLife: 7 * 24 * time.Hour,
	}
}

// score combines term overlap with exponential recency decay.
func score(item *Item, queryTerms []string, halfLife time.Duration) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	vocabulary := map[string]bool{}
	for _, term := range terms(item.Text) {
		vocabulary[term] = true
	}
	for _, tag := range item.Tags {
		vocabulary[strings.ToLower(tag)] = true
	}
	matched := 0
	for _, term := range queryTerms {
		if vocabulary[term] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	overlap := float64(matched) / float64(len(queryTerms))
	if halfLife <= 0 {
		return overlap
	}
	age := clock.Now().Sub(item.CreatedAt)
	if age < 0 {
		age = 0
	}
	decay := math.Pow(0.5, age.Hours()/halfLife.Hours())
	return overlap * decay
}

// rank scores and orders candidate items, dropping zero scores.
func rank(items []*Item, userID, query string, limit int, halfLife time.Duration) []Match {
	queryTerms := terms(query)
	matches := make([]Match, 0, len(items))
	for _, item := range items {
		if item.UserID != userID {
			continue
		}
		if s := score(item, queryTerms, halfLife); s > 0 {
			matches = append(matches, Match{Item: item, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Item.CreatedAt.After(matches[j].Item.CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// ContextBlock renders matches into the prompt fragment injected before the
// user message; empty when nothing matched.
func ContextBlock(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant context from memory:\n")
	for _, match := range matches {
		b.WriteString("- ")
		b.WriteString(match.Item.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 2 {
			out = append(out, field)
		}
	}
	return out
}
