// Package assignment stores the practice problems students solve against
// the sandbox database.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no assignment has the requested ID.
var ErrNotFound = errors.New("assignment not found")

// Difficulty grades an assignment.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// Assignment is one practice problem.
type Assignment struct {
	ID              string     `json:"id" yaml:"id,omitempty"`
	Title           string     `json:"title" yaml:"title"`
	Description     string     `json:"description" yaml:"description"`
	Difficulty      Difficulty `json:"difficulty" yaml:"difficulty"`
	Question        string     `json:"question" yaml:"question"`
	TableName       string     `json:"tableName" yaml:"tableName"`
	ExpectedColumns []string   `json:"expectedColumns" yaml:"expectedColumns"`
}

// Validate checks that every required field is set.
func (a Assignment) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", a.Title},
		{"description", a.Description},
		{"question", a.Question},
		{"tableName", a.TableName},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("assignment %q: missing %s", a.Title, strings.Join(missing, ", "))
	}
	if !a.Difficulty.Valid() {
		return fmt.Errorf("assignment %q: difficulty must be Easy, Medium or Hard, got %q", a.Title, a.Difficulty)
	}
	return nil
}

// Store reads and seeds assignments.
type Store interface {
	List(ctx context.Context) ([]Assignment, error)
	Get(ctx context.Context, id string) (*Assignment, error)
	// Replace removes every assignment and inserts the given ones.
	Replace(ctx context.Context, assignments []Assignment) error
	Close() error
}
