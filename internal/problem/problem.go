// Package problem provides problem and test-suite definitions for TrueScore.
//
// A problem is a directory containing problem.yaml (entry point, expected
// complexity class, and the ordered test cases), an optional description.md
// and reference.py, and a submissions/ directory of candidate solutions.
// Problems are read-only to the evaluation pipeline.
package problem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Comparison selects how a test case's expected output is matched.
type Comparison string

const (
	// CompareExact matches the expected value exactly (default).
	CompareExact Comparison = "exact"
	// CompareTolerance matches numeric values within a tolerance.
	CompareTolerance Comparison = "tolerance"
	// CompareUnordered matches sequences ignoring element order.
	CompareUnordered Comparison = "unordered"
)

// TestCase defines one input/output check against the submission entry point.
type TestCase struct {
	Name      string     `yaml:"name"                json:"name"`
	Args      []any      `yaml:"args"                json:"args"`
	Expected  any        `yaml:"expected"            json:"expected"`
	Compare   Comparison `yaml:"compare,omitempty"   json:"compare,omitempty"`
	Tolerance float64    `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Edge      bool       `yaml:"edge,omitempty"      json:"edge,omitempty"` // Boundary-condition case
}

// Problem represents one evaluation problem with its fixed test suite.
type Problem struct {
	ID          string     `yaml:"id"                    json:"id"`
	Name        string     `yaml:"name,omitempty"        json:"name,omitempty"`
	EntryPoint  string     `yaml:"entry_point"           json:"entry_point"`
	Complexity  string     `yaml:"complexity,omitempty"  json:"complexity,omitempty"` // Expected asymptotic class, e.g. "O(n)"
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Cases       []TestCase `yaml:"cases"                 json:"cases"`

	// Dir is the directory the problem was loaded from. Not serialized.
	Dir string `yaml:"-" json:"-"`
}

// EdgeCases returns the cases tagged as boundary conditions.
func (p *Problem) EdgeCases() []TestCase {
	var edge []TestCase
	for _, c := range p.Cases {
		if c.Edge {
			edge = append(edge, c)
		}
	}
	return edge
}

// Validate checks that required problem fields are present.
func (p *Problem) Validate() error {
	if p.ID == "" {
		return errors.New("problem id is required")
	}
	if p.EntryPoint == "" {
		return fmt.Errorf("problem %s has no entry_point", p.ID)
	}
	if len(p.Cases) == 0 {
		return fmt.Errorf("problem %s has no test cases", p.ID)
	}
	seen := make(map[string]bool, len(p.Cases))
	for i, c := range p.Cases {
		if c.Name == "" {
			return fmt.Errorf("problem %s case %d has no name", p.ID, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("problem %s has duplicate case name %q", p.ID, c.Name)
		}
		seen[c.Name] = true
		if c.Compare == CompareTolerance && c.Tolerance <= 0 {
			return fmt.Errorf("problem %s case %s declares tolerance compare without a tolerance", p.ID, c.Name)
		}
	}
	return nil
}

// Loader loads problems and submissions from a base directory.
type Loader struct {
	baseDir string
}

// NewLoader creates a loader rooted at the given problems directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load loads a single problem by id.
func (l *Loader) Load(id string) (*Problem, error) {
	dir := filepath.Join(l.baseDir, id)
	return loadDir(dir, id)
}

// LoadAll loads every problem under the base directory, sorted by id.
func (l *Loader) LoadAll() ([]*Problem, error) {
	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading problems dir: %w", err)
	}

	var problems []*Problem
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		manifest := filepath.Join(l.baseDir, e.Name(), "problem.yaml")
		if _, err := os.Stat(manifest); err != nil {
			continue
		}
		p, err := loadDir(filepath.Join(l.baseDir, e.Name()), e.Name())
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}

	sort.Slice(problems, func(i, j int) bool { return problems[i].ID < problems[j].ID })
	return problems, nil
}

// Submissions returns {submission id: source path} for all submissions of a
// problem, with ids sorted for deterministic iteration.
func (l *Loader) Submissions(p *Problem) (map[string]string, []string, error) {
	subDir := filepath.Join(p.Dir, "submissions")
	entries, err := os.ReadDir(subDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil, nil
		}
		return nil, nil, fmt.Errorf("reading submissions dir: %w", err)
	}

	subs := make(map[string]string)
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".py")
		subs[id] = filepath.Join(subDir, e.Name())
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return subs, ids, nil
}

// ReadSubmission reads a submission's source text.
func (l *Loader) ReadSubmission(p *Problem, id string) (string, error) {
	path := filepath.Join(p.Dir, "submissions", id+".py")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading submission %s/%s: %w", p.ID, id, err)
	}
	return string(data), nil
}

// ReadReference returns the reference solution, or "" if the problem has none.
func (l *Loader) ReadReference(p *Problem) string {
	data, err := os.ReadFile(filepath.Join(p.Dir, "reference.py"))
	if err != nil {
		return ""
	}
	return string(data)
}

// loadDir loads and validates a problem from a directory.
func loadDir(dir, id string) (*Problem, error) {
	data, err := os.ReadFile(filepath.Join(dir, "problem.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading problem %s: %w", id, err)
	}

	var p Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing problem %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	p.Dir = dir

	// Prefer a standalone description file when present.
	if desc, err := os.ReadFile(filepath.Join(dir, "description.md")); err == nil {
		p.Description = string(desc)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
