// Package catalog holds the exam dataset: examiner commands, technical
// questions, command categories and regional tips.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// AllQuestions selects every question category.
const AllQuestions = "all"

// Importance ranks a command.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
)

// Command is an instruction an examiner may give during the drive.
type Command struct {
	ID         string     `yaml:"id" json:"id"`
	German     string     `yaml:"german" json:"german"`
	English    string     `yaml:"english" json:"english"`
	Category   string     `yaml:"category" json:"category"`
	Importance Importance `yaml:"importance" json:"importance"`
	Tip        string     `yaml:"tip,omitempty" json:"tip,omitempty"`
}

// Question is a technical question asked before the drive.
type Question struct {
	ID       string `yaml:"id" json:"id"`
	German   string `yaml:"german" json:"german"`
	English  string `yaml:"english" json:"english"`
	Answer   string `yaml:"answer" json:"answer"`
	Category string `yaml:"category" json:"category"`
}

// Category describes a group of commands.
type Category struct {
	Key         string `yaml:"key" json:"key"`
	Name        string `yaml:"name" json:"name"`
	Icon        string `yaml:"icon" json:"icon"`
	Description string `yaml:"description" json:"description"`
}

// Tip is local driving advice.
type Tip struct {
	Title  string `yaml:"title" json:"title"`
	German string `yaml:"german" json:"german"`
	Body   string `yaml:"tip" json:"tip"`
}

// Catalog is the loaded, read-only dataset.
type Catalog struct {
	commands   []Command
	questions  []Question
	categories []Category
	tips       []Tip

	commandIndex  map[string]int
	categoryIndex map[string]int
}

// Load reads the embedded dataset.
func Load() (*Catalog, error) {
	return LoadFS(dataFS, "data")
}

// LoadFS reads categories.yaml, commands.yaml, questions.yaml and tips.yaml
// from dir in fsys.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	var (
		cats struct {
			Categories []Category `yaml:"categories"`
		}
		cmds struct {
			Commands []Command `yaml:"commands"`
		}
		qs struct {
			Questions []Question `yaml:"questions"`
		}
		tips struct {
			Tips []Tip `yaml:"tips"`
		}
	)
	files := []struct {
		name string
		out  any
	}{
		{"categories.yaml", &cats},
		{"commands.yaml", &cmds},
		{"questions.yaml", &qs},
		{"tips.yaml", &tips},
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, path.Join(dir, f.name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if err := yaml.Unmarshal(data, f.out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
	}

	c := &Catalog{
		commands:      cmds.Commands,
		questions:     qs.Questions,
		categories:    cats.Categories,
		tips:          tips.Tips,
		commandIndex:  make(map[string]int, len(cmds.Commands)),
		categoryIndex: make(map[string]int, len(cats.Categories)),
	}
	for i, cat := range c.categories {
		if _, dup := c.categoryIndex[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Key)
		}
		c.categoryIndex[cat.Key] = i
	}
	for i, cmd := range c.commands {
		if cmd.ID == "" {
			return nil, fmt.Errorf("command %d has no id", i)
		}
		if _, dup := c.commandIndex[cmd.ID]; dup {
			return nil, fmt.Errorf("duplicate command id %q", cmd.ID)
		}
		if _, ok := c.categoryIndex[cmd.Category]; !ok {
			return nil, fmt.Errorf("command %s: unknown category %q", cmd.ID, cmd.Category)
		}
		c.commandIndex[cmd.ID] = i
	}
	return c, nil
}

// Commands returns the commands in any of the given categories, or every
// command when no category is given.
func (c *Catalog) Commands(categories ...string) []Command {
	if len(categories) == 0 {
		return slices.Clone(c.commands)
	}
	var out []Command
	for _, cmd := range c.commands {
		if slices.Contains(categories, cmd.Category) {
			out = append(out, cmd)
		}
	}
	return out
}

// Command looks up a command by id.
func (c *Catalog) Command(id string) (Command, bool) {
	i, ok := c.commandIndex[id]
	if !ok {
		return Command{}, false
	}
	return c.commands[i], true
}

// Known returns the ids in ids that name a command, in input order.
func (c *Catalog) Known(ids []string) []string {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.commandIndex[id]; ok {
			known = append(known, id)
		}
	}
	return known
}

// CommandCount returns the total number of commands.
func (c *Catalog) CommandCount() int {
	return len(c.commands)
}

// CountByCategory counts commands per category key.
func (c *Catalog) CountByCategory() map[string]int {
	counts := make(map[string]int, len(c.categories))
	for _, cmd := range c.commands {
		counts[cmd.Category]++
	}
	return counts
}

// Questions returns the questions in category. An empty category or
// AllQuestions selects every question.
func (c *Catalog) Questions(category string) []Question {
	if category == "" || category == AllQuestions {
		return slices.Clone(c.questions)
	}
	var out []Question
	for _, q := range c.questions {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out
}

// QuestionCategories lists question categories in first-seen order.
func (c *Catalog) QuestionCategories() []string {
	var out []string
	for _, q := range c.questions {
		if !slices.Contains(out, q.Category) {
			out = append(out, q.Category)
		}
	}
	return out
}

// Categories returns the command categories in dataset order.
func (c *Catalog) Categories() []Category {
	return slices.Clone(c.categories)
}

// Category looks up a command category by key.
func (c *Catalog) Category(key string) (Category, bool) {
	i, ok := c.categoryIndex[key]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Tips returns the regional tips.
func (c *Catalog) Tips() []Tip {
	return slices.Clone(c.tips)
}
