// Package prompt holds the instruction text sent to the language model.
// Prompts are versioned YAML documents; the default set is embedded at compile time and
// can be replaced by a file without touching the intake logic.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// StatusPlaceholder is replaced with the known field lines in the status template.
const StatusPlaceholder = "Status"

// Set is one version of the prompt configuration.
type Set struct {
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions"`
	Greeting     string `yaml:"greeting"`
	Closing      string `yaml:"closing"`
	Status       string `yaml:"status"`
	StatusEmpty  string `yaml:"status_empty"`
}

// Default returns the embedded prompt set.
func Default() *Set {
	set, err := Parse(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("failed to load embedded prompts: %v", err))
	}
	return set
}

// Parse decodes and checks a YAML prompt document.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// LoadFile reads a prompt set from disk.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}
	return Parse(data)
}

func (s *Set) validate() error {
	var missing []string
	if strings.TrimSpace(s.Instructions) == "" {
		missing = append(missing, "instructions")
	}
	if strings.TrimSpace(s.Greeting) == "" {
		missing = append(missing, "greeting")
	}
	if strings.TrimSpace(s.Closing) == "" {
		missing = append(missing, "closing")
	}
	if strings.TrimSpace(s.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("prompt set %q is missing %s", s.Version, strings.Join(missing, ", "))
	}
	if !strings.Contains(s.Status, placeholder(StatusPlaceholder)) {
		return errors.New("status template must contain " + placeholder(StatusPlaceholder))
	}
	return nil
}

// BuildInstructions returns the instruction message, identical for every turn of every session.
func (s *Set) BuildInstructions() chat.Message {
	return chat.Message{Role: chat.RoleSystem, Content: s.Instructions}
}

// BuildContext returns the status summary listing every known field in fixed order.
func (s *Set) BuildContext(record *candidate.Record) chat.Message {
	return chat.Message{
		Role:    chat.RoleSystem,
		Content: Format(s.Status, map[string]string{StatusPlaceholder: s.Summary(record)}),
	}
}

// Summary renders the "Name: value" lines for the set fields, or the empty placeholder.
func (s *Set) Summary(record *candidate.Record) string {
	filled := record.Filled()
	if len(filled) == 0 {
		if s.StatusEmpty == "" {
			return "No candidate info yet."
		}
		return s.StatusEmpty
	}

	lines := make([]string, 0, len(filled))
	for _, f := range filled {
		lines = append(lines, f.Name()+": "+record.Get(f))
	}
	return strings.Join(lines, "\n")
}

// GreetingDirective asks the model for the opening message.
func (s *Set) GreetingDirective() chat.Message {
	return chat.Message{Role: chat.RoleUser, Content: s.Greeting}
}

// ClosingDirective asks the model for the farewell message.
func (s *Set) ClosingDirective() chat.Message {
	return chat.Message{Role: chat.RoleSystem, Content: s.Closing}
}

// Format replaces {{.Key}} placeholders with values from data.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		result = strings.ReplaceAll(result, placeholder(key), value)
	}
	return result
}

func placeholder(key string) string {
	return "{{." + key + "}}"
}
