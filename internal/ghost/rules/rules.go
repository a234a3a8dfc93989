// Package rules loads Ghost's rule book: the reply texts, keyword groups,
// small-talk table, fallbacks and persona that drive the resolver.
//
// The rule book is YAML. It is validated against an embedded JSON schema
// before it is decoded, and every reply is pre-parsed as a text/template so
// a broken override file fails at startup rather than mid-conversation.
//
// Typical use:
//
//	book, err := rules.Default()
//	reply := book.Message(rules.MsgAccessGranted, nil)
package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed schema.json
var schemaJSON string

// Message names. Each one must be present in the rule book's messages map.
const (
	MsgLocked          = "locked"
	MsgAccessGranted   = "access_granted"
	MsgAccessDenied    = "access_denied"
	MsgChatCleared     = "chat_cleared"
	MsgClearChatPrompt = "clear_chat_prompt"
	MsgInstallReply    = "install_reply"
	MsgInstallAccepted = "install_accepted"
	MsgInstallDeclined = "install_declined"
	MsgWakeGreeting    = "wake_greeting"
	MsgMicUnavailable  = "mic_unavailable"
	MsgWhoAmI          = "who_am_i"
	MsgWhoAreYou       = "who_are_you"
	MsgMyAge           = "my_age"
	MsgMyAgeUnknown    = "my_age_unknown"
	MsgYourAge         = "your_age"
	MsgTaskAdded       = "task_added"
	MsgTaskHint        = "task_hint"
	MsgTasksHeader     = "tasks_header"
	MsgTasksEmpty      = "tasks_empty"
	MsgTasksCleared    = "tasks_cleared"
	MsgExpenseAdded    = "expense_added"
	MsgExpenseHint     = "expense_hint"
	MsgExpensesEmpty   = "expenses_empty"
	MsgExpensesCleared = "expenses_cleared"
	MsgGameResult      = "game_result"
	MsgGameTie         = "game_tie"
	MsgGameUserWins    = "game_user_wins"
	MsgGameGhostWins   = "game_ghost_wins"
	MsgCalcResult      = "calc_result"
	MsgCalcHint        = "calc_hint"
	MsgVersion         = "version"
	MsgQuiz            = "quiz"
)

// Keyword group names under the rule book's keywords map.
const (
	KeyWhoAmI    = "who_am_i"
	KeyWhoAreYou = "who_are_you"
	KeyMyAge     = "my_age"
	KeyYourAge   = "your_age"
	KeyQuiz      = "quiz"
	KeyVersion   = "version"
	KeySolve     = "solve"
)

// SmallTalk is one row of the greeting/small-talk table. Rows are evaluated
// in file order; the first row whose keywords match wins.
type SmallTalk struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Reply    string   `yaml:"reply"`

	tmpl *template.Template
}

// Category maps expense descriptions to a category label.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Book is a validated, template-compiled rule book. It is immutable after
// Load and safe for concurrent use.
type Book struct {
	Persona           string              `yaml:"persona"`
	WakePhrases       []string            `yaml:"wake_phrases"`
	InstallTriggers   []string            `yaml:"install_triggers"`
	RefusalMarkers    []string            `yaml:"refusal_markers"`
	Keywords          map[string][]string `yaml:"keywords"`
	Messages          map[string]string   `yaml:"messages"`
	SmallTalk         []SmallTalk         `yaml:"small_talk"`
	Fallbacks         []string            `yaml:"fallbacks"`
	ExpenseCategories []Category          `yaml:"expense_categories"`

	messages map[string]*template.Template
}

var schema = jsonschema.MustCompileString("rules.schema.json", schemaJSON)

// Default returns the rule book embedded in the binary.
func Default() (*Book, error) {
	return Load(defaultYAML)
}

// LoadFile reads and loads a rule book from path.
func LoadFile(path string) (*Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Load(raw)
}

// Load validates raw YAML against the rule-book schema, decodes it and
// compiles every reply template.
func Load(raw []byte) (*Book, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}

	var b Book
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("rules: decode: %w", err)
	}

	b.messages = make(map[string]*template.Template, len(b.Messages))
	for name, text := range b.Messages {
		tmpl, err := parse(name, text)
		if err != nil {
			return nil, err
		}
		b.messages[name] = tmpl
	}
	for i := range b.SmallTalk {
		row := &b.SmallTalk[i]
		tmpl, err := parse("small_talk."+row.Name, row.Reply)
		if err != nil {
			return nil, err
		}
		row.tmpl = tmpl
	}
	return &b, nil
}

// validate converts the YAML document to its JSON data model and checks it
// against the embedded schema.
func validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("rules: decode: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rules: convert to json: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("rules: convert to json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules: schema: %w", err)
	}
	return nil
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("rules: template %q: %w", name, err)
	}
	return tmpl, nil
}

// Message renders the named message with data. A render failure is logged
// and the raw template text is returned so the user still gets a reply.
func (b *Book) Message(name string, data any) string {
	tmpl, ok := b.messages[name]
	if !ok {
		slog.Error("rules: unknown message", "name", name)
		return ""
	}
	return execute(tmpl, b.Messages[name], data)
}

// Render renders the small-talk reply with data.
func (s *SmallTalk) Render(data any) string {
	if s.tmpl == nil {
		return s.Reply
	}
	return execute(s.tmpl, s.Reply, data)
}

// Keyword returns the keyword group with the given name.
func (b *Book) Keyword(name string) []string {
	return b.Keywords[name]
}

// Category returns the first category whose keywords occur as whole words in
// the normalised description, or "General".
func (b *Book) Category(normalised string) string {
	padded := " " + normalised + " "
	for _, c := range b.ExpenseCategories {
		for _, kw := range c.Keywords {
			if strings.Contains(padded, " "+strings.ToLower(kw)+" ") {
				return c.Name
			}
		}
	}
	return "General"
}

func execute(tmpl *template.Template, raw string, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("rules: render", "template", tmpl.Name(), "err", err)
		return raw
	}
	return buf.String()
}
