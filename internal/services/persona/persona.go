package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/persona-chat-go/internal/config"
	"github.com/persona-chat-go/internal/models"
	"github.com/sirupsen/logrus"
)

//go:embed profile.txt
var defaultProfile string

const preamble = `You are "AI %s", the voice of %s on their personal website.
Answer in a warm, confident, concise tone. Be honest and do not invent facts.
If a question is outside %s's profile, say you do not have that detail yet.
Use the profile below as the single source of truth.`

// Persona is the immutable system document prepended to every conversation.
type Persona struct {
	prompt string
}

// Load builds the persona from configuration. The embedded profile is used
// unless a profile file is configured.
func Load(cfg *config.PersonaConfig, logger *logrus.Logger) (*Persona, error) {
	profile := defaultProfile
	if cfg.ProfileFile != "" {
		data, err := os.ReadFile(cfg.ProfileFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile file: %w", err)
		}
		profile = string(data)
	}

	profile = strings.TrimSpace(profile)
	if profile == "" {
		return nil, fmt.Errorf("persona profile is empty")
	}

	p := New(cfg.Name, cfg.Owner, profile)

	logger.WithFields(logrus.Fields{
		"name":         cfg.Name,
		"profile_file": cfg.ProfileFile,
		"prompt_bytes": len(p.prompt),
	}).Info("Persona loaded")

	return p, nil
}

// New builds a persona from its parts.
func New(name, owner, profile string) *Persona {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(preamble, name, owner, firstName(owner)))
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(profile))
	sb.WriteString("\n")

	return &Persona{prompt: sb.String()}
}

// Prompt returns the system prompt text.
func (p *Persona) Prompt() string {
	return p.prompt
}

// Conversation returns a new slice holding the system message followed by
// turns. turns is not modified.
func (p *Persona) Conversation(turns []models.Message) []models.Message {
	messages := make([]models.Message, 0, len(turns)+1)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: models.TextContent(p.prompt)})
	return append(messages, turns...)
}

func firstName(owner string) string {
	if fields := strings.Fields(owner); len(fields) > 0 {
		return fields[0]
	}
	return owner
}
