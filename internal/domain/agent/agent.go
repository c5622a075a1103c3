package agent

import (
	"strings"
	"time"
)

const (
	DefaultType    = "ORCHESTRATOR"
	DefaultVersion = "1.0.0"
)

// Agent is a registered orchestration identity.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AgentType string    `json:"agent_type"`
	Team      string    `json:"team"`
	Active    bool      `json:"active"`
	Version   string    `json:"version"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeID is the key agents are stored and looked up under.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// Registration carries the fields supplied on register. Nil pointers and a nil
// Tags slice mean "not supplied".
type Registration struct {
	ID        string
	Name      string
	AgentType *string
	Team      *string
	Active    *bool
	Version   *string
	Tags      []string
}

// Apply merges reg into prior (nil on first registration) and returns the
// resulting agent. CreatedAt and ID are never changed once set.
func Apply(prior *Agent, reg Registration, now time.Time) Agent {
	var out Agent
	if prior != nil {
		out = *prior
		out.Tags = append([]string(nil), prior.Tags...)
	} else {
		out = Agent{
			ID:        NormalizeID(reg.ID),
			AgentType: DefaultType,
			Active:    true,
			Version:   DefaultVersion,
			Tags:      []string{},
			CreatedAt: now,
		}
	}
	if reg.Name != "" {
		out.Name = reg.Name
	}
	if reg.AgentType != nil {
		out.AgentType = *reg.AgentType
	}
	if reg.Team != nil {
		out.Team = *reg.Team
	}
	if reg.Active != nil {
		out.Active = *reg.Active
	}
	if reg.Version != nil {
		out.Version = *reg.Version
	}
	if reg.Tags != nil {
		out.Tags = uniqueTags(reg.Tags)
	}
	out.UpdatedAt = now
	return out
}

func uniqueTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
