package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wardsim/wardsim/internal/sched"
)

// ActionEntry configures one action.
type ActionEntry struct {
	Name          sched.Action `yaml:"name"`
	Priority      int          `yaml:"priority"`
	State         string       `yaml:"state"`
	PartnerState  string       `yaml:"partner_state"`
	AwaitsPartner bool         `yaml:"awaits_partner"`
}

// LoadActionTable loads actions.yaml. Every schedulable action must appear
// exactly once.
func LoadActionTable(path string) (sched.ActionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read action table: %w", err)
	}
	var entries []ActionEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse action table: %w", err)
	}
	t := make(sched.ActionTable, len(entries))
	for _, e := range entries {
		if _, dup := t[e.Name]; dup {
			return nil, fmt.Errorf("action table: duplicate %s", e.Name)
		}
		t[e.Name] = sched.Spec{
			Priority:      e.Priority,
			State:         e.State,
			PartnerState:  e.PartnerState,
			AwaitsPartner: e.AwaitsPartner,
		}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("action table: %w", err)
	}
	return t, nil
}
