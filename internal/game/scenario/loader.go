// Package scenario loads YAML descriptions of sessions and their defending
// coops and applies them to a session registry.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a set of sessions to start.
type Scenario struct {
	Name     string        `yaml:"name"`
	Sessions []SessionSpec `yaml:"sessions"`
}

// SessionSpec describes one session and its participants.
type SessionSpec struct {
	ID          string         `yaml:"id"`
	PlayerLevel int            `yaml:"player_level"`
	Defenders   []DefenderSpec `yaml:"defenders"`
}

// Point is a coop center in world coordinates.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// DefenderSpec describes one player's coop.
type DefenderSpec struct {
	PlayerID   string        `yaml:"player_id"`
	Center     Point         `yaml:"center"`
	Resistance float64       `yaml:"resistance"`
	Weapon     *WeaponSpec   `yaml:"weapon"`
	Traps      []string      `yaml:"traps"`
	Chickens   []ChickenSpec `yaml:"chickens"`
}

// WeaponSpec is the defender's bat.
type WeaponSpec struct {
	Name   string `yaml:"name"`
	Damage int    `yaml:"damage"`
}

// ChickenSpec places Count chickens of one species.
type ChickenSpec struct {
	Species        string  `yaml:"species"`
	Count          int     `yaml:"count"`
	MoneyPerSecond float64 `yaml:"money_per_second"`
}

// LoadFile reads and validates a scenario YAML file.
//
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	sc, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	return sc, nil
}

// LoadFromBytes parses and validates a scenario from YAML bytes.
//
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadFromBytes(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	for i := range sc.Sessions {
		s := &sc.Sessions[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.PlayerLevel == 0 {
			s.PlayerLevel = 1
		}
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks structural invariants. Trap types and species are checked
// against the catalog when the scenario is applied.
//
// Postcondition: Returns nil if valid, or an error joining every violation.
func (sc *Scenario) Validate() error {
	var errs []error
	if len(sc.Sessions) == 0 {
		errs = append(errs, errors.New("scenario has no sessions"))
	}
	seen := make(map[string]bool)
	for _, s := range sc.Sessions {
		if s.ID != "" {
			if seen[s.ID] {
				errs = append(errs, fmt.Errorf("duplicate session id %q", s.ID))
			}
			seen[s.ID] = true
		}
		if s.PlayerLevel < 1 {
			errs = append(errs, fmt.Errorf("session %q: player_level must be >= 1, got %d", s.ID, s.PlayerLevel))
		}
		players := make(map[string]bool)
		for _, d := range s.Defenders {
			errs = append(errs, validateDefender(s.ID, d, players)...)
		}
	}
	return errors.Join(errs...)
}

func validateDefender(sessionID string, d DefenderSpec, players map[string]bool) []error {
	var errs []error
	if d.PlayerID == "" {
		errs = append(errs, fmt.Errorf("session %q: defender player_id must not be empty", sessionID))
	} else if players[d.PlayerID] {
		errs = append(errs, fmt.Errorf("session %q: duplicate defender %q", sessionID, d.PlayerID))
	}
	players[d.PlayerID] = true
	if d.Resistance < 0 || d.Resistance > 1 {
		errs = append(errs, fmt.Errorf("defender %q: resistance must be in [0, 1], got %v", d.PlayerID, d.Resistance))
	}
	if d.Weapon != nil && d.Weapon.Damage < 1 {
		errs = append(errs, fmt.Errorf("defender %q: weapon damage must be >= 1, got %d", d.PlayerID, d.Weapon.Damage))
	}
	for _, c := range d.Chickens {
		if c.Count < 1 {
			errs = append(errs, fmt.Errorf("defender %q: chicken count must be >= 1, got %d", d.PlayerID, c.Count))
		}
		if c.MoneyPerSecond < 0 {
			errs = append(errs, fmt.Errorf("defender %q: money_per_second must be >= 0, got %v", d.PlayerID, c.MoneyPerSecond))
		}
	}
	return errs
}
