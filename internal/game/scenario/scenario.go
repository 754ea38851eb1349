// Package scenario loads battlefield layouts from YAML and materializes them
// into host snapshots for the arena.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/pathfind"
)

// maxPlacementAttempts bounds the retries for a reachable random layout.
const maxPlacementAttempts = 64

// RandomObstacles scatters extra obstacles over free cells each time a
// scenario is materialized.
type RandomObstacles struct {
	// Count is a dice expression such as "1d4+1" or a plain integer.
	Count string `yaml:"count"`
	// KeepReachable rejects layouts in which some attacker has no path to any defender.
	KeepReachable bool `yaml:"keep_reachable"`
}

// Scenario is one battlefield: map size, fixed obstacles and both rosters.
type Scenario struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Width       int               `yaml:"width"`
	Height      int               `yaml:"height"`
	Blocked     []grid.Cell       `yaml:"blocked"`
	Attackers   []ai.UnitSnapshot `yaml:"attackers"`
	Defenders   []ai.UnitSnapshot `yaml:"defenders"`
	Random      *RandomObstacles  `yaml:"random_obstacles"`
}

// Validate checks the scenario's static invariants.
//
// Postcondition: nil return guarantees a non-empty ID, positive dimensions,
// in-bounds obstacles, 1..combat.MaxTeamSize living units per side with unique
// IDs on distinct free cells, and a parseable random obstacle count.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario: id must not be empty")
	}
	snap := s.snapshot(nil)
	m, err := grid.NewMap(s.Width, s.Height, grid.Four, s.Blocked...)
	if err != nil {
		return fmt.Errorf("scenario %q: %w", s.ID, err)
	}
	if len(ai.Living(s.Attackers)) == 0 || len(ai.Living(s.Defenders)) == 0 {
		return fmt.Errorf("scenario %q: both sides need at least one living unit", s.ID)
	}
	if _, err := ai.BuildCombatState(snap, combat.NewBattlefield(m, combat.DefaultEvaluation()), true); err != nil {
		return fmt.Errorf("scenario %q: %w", s.ID, err)
	}
	for _, u := range append(append([]ai.UnitSnapshot(nil), s.Attackers...), s.Defenders...) {
		if u.Damage < 0 || u.Range < 0 {
			return fmt.Errorf("scenario %q: unit %d has negative damage or range", s.ID, u.ID)
		}
	}
	if s.Random != nil {
		e, err := dice.Parse(s.Random.Count)
		if err != nil {
			return fmt.Errorf("scenario %q: random_obstacles.count: %w", s.ID, err)
		}
		if e.Min() < 0 {
			return fmt.Errorf("scenario %q: random_obstacles.count %q can be negative", s.ID, s.Random.Count)
		}
	}
	return nil
}

func (s *Scenario) snapshot(extra []grid.Cell) *ai.Snapshot {
	blocked := append(append([]grid.Cell(nil), s.Blocked...), extra...)
	return &ai.Snapshot{
		Width:     s.Width,
		Height:    s.Height,
		Blocked:   blocked,
		Attackers: append([]ai.UnitSnapshot(nil), s.Attackers...),
		Defenders: append([]ai.UnitSnapshot(nil), s.Defenders...),
	}
}

// Materialize returns a fresh snapshot of the opening position. Random
// obstacles, if any, are rolled with roller and placed on cells free of units
// and fixed obstacles.
//
// Precondition: s has passed Validate; roller must not be nil when s.Random is set.
// Postcondition: the returned snapshot does not alias s.
func (s *Scenario) Materialize(roller *dice.Roller) (*ai.Snapshot, error) {
	if s.Random == nil {
		return s.snapshot(nil), nil
	}
	roll, err := roller.RollExpr(s.Random.Count)
	if err != nil {
		return nil, fmt.Errorf("scenario.Materialize %q: %w", s.ID, err)
	}
	n := roll.Total()

	free := s.freeCells()
	if n > len(free) {
		n = len(free)
	}
	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		extra := pick(free, n, roller.Source())
		snap := s.snapshot(extra)
		if !s.Random.KeepReachable || reachable(snap) {
			return snap, nil
		}
	}
	return nil, fmt.Errorf("scenario.Materialize %q: no reachable layout with %d random obstacles after %d attempts",
		s.ID, n, maxPlacementAttempts)
}

// freeCells lists the cells holding neither a unit nor a fixed obstacle, in
// row-major order.
func (s *Scenario) freeCells() []grid.Cell {
	taken := make(map[grid.Cell]bool)
	for _, c := range s.Blocked {
		taken[c] = true
	}
	for _, u := range append(append([]ai.UnitSnapshot(nil), s.Attackers...), s.Defenders...) {
		taken[u.Cell()] = true
	}
	var out []grid.Cell
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			if c := (grid.Cell{X: x, Y: y}); !taken[c] {
				out = append(out, c)
			}
		}
	}
	return out
}

// pick draws n distinct cells by a partial Fisher-Yates shuffle.
func pick(cells []grid.Cell, n int, src dice.Source) []grid.Cell {
	cp := append([]grid.Cell(nil), cells...)
	for i := 0; i < n; i++ {
		j := i + src.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:n]
}

// reachable reports whether every living attacker has a path to some living defender.
func reachable(snap *ai.Snapshot) bool {
	m, err := grid.NewMap(snap.Width, snap.Height, grid.Four, snap.Blocked...)
	if err != nil {
		return false
	}
	for _, a := range ai.Living(snap.Attackers) {
		ok := false
		for _, d := range ai.Living(snap.Defenders) {
			if _, found := pathfind.FindPath(m, a.Cell(), d.Cell()); found {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// yamlScenarioFile wraps the YAML top-level key.
type yamlScenarioFile struct {
	Scenario *Scenario `yaml:"scenario"`
}

// LoadScenarioFromBytes parses and validates a single scenario document.
//
// Postcondition: Returns a validated *Scenario, or an error.
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var f yamlScenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if f.Scenario == nil {
		return nil, errors.New("missing top-level 'scenario' key")
	}
	if err := f.Scenario.Validate(); err != nil {
		return nil, err
	}
	return f.Scenario, nil
}

// LoadScenarios reads all *.yaml files from dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: scenarios are sorted by ID; returns an error if any file fails
// to parse or validate, or two files share an ID.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario.LoadScenarios: reading %q: %w", dir, err)
	}
	var out []*Scenario
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("scenario.LoadScenarios: reading %s: %w", e.Name(), err)
		}
		sc, err := LoadScenarioFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("scenario.LoadScenarios: %s: %w", e.Name(), err)
		}
		if prev, dup := seen[sc.ID]; dup {
			return nil, fmt.Errorf("scenario.LoadScenarios: id %q defined in both %s and %s", sc.ID, prev, e.Name())
		}
		seen[sc.ID] = e.Name()
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Select returns the scenario with id, or every scenario when id is empty.
func Select(all []*Scenario, id string) ([]*Scenario, error) {
	if id == "" {
		return all, nil
	}
	for _, s := range all {
		if s.ID == id {
			return []*Scenario{s}, nil
		}
	}
	return nil, fmt.Errorf("scenario.Select: unknown scenario %q", id)
}
