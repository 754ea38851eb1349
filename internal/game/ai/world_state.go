package ai

import "github.com/cory-johannsen/skirmish/internal/game/grid"

// UnitSnapshot captures one living unit as reported by the host.
type UnitSnapshot struct {
	ID     int `yaml:"id"`
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	HP     int `yaml:"hp"`
	Damage int `yaml:"damage"`
	Range  int `yaml:"range"`
}

// Cell returns the unit's position.
func (u UnitSnapshot) Cell() grid.Cell { return grid.Cell{X: u.X, Y: u.Y} }

// Snapshot is the host's view of the battlefield at one decision point.
type Snapshot struct {
	Width     int
	Height    int
	Blocked   []grid.Cell
	Attackers []UnitSnapshot
	Defenders []UnitSnapshot
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Width:     s.Width,
		Height:    s.Height,
		Blocked:   append([]grid.Cell(nil), s.Blocked...),
		Attackers: append([]UnitSnapshot(nil), s.Attackers...),
		Defenders: append([]UnitSnapshot(nil), s.Defenders...),
	}
}

// Living returns the units of a roster with HP > 0.
//
// Postcondition: returned slice contains no dead units and does not alias the input.
func Living(units []UnitSnapshot) []UnitSnapshot {
	var out []UnitSnapshot
	for _, u := range units {
		if u.HP > 0 {
			out = append(out, u)
		}
	}
	return out
}

// Find returns the unit with id from either roster.
func (s *Snapshot) Find(id int) (UnitSnapshot, bool) {
	for _, u := range s.Attackers {
		if u.ID == id {
			return u, true
		}
	}
	for _, u := range s.Defenders {
		if u.ID == id {
			return u, true
		}
	}
	return UnitSnapshot{}, false
}

// Occupied returns the cells of every living unit except the one with skipID.
func (s *Snapshot) Occupied(skipID int) map[grid.Cell]bool {
	out := make(map[grid.Cell]bool, len(s.Attackers)+len(s.Defenders))
	for _, u := range append(Living(s.Attackers), Living(s.Defenders)...) {
		if u.ID != skipID {
			out[u.Cell()] = true
		}
	}
	return out
}
