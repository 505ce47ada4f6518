package harness

// Position is a base FEN plus every move applied since. It only grows.
type Position struct {
	base  string
	moves []string
}

func NewPosition(base string) *Position {
	return &Position{base: base}
}

func (p *Position) Base() string { return p.base }

func (p *Position) Apply(move string) {
	p.moves = append(p.moves, move)
}

// Moves returns a copy of the applied history.
func (p *Position) Moves() []string {
	return append([]string(nil), p.moves...)
}

func (p *Position) Len() int { return len(p.moves) }
