package uci

import "strings"

const (
	startPosToken = "startpos"
	goCommand     = "go"
	quitCommand   = "quit"
)

// PositionCommand encodes the full path from base. It never diffs against an
// earlier call: the engine gets the complete history on every request.
func PositionCommand(base string, moves []string) string {
	var sb strings.Builder
	base = strings.TrimSpace(base)
	if base == "" || base == startPosToken {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(base)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

func GoCommand() string { return goCommand }

func QuitCommand() string { return quitCommand }
