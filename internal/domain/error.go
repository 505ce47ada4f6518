package domain

import "errors"

// Error carries a stable code alongside the message so callers can classify
// failures without string matching.
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "puzzle harness error"
}

const (
	CodeEngineSilent       = "engine_silent"
	CodeMoveMismatch       = "move_mismatch"
	CodeEngineUnresponsive = "engine_unresponsive"
	CodeCorpusMalformed    = "corpus_malformed"
)

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) string {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
