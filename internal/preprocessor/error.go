package preprocessor

import (
	"fmt"

	"github.com/pi4erd/sarch32asm/internal/token"
)

// Error is a preprocessor-stage diagnostic carrying a source position.
type Error struct {
	Pos     token.Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}
