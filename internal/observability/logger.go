package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns the global logger scoped to one node and subsystem.
func Component(node, name string) zerolog.Logger {
	return log.Logger.With().Str("node", node).Str("component", name).Logger()
}
