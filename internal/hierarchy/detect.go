package hierarchy

import (
	"log/slog"

	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
)

// TopModules returns, in registry enumeration order, every module that no
// record instantiates. A module that only instantiates itself has a parent
// and is therefore not top-level. An empty result is a valid outcome.
func TopModules(reg *registry.Registry) []string {
	tops := []string{}
	for _, name := range reg.Names() {
		if len(reg.ParentsOf(name)) == 0 {
			tops = append(tops, name)
		}
	}
	return tops
}

// DetectTopModules is TopModules with logging of the outcome.
func DetectTopModules(reg *registry.Registry, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tops := TopModules(reg)
	if len(tops) == 0 {
		logger.Info("no top module found", slog.Int("modules", reg.Len()))
		return tops
	}
	logger.Debug("top modules detected", slog.Any("tops", tops))
	return tops
}
