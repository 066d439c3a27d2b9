package parity

import "github.com/Dryxio/auto-re-agent/internal/core"

// Score collapses findings into the single worst status: red beats yellow
// beats green. Info findings never change the status.
func Score(findings []core.Finding) core.ParityStatus {
	hasYellow := false
	for _, f := range findings {
		switch f.Level {
		case core.LevelRed:
			return core.ParityRed
		case core.LevelYellow:
			hasYellow = true
		}
	}
	if hasYellow {
		return core.ParityYellow
	}
	return core.ParityGreen
}
