package service

import (
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
)

// SyncPattern summarizes the observed behavior of one module atom: how often
// it synced, how often that went well, and what the engine expects next time.
type SyncPattern struct {
	ModuleName      string            `json:"module_name"`
	TotalSyncs      uint32            `json:"total_syncs"`
	SuccessfulSyncs uint32            `json:"successful_syncs"`
	FailedSyncs     uint32            `json:"failed_syncs"`
	SuccessRate     float32           `json:"success_rate"`
	LastSync        time.Time         `json:"last_sync"`
	Predicted       domain.TruthValue `json:"predicted"`
}

// SyncPatterns discovers per-module sync patterns by enumerating Module atoms.
// Success counts are estimated from the belief strength: the truth value is
// the compressed history of every observation folded into it.
func (s *InferenceService) SyncPatterns(max int) []SyncPattern {
	var patterns []SyncPattern
	for _, atom := range s.graph.EnumerateByKind(domain.AtomModule) {
		if max > 0 && len(patterns) == max {
			break
		}

		successes := uint32(float32(atom.AccessCount) * atom.TV.Strength)
		predicted, err := s.Predict(atom.Handle)
		if err != nil {
			continue
		}
		patterns = append(patterns, SyncPattern{
			ModuleName:      atom.Name,
			TotalSyncs:      atom.AccessCount,
			SuccessfulSyncs: successes,
			FailedSyncs:     atom.AccessCount - successes,
			SuccessRate:     atom.TV.Strength,
			LastSync:        atom.LastAccessedAt,
			Predicted:       predicted,
		})
	}
	return patterns
}

// Sync intervals by importance band. Unreliable modules get their interval
// halved: low belief strength means the module needs checking more often.
const (
	intervalHighImportance   = 5 * time.Minute
	intervalMediumImportance = 15 * time.Minute
	intervalLowImportance    = time.Hour
	intervalIdle             = 4 * time.Hour
)

// OptimalInterval derives a sync interval for an atom from its short-term
// importance and belief strength.
func (s *InferenceService) OptimalInterval(handle uint64) (time.Duration, error) {
	atom, err := s.graph.PeekAtom(handle)
	if err != nil {
		return 0, err
	}

	importance := (float64(atom.AV.STI) + 100.0) / 200.0

	var interval time.Duration
	switch {
	case importance > 0.8:
		interval = intervalHighImportance
	case importance > 0.5:
		interval = intervalMediumImportance
	case importance > 0.2:
		interval = intervalLowImportance
	default:
		interval = intervalIdle
	}

	if atom.TV.Strength < 0.5 {
		interval /= 2
	}
	return interval, nil
}
