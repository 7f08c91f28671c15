package service

import (
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultConfidenceThreshold gates materialization of deduced links.
	DefaultConfidenceThreshold = 0.1

	// ObservationConfidence is the fixed confidence assigned to a direct
	// observation before it is revised into the existing belief.
	ObservationConfidence = 0.9

	// accessCountScale is the k in count/(count+k), the factor that makes
	// frequently observed atoms more trustworthy predictors.
	accessCountScale = 10.0

	// Attention deltas applied by observation outcomes. A failure raises LTI
	// more than a success: failing entities need long-term attention.
	successSTIDelta = 5
	successLTIDelta = 1
	failureSTIDelta = -10
	failureLTIDelta = 2
)

// Revise merges two independent observations of the same belief.
// Commutative; with both confidences positive the result's confidence is at
// least as large as either input's. Two vacuous inputs produce maximum
// uncertainty {0.5, 0}.
func Revise(tv1, tv2 domain.TruthValue) domain.TruthValue {
	csum := tv1.Confidence + tv2.Confidence
	if csum <= 0 {
		return domain.TruthValue{Strength: 0.5, Confidence: 0.0}
	}
	return domain.TruthValue{
		Strength:   (tv1.Strength*tv1.Confidence + tv2.Strength*tv2.Confidence) / csum,
		Confidence: csum / (1.0 + tv1.Confidence*tv2.Confidence),
	}
}

// Similarity scores how alike two atoms are: an average of a kind-match
// indicator and the closeness of their strengths, with confidence the mean of
// what is known about each. An atom is perfectly similar to itself.
func Similarity(a1, a2 domain.Atom) domain.TruthValue {
	if a1.Handle == a2.Handle {
		return domain.TruthValue{Strength: 1.0, Confidence: 1.0}
	}

	kindMatch := float32(0.0)
	if a1.Kind == a2.Kind {
		kindMatch = 1.0
	}
	closeness := 1.0 - abs32(a1.TV.Strength-a2.TV.Strength)

	return domain.TruthValue{
		Strength:   (kindMatch + closeness) / 2.0,
		Confidence: (a1.TV.Confidence + a2.TV.Confidence) / 2.0,
	}
}

// InferenceService runs PLN-style inference over a hypergraph: deduction
// across edge pairs, outcome-driven belief updates, and prediction from
// accumulated evidence.
type InferenceService struct {
	graph  *store.Hypergraph
	logger *zap.Logger

	ConfidenceThreshold float32

	inferences  atomic.Uint64
	rules       atomic.Uint64
	predictions atomic.Uint64
}

func NewInferenceService(graph *store.Hypergraph, logger *zap.Logger) *InferenceService {
	return &InferenceService{
		graph:               graph,
		logger:              logger,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Deduce applies the deduction rule: from A→B and B→C infer A→C with
// strength sAB·sBC and confidence cAB·cBC·sBC. The second link's source must
// be the first link's target; otherwise no inference is produced (nil, nil).
// The inferred link is materialized in the store only when its confidence
// clears the threshold.
func (s *InferenceService) Deduce(ab, bc domain.Link) (*domain.Link, error) {
	if ab.Arity() < 2 || bc.Arity() < 2 {
		return nil, nil
	}
	if ab.Outgoing[1] != bc.Outgoing[0] {
		return nil, nil
	}

	tv := domain.TruthValue{
		Strength:   ab.TV.Strength * bc.TV.Strength,
		Confidence: ab.TV.Confidence * bc.TV.Confidence * bc.TV.Strength,
	}
	if tv.Confidence < s.ConfidenceThreshold {
		return nil, nil
	}

	link, err := s.graph.CreateLink(ab.Kind, []uint64{ab.Outgoing[0], bc.Outgoing[1]})
	if err != nil {
		return nil, err
	}
	if err := s.graph.SetLinkTruthValue(link.Handle, tv.Strength, tv.Confidence); err != nil {
		return nil, err
	}
	link.TV = tv

	s.inferences.Add(1)
	s.rules.Add(1)
	s.logger.Debug("deduction materialized",
		zap.Uint64("link", link.Handle),
		zap.Float32("strength", tv.Strength),
		zap.Float32("confidence", tv.Confidence))
	return &link, nil
}

// UpdateFromObservation folds an observed sync outcome into an atom's belief
// and shifts its attention. Success nudges short-term importance up; failure
// drops it sharply while raising long-term importance, flagging the atom as
// needing attention. Returns the revised truth value.
func (s *InferenceService) UpdateFromObservation(handle uint64, success bool, duration time.Duration, bytes uint64) (domain.TruthValue, error) {
	atom, err := s.graph.PeekAtom(handle)
	if err != nil {
		return domain.TruthValue{}, err
	}

	observation := domain.TruthValue{Strength: 0.0, Confidence: ObservationConfidence}
	if success {
		observation.Strength = 1.0
	}
	revised := Revise(atom.TV, observation)

	if err := s.graph.SetTruthValue(handle, revised.Strength, revised.Confidence); err != nil {
		return domain.TruthValue{}, err
	}

	sti, lti := int32(atom.AV.STI), int32(atom.AV.LTI)
	if success {
		sti += successSTIDelta
		lti += successLTIDelta
	} else {
		sti += failureSTIDelta
		lti += failureLTIDelta
	}
	if err := s.graph.SetSTI(handle, sti); err != nil {
		return domain.TruthValue{}, err
	}
	if err := s.graph.SetLTI(handle, lti); err != nil {
		return domain.TruthValue{}, err
	}
	if err := s.graph.RecordAccess(handle); err != nil {
		return domain.TruthValue{}, err
	}

	s.logger.Debug("observation applied",
		zap.Uint64("atom", handle),
		zap.Bool("success", success),
		zap.Duration("duration", duration),
		zap.Uint64("bytes", bytes),
		zap.Float32("strength", revised.Strength),
		zap.Float32("confidence", revised.Confidence))
	return revised, nil
}

// Predict estimates an atom's truth value going forward. Confidence is scaled
// by count/(count+k), so beliefs backed by more observations count for more,
// and positive short-term importance nudges the predicted strength upward.
func (s *InferenceService) Predict(handle uint64) (domain.TruthValue, error) {
	atom, err := s.graph.PeekAtom(handle)
	if err != nil {
		return domain.TruthValue{}, err
	}

	prediction := atom.TV
	if atom.AccessCount > 0 {
		factor := float32(float64(atom.AccessCount) / (float64(atom.AccessCount) + accessCountScale))
		prediction.Confidence *= factor
	}
	if atom.AV.STI > 0 {
		boosted := prediction.Strength * (1.0 + float32(atom.AV.STI)/100.0)
		if boosted > 1.0 {
			boosted = 1.0
		}
		prediction.Strength = boosted
	}

	s.predictions.Add(1)
	return prediction, nil
}

// SimilarityByHandle resolves both atoms and scores their similarity.
func (s *InferenceService) SimilarityByHandle(h1, h2 uint64) (domain.TruthValue, error) {
	a1, err := s.graph.PeekAtom(h1)
	if err != nil {
		return domain.TruthValue{}, err
	}
	a2, err := s.graph.PeekAtom(h2)
	if err != nil {
		return domain.TruthValue{}, err
	}
	return Similarity(a1, a2), nil
}

// InferenceCounters reports how much work the engine has done.
type InferenceCounters struct {
	Inferences  uint64 `json:"inferences_performed"`
	Rules       uint64 `json:"rules_applied"`
	Predictions uint64 `json:"predictions_made"`
}

func (s *InferenceService) Counters() InferenceCounters {
	return InferenceCounters{
		Inferences:  s.inferences.Load(),
		Rules:       s.rules.Load(),
		Predictions: s.predictions.Load(),
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
