// Package evasion holds the conflict response strategies and the responder
// that dispatches tracker events to them.
package evasion

import (
	"errors"
	"fmt"

	"airspace-sim/internal/uav"
)

// ErrUnknownStrategy is returned for strategy names that are not known.
var ErrUnknownStrategy = errors.New("evasion: unknown strategy")

// EvasionKind selects the strategy run when an Awareness conflict starts.
type EvasionKind string

const (
	EvasionNone       EvasionKind = "none"
	EvasionDeflection EvasionKind = "deflection"
	EvasionWaitAndGo  EvasionKind = "wait_and_go"
	EvasionRepulsion  EvasionKind = "repulsion"
)

// ReactionKind selects the strategy run when a Reaction conflict starts.
type ReactionKind string

const (
	ReactionNone            ReactionKind = "none"
	ReactionGoBack          ReactionKind = "go_back"
	ReactionHorizontalPlane ReactionKind = "horizontal_plane"
	ReactionRepulsion       ReactionKind = "repulsion"
)

// EvasionKinds lists the accepted evasion names.
var EvasionKinds = []EvasionKind{EvasionNone, EvasionDeflection, EvasionWaitAndGo, EvasionRepulsion}

// ReactionKinds lists the accepted reaction names.
var ReactionKinds = []ReactionKind{ReactionNone, ReactionGoBack, ReactionHorizontalPlane, ReactionRepulsion}

// ParseEvasion validates an evasion name.
func ParseEvasion(s string) (EvasionKind, error) {
	for _, k := range EvasionKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: evasion %q", ErrUnknownStrategy, s)
}

// ParseReaction validates a reaction name.
func ParseReaction(s string) (ReactionKind, error) {
	for _, k := range ReactionKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: reaction %q", ErrUnknownStrategy, s)
}

// Strategy responds to a conflict between self and other. Apply reports
// whether self changed course.
type Strategy interface {
	Name() string
	Apply(now float64, self, other *uav.Agent) bool
}

// Registry resolves live agents by id.
type Registry interface {
	Agent(id int) (*uav.Agent, bool)
}

type noop struct{}

func (noop) Name() string                               { return "none" }
func (noop) Apply(float64, *uav.Agent, *uav.Agent) bool { return false }

// ForEvasion builds the strategy for an evasion kind.
func ForEvasion(kind EvasionKind, reg Registry, yield bool) (Strategy, error) {
	switch kind {
	case EvasionNone:
		return noop{}, nil
	case EvasionDeflection:
		return Deflection{YieldToEvader: yield}, nil
	case EvasionWaitAndGo:
		return WaitAndGo{YieldToEvader: yield}, nil
	case EvasionRepulsion:
		return Repulsion{Registry: reg, Params: EvasionRepulsionParams, YieldToEvader: yield}, nil
	}
	return nil, fmt.Errorf("%w: evasion %q", ErrUnknownStrategy, kind)
}

// ForReaction builds the strategy for a reaction kind.
func ForReaction(kind ReactionKind, reg Registry) (Strategy, error) {
	switch kind {
	case ReactionNone:
		return noop{}, nil
	case ReactionGoBack:
		return GoBack{Registry: reg}, nil
	case ReactionHorizontalPlane:
		return HorizontalPlane{Registry: reg}, nil
	case ReactionRepulsion:
		return Repulsion{Registry: reg, Params: ReactionRepulsionParams}, nil
	}
	return nil, fmt.Errorf("%w: reaction %q", ErrUnknownStrategy, kind)
}
