// Package phase maps a Skeleton to a discrete exercise phase by evaluating
// the active exercise's ordered angle-band rules. Classification is a pure
// function: the same skeleton and configuration always produce the same
// phase, and nothing is mutated along the way.
package phase

import (
	"fmt"

	"github.com/idvorkin/swing-analyzer-sub004/internal/config"
	"github.com/idvorkin/swing-analyzer-sub004/internal/skeleton"
)

// Phase is a named, exercise-specific position within a repetition cycle.
// It carries no data beyond identity.
type Phase string

// None marks a frame on which no phase could be determined (the skeleton
// failed the confidence gate). It propagates as a data gap, never an error.
const None Phase = ""

// Metric names a derived skeleton quantity a rule can bound.
type Metric string

const (
	MetricSpine         Metric = "spine"
	MetricArmToSpine    Metric = "arm_to_spine"
	MetricArmToVertical Metric = "arm_to_vertical"
	MetricHip           Metric = "hip"
	MetricKnee          Metric = "knee"
	MetricWristHeight   Metric = "wrist_height"
)

// rule is a compiled classification rule. Bounds follow the convention
// documented on config.Rule: below is exclusive ("<"), atLeast inclusive
// (">="), so a value exactly at a shared threshold matches exactly one side.
type rule struct {
	phase      Phase
	metric     Metric
	below      *float64
	atLeast    *float64
	isCatchAll bool
}

// Classifier evaluates one exercise's rules.
type Classifier struct {
	rules []rule
}

// NewClassifier compiles an exercise declaration. Rules are kept in
// declaration order; the first match wins.
func NewClassifier(ex config.Exercise) (*Classifier, error) {
	if err := ex.Validate(); err != nil {
		return nil, fmt.Errorf("phase: %w", err)
	}
	c := &Classifier{rules: make([]rule, 0, len(ex.Rules))}
	for i, r := range ex.Rules {
		cr := rule{
			phase:      Phase(r.Phase),
			metric:     Metric(r.Metric),
			below:      r.Below,
			atLeast:    r.AtLeast,
			isCatchAll: r.Below == nil && r.AtLeast == nil,
		}
		if !cr.isCatchAll {
			switch cr.metric {
			case MetricSpine, MetricArmToSpine, MetricArmToVertical,
				MetricHip, MetricKnee, MetricWristHeight:
			default:
				return nil, fmt.Errorf("phase: rule %d: unknown metric %q", i, r.Metric)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Classify returns the phase for one skeleton, or None when the skeleton
// fails the required-keypoint gate.
func (c *Classifier) Classify(s *skeleton.Skeleton) Phase {
	if s == nil || !s.HasRequiredKeypoints() {
		return None
	}
	for _, r := range c.rules {
		if r.isCatchAll {
			return r.phase
		}
		v := metricValue(s, r.metric)
		if r.below != nil && !(v < *r.below) {
			continue
		}
		if r.atLeast != nil && !(v >= *r.atLeast) {
			continue
		}
		return r.phase
	}
	return None
}

func metricValue(s *skeleton.Skeleton, m Metric) float64 {
	switch m {
	case MetricSpine:
		return s.SpineAngle()
	case MetricArmToSpine:
		return s.ArmToSpineAngle()
	case MetricArmToVertical:
		return s.ArmToVerticalAngle()
	case MetricHip:
		return s.HipAngle()
	case MetricKnee:
		return s.KneeAngle()
	case MetricWristHeight:
		_, _, avg, _ := s.WristHeights()
		return avg
	default:
		return 0
	}
}
