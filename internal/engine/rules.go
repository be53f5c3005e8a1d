package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
)

// RuleType identifies what kind of alert a rule watches for.
type RuleType string

const (
	RuleMentionSpike       RuleType = "mention_spike"
	RuleSentimentDrop      RuleType = "sentiment_drop"
	RuleCompetitorActivity RuleType = "competitor_activity"
	RuleKeywordRanking     RuleType = "keyword_ranking"
)

// Valid reports whether the rule type is known.
func (t RuleType) Valid() bool {
	switch t {
	case RuleMentionSpike, RuleSentimentDrop, RuleCompetitorActivity, RuleKeywordRanking:
		return true
	}
	return false
}

// ConditionType identifies the aggregate a condition computes over a batch
// of metric samples.
type ConditionType string

const (
	ConditionMention           ConditionType = "mention"
	ConditionSentimentDrop     ConditionType = "sentiment_drop"
	ConditionCompetitorMention ConditionType = "competitor_mention"
	ConditionPositionChange    ConditionType = "position_change"
	ConditionNewCitation       ConditionType = "new_citation"
)

// Valid reports whether the condition type is known.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionMention, ConditionSentimentDrop, ConditionCompetitorMention,
		ConditionPositionChange, ConditionNewCitation:
		return true
	}
	return false
}

// Operator compares an aggregate against a threshold.
type Operator string

const (
	OpGreater      Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLess         Operator = "lt"
	OpLessEqual    Operator = "lte"
	OpEqual        Operator = "eq"
)

func (o Operator) apply(value, threshold float64) bool {
	switch o {
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLess:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	}
	return false
}

// Condition is a single predicate over the current sample batch. Threshold
// and Operator are optional; each condition type has a sensible default.
type Condition struct {
	Type      ConditionType `json:"type"`
	Threshold float64       `json:"threshold,omitempty"`
	Operator  Operator      `json:"comparisonOperator,omitempty"`
	Value     string        `json:"value,omitempty"`
}

// Rule fires when all of its conditions hold against a sample batch
// (logical AND). Inactive rules are never evaluated.
type Rule struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          RuleType      `json:"type"`
	Conditions    []Condition   `json:"conditions"`
	Channels      []Channel     `json:"channels"`
	Active        bool          `json:"active"`
	Cooldown      time.Duration `json:"cooldown,omitempty"`
	LastTriggered *time.Time    `json:"lastTriggered,omitempty"`
}

// Clone deep-copies the rule.
func (r Rule) Clone() Rule {
	cpy := r
	cpy.Conditions = append([]Condition(nil), r.Conditions...)
	cpy.Channels = append([]Channel(nil), r.Channels...)
	if r.LastTriggered != nil {
		t := *r.LastTriggered
		cpy.LastTriggered = &t
	}
	return cpy
}

func validateRule(r Rule) error {
	if r.Name == "" {
		return apperrors.NewValidation("rule name is required")
	}
	if !r.Type.Valid() {
		return apperrors.NewValidation(fmt.Sprintf("unknown rule type %q", r.Type))
	}
	if len(r.Conditions) == 0 {
		return apperrors.NewValidation("rule requires at least one condition")
	}
	for _, cond := range r.Conditions {
		if !cond.Type.Valid() {
			return apperrors.NewValidation(fmt.Sprintf("unknown condition type %q", cond.Type))
		}
		if cond.Operator != "" {
			switch cond.Operator {
			case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual:
			default:
				return apperrors.NewValidation(fmt.Sprintf("unknown comparison operator %q", cond.Operator))
			}
		}
	}
	for _, ch := range r.Channels {
		if !ch.Valid() {
			return apperrors.NewValidation(fmt.Sprintf("unknown channel %q", ch))
		}
	}
	if r.Cooldown < 0 {
		return apperrors.NewValidation("cooldown cannot be negative")
	}
	return nil
}

// RuleSet owns the alert rule definitions for one feed. Evaluation runs
// under the set's lock so lastTriggered updates are never lost.
type RuleSet struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	order []string
}

// NewRuleSet constructs an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]*Rule)}
}

// Add validates and stores a rule, assigning an id when absent.
func (s *RuleSet) Add(rule Rule) (Rule, error) {
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rule.Clone()
	if _, exists := s.rules[rule.ID]; !exists {
		s.order = append(s.order, rule.ID)
	}
	s.rules[rule.ID] = &stored
	return stored.Clone(), nil
}

// Update replaces an existing rule, preserving its lastTriggered mark.
func (s *RuleSet) Update(rule Rule) (Rule, error) {
	if rule.ID == "" {
		return Rule{}, apperrors.NewBadRequest("rule id is required")
	}
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return Rule{}, apperrors.ErrNotFound
	}

	stored := rule.Clone()
	stored.LastTriggered = existing.LastTriggered
	s.rules[rule.ID] = &stored
	return stored.Clone(), nil
}

// SetActive toggles a rule's active flag; an explicit, externally-triggered
// transition with no automatic counterpart.
func (s *RuleSet) SetActive(id string, active bool) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return Rule{}, apperrors.ErrNotFound
	}
	rule.Active = active
	return rule.Clone(), nil
}

// Delete removes a rule. Absent ids are silent no-ops.
func (s *RuleSet) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return false
	}
	delete(s.rules, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a rule by id.
func (s *RuleSet) Get(id string) (Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return Rule{}, apperrors.ErrNotFound
	}
	return rule.Clone(), nil
}

// List returns all rules in insertion order.
func (s *RuleSet) List() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Rule, 0, len(s.order))
	for _, id := range s.order {
		if rule, ok := s.rules[id]; ok {
			result = append(result, rule.Clone())
		}
	}
	return result
}

// Load replaces the full rule set, used when restoring a snapshot.
func (s *RuleSet) Load(rules []Rule) error {
	for _, rule := range rules {
		if err := validateRule(rule); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make(map[string]*Rule, len(rules))
	s.order = s.order[:0]
	for _, rule := range rules {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		stored := rule.Clone()
		s.rules[rule.ID] = &stored
		s.order = append(s.order, rule.ID)
	}
	return nil
}

// EvaluateAll runs every rule against the sample batch and returns the
// synthesized candidates. Each rule fires at most once per batch regardless
// of how many conditions matched; lastTriggered updates happen under the
// set's lock so a concurrent snapshot never observes a half-fired rule.
func (s *RuleSet) EvaluateAll(ev *Evaluator, samples []MetricSample) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []Notification
	for _, id := range s.order {
		rule, ok := s.rules[id]
		if !ok {
			continue
		}
		if candidate, ok := ev.Evaluate(rule, samples); ok {
			fired = append(fired, candidate)
		}
	}
	return fired
}
