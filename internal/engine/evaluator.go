package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pulsemetrics/pulseboard/pkg/metrics"
)

// Default priority per rule type. A condition result can escalate one level.
var rulePriorities = map[RuleType]Priority{
	RuleMentionSpike:       PriorityHigh,
	RuleSentimentDrop:      PriorityMedium,
	RuleCompetitorActivity: PriorityMedium,
	RuleKeywordRanking:     PriorityLow,
}

// Notification type synthesized per rule type.
var ruleNotificationTypes = map[RuleType]Type{
	RuleMentionSpike:       TypeMention,
	RuleSentimentDrop:      TypeAlert,
	RuleCompetitorActivity: TypeCompetitor,
	RuleKeywordRanking:     TypeReport,
}

// Evaluator decides whether alert rules fire against a batch of metric
// samples and synthesizes candidate notifications for the ones that do.
type Evaluator struct {
	clock func() time.Time
	log   *zap.Logger
}

// NewEvaluator constructs an evaluator with the supplied clock. A nil clock
// falls back to time.Now; a nil logger is replaced with a no-op.
func NewEvaluator(clock func() time.Time, log *zap.Logger) *Evaluator {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{clock: clock, log: log}
}

type conditionResult struct {
	ok       bool
	escalate bool
	summary  string
}

// Evaluate runs the rule against the sample batch. Every condition must
// hold for the rule to fire; lastTriggered moves only on an actual fire and
// feeds the cool-down check on subsequent cycles.
func (e *Evaluator) Evaluate(rule *Rule, samples []MetricSample) (Notification, bool) {
	if !rule.Active {
		metrics.RuleEvaluations.WithLabelValues("skipped").Inc()
		return Notification{}, false
	}

	now := e.clock().UTC()
	if rule.Cooldown > 0 && rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < rule.Cooldown {
		metrics.RuleEvaluations.WithLabelValues("skipped").Inc()
		return Notification{}, false
	}

	escalate := false
	summaries := make([]string, 0, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		result := evaluateCondition(cond, samples)
		if !result.ok {
			metrics.RuleEvaluations.WithLabelValues("idle").Inc()
			return Notification{}, false
		}
		escalate = escalate || result.escalate
		summaries = append(summaries, result.summary)
	}

	rule.LastTriggered = &now
	metrics.RuleEvaluations.WithLabelValues("fired").Inc()

	notifType, ok := ruleNotificationTypes[rule.Type]
	if !ok {
		notifType = TypeAlert
	}
	priority, ok := rulePriorities[rule.Type]
	if !ok {
		priority = PriorityMedium
	}
	if escalate {
		priority = priority.Escalate()
	}

	e.log.Debug("rule fired",
		zap.String("rule_id", rule.ID),
		zap.String("rule_name", rule.Name),
		zap.String("priority", string(priority)),
	)

	return Notification{
		Type:     notifType,
		Priority: priority,
		Title:    rule.Name,
		Message:  strings.Join(summaries, "; "),
		Channels: append([]Channel(nil), rule.Channels...),
		Metadata: map[string]any{
			"ruleId":   rule.ID,
			"ruleType": string(rule.Type),
		},
	}, true
}

func evaluateCondition(cond Condition, samples []MetricSample) conditionResult {
	switch cond.Type {
	case ConditionMention:
		return evaluateMention(cond, samples)
	case ConditionSentimentDrop:
		return evaluateSentimentDrop(cond, samples)
	case ConditionCompetitorMention:
		return evaluateCompetitorMention(cond, samples)
	case ConditionPositionChange:
		return evaluatePositionChange(samples)
	case ConditionNewCitation:
		return evaluateNewCitation(cond, samples)
	}
	return conditionResult{}
}

// evaluateMention counts samples signalling a brand mention and compares
// the count against the threshold (>= unless an operator is supplied).
func evaluateMention(cond Condition, samples []MetricSample) conditionResult {
	count := 0
	for _, sample := range samples {
		if sample.BrandMentioned {
			count++
		}
	}

	op := cond.Operator
	if op == "" {
		op = OpGreaterEqual
	}
	return conditionResult{
		ok:      op.apply(float64(count), cond.Threshold),
		summary: fmt.Sprintf("%d brand mentions detected", count),
	}
}

// evaluateSentimentDrop averages sentiment over the batch and compares it
// against the threshold (<= unless an operator is supplied). An average at
// or below half the threshold escalates the fired priority one level.
func evaluateSentimentDrop(cond Condition, samples []MetricSample) conditionResult {
	if len(samples) == 0 {
		return conditionResult{}
	}

	total := 0.0
	for _, sample := range samples {
		total += sample.Sentiment
	}
	avg := total / float64(len(samples))

	op := cond.Operator
	if op == "" {
		op = OpLessEqual
	}
	return conditionResult{
		ok:       op.apply(avg, cond.Threshold),
		escalate: cond.Threshold > 0 && avg <= cond.Threshold/2,
		summary:  fmt.Sprintf("average sentiment %.2f", avg),
	}
}

// evaluateCompetitorMention checks for a non-empty set of competitor names
// across the batch; with a threshold set, the distinct count is compared
// instead. A condition value narrows the check to that one competitor,
// matched case-insensitively.
func evaluateCompetitorMention(cond Condition, samples []MetricSample) conditionResult {
	watched := strings.ToLower(strings.TrimSpace(cond.Value))

	seen := make(map[string]struct{})
	for _, sample := range samples {
		for _, name := range sample.CompetitorsMentioned {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if watched != "" && name != watched {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	ok := len(seen) > 0
	if cond.Threshold > 0 {
		op := cond.Operator
		if op == "" {
			op = OpGreaterEqual
		}
		ok = op.apply(float64(len(seen)), cond.Threshold)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return conditionResult{
		ok:      ok,
		summary: fmt.Sprintf("competitors active: %s", strings.Join(names, ", ")),
	}
}

// evaluatePositionChange flags when any sample's position delta exceeds 1 in
// absolute value; a swing of 3 or more ranks escalates.
func evaluatePositionChange(samples []MetricSample) conditionResult {
	largest := 0
	for _, sample := range samples {
		if abs := int(math.Abs(float64(sample.PositionDelta))); abs > largest {
			largest = abs
		}
	}
	return conditionResult{
		ok:       largest > 1,
		escalate: largest >= 3,
		summary:  fmt.Sprintf("largest position swing %d", largest),
	}
}

// evaluateNewCitation sums citation counts across the batch and checks for a
// positive total (or compares against the threshold when set).
func evaluateNewCitation(cond Condition, samples []MetricSample) conditionResult {
	total := 0
	for _, sample := range samples {
		total += sample.CitationCount
	}

	ok := total > 0
	if cond.Threshold > 0 {
		op := cond.Operator
		if op == "" {
			op = OpGreaterEqual
		}
		ok = op.apply(float64(total), cond.Threshold)
	}
	return conditionResult{
		ok:      ok,
		summary: fmt.Sprintf("%d new citations", total),
	}
}
