package ability

import (
	"fmt"
	"strings"
)

// Condition is a field equality predicate. Conditions on a rule are ANDed.
type Condition struct {
	Field Field
	Value string
}

func Where(field Field, value string) Condition {
	return Condition{Field: field, Value: value}
}

type Rule struct {
	Action     Action
	Subject    SubjectType
	Conditions []Condition
	Inverted   bool
}

func (r Rule) appliesTo(action Action, t SubjectType) bool {
	return r.Subject == t && (r.Action == action || r.Action == Manage)
}

// matches evaluates the rule conditions against s. For a type-level subject a
// conditional grant matches (some instance may qualify) while a conditional deny
// does not (it cannot forbid every instance).
func (r Rule) matches(s Subject) bool {
	if len(r.Conditions) == 0 {
		return true
	}
	if _, typeLevel := s.(SubjectType); typeLevel {
		return !r.Inverted
	}
	for _, c := range r.Conditions {
		v, ok := fieldValue(s, c.Field)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

func (r Rule) String() string {
	var b strings.Builder
	if r.Inverted {
		b.WriteString("cannot ")
	} else {
		b.WriteString("can ")
	}
	fmt.Fprintf(&b, "%s %s", r.Action, r.Subject)
	if len(r.Conditions) > 0 {
		parts := make([]string, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			parts = append(parts, fmt.Sprintf("%s=%s", c.Field, c.Value))
		}
		fmt.Fprintf(&b, " where %s", strings.Join(parts, " and "))
	}
	return b.String()
}

// RuleSet is an ordered rule list. Later rules take precedence over earlier ones.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) RuleSet {
	return RuleSet{rules: append([]Rule(nil), rules...)}
}

func (rs RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

func (rs RuleSet) Empty() bool {
	return len(rs.rules) == 0
}

// Can scans the rules from last to first; the first rule that applies to the
// action and subject decides.
func (rs RuleSet) Can(action Action, subject Subject) bool {
	if subject == nil {
		return false
	}
	t := subject.SubjectType()
	for i := len(rs.rules) - 1; i >= 0; i-- {
		r := rs.rules[i]
		if !r.appliesTo(action, t) || !r.matches(subject) {
			continue
		}
		return !r.Inverted
	}
	return false
}

func (rs RuleSet) Cannot(action Action, subject Subject) bool {
	return !rs.Can(action, subject)
}

// Explain returns the rule that decided Can, if any.
func (rs RuleSet) Explain(action Action, subject Subject) (Rule, bool) {
	if subject == nil {
		return Rule{}, false
	}
	t := subject.SubjectType()
	for i := len(rs.rules) - 1; i >= 0; i-- {
		r := rs.rules[i]
		if r.appliesTo(action, t) && r.matches(subject) {
			return r, true
		}
	}
	return Rule{}, false
}

type ruleBuilder struct {
	rules []Rule
}

func (b *ruleBuilder) can(action Action, subject SubjectType, conds ...Condition) {
	b.rules = append(b.rules, Rule{Action: action, Subject: subject, Conditions: conds})
}

func (b *ruleBuilder) cannot(action Action, subject SubjectType, conds ...Condition) {
	b.rules = append(b.rules, Rule{Action: action, Subject: subject, Conditions: conds, Inverted: true})
}

func (b *ruleBuilder) build() RuleSet {
	return RuleSet{rules: b.rules}
}
