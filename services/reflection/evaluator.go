// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reflection

import (
	"log/slog"
	"strings"
)

// Violation reports one rule the draft text tripped.
type Violation struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Term        string   `json:"term"`
}

// Evaluation is the judge's verdict on a draft.
//
// OK is false only when a block-severity rule was violated. Warn violations
// appear in Violations with OK still true.
type Evaluation struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations"`
}

// Reflector judges draft text against a fixed constitution.
type Reflector struct {
	rules []Rule
}

// NewReflector builds a judge over the given rules. With no rules supplied
// it uses DefaultConstitution.
func NewReflector(rules ...Rule) *Reflector {
	if len(rules) == 0 {
		rules = DefaultConstitution()
	}
	slog.Info("Initializing reflector", "rules", len(rules))
	return &Reflector{rules: rules}
}

// Judge evaluates text against every rule in order.
//
// # Description
//
// Pure function of the text and the constitution: matching is a
// case-insensitive substring search, every violated rule contributes one
// violation per first matching term, and rule order is preserved in the
// output. Empty text trivially passes.
func (r *Reflector) Judge(text string) Evaluation {
	eval := Evaluation{OK: true, Violations: []Violation{}}
	if text == "" {
		return eval
	}

	lowered := strings.ToLower(text)
	for _, rule := range r.rules {
		for _, term := range rule.Terms {
			if strings.Contains(lowered, strings.ToLower(term)) {
				eval.Violations = append(eval.Violations, Violation{
					RuleID:      rule.ID,
					Severity:    rule.Severity,
					Description: rule.Description,
					Term:        term,
				})
				if rule.Severity == SeverityBlock {
					eval.OK = false
				}
				break
			}
		}
	}
	return eval
}

// ViolationMaps renders violations as generic maps for feedback tails.
func ViolationMaps(violations []Violation) []map[string]any {
	out := make([]map[string]any, 0, len(violations))
	for _, v := range violations {
		out = append(out, map[string]any{
			"rule_id":     v.RuleID,
			"severity":    string(v.Severity),
			"description": v.Description,
			"term":        v.Term,
		})
	}
	return out
}
