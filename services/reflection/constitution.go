// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reflection evaluates generated drafts against a constitution of
// rules before they are logged. A rule with block severity stops the draft
// outright; a rule with warn severity lets it through annotated with the
// violation so human reviewers see it in the feedback tail.
package reflection

// Severity controls what a violated rule does to the evaluation outcome.
type Severity string

const (
	// SeverityBlock fails the evaluation; the draft must not be logged.
	SeverityBlock Severity = "block"
	// SeverityWarn records the violation but does not fail the evaluation.
	SeverityWarn Severity = "warn"
)

// Rule is one constitutional constraint. A rule is violated when any of its
// Terms appears in the draft text, case-insensitively.
type Rule struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Terms       []string `json:"terms"`
}

// DefaultConstitution returns the rules governing clinical intake drafts.
//
// # Description
//
// The drafting model summarizes; it does not diagnose, prescribe, or expose
// identities. These rules catch the phrasings where a draft crosses those
// lines. Term matching is deliberately blunt: the judge must be a pure
// function of the text so the same draft always evaluates the same way.
func DefaultConstitution() []Rule {
	return []Rule{
		{
			ID:          "no_diagnosis_guarantee",
			Description: "Drafts must not assert a definitive diagnosis or rule conditions out; that is the clinician's call.",
			Severity:    SeverityBlock,
			Terms: []string{
				"definitely has", "certainly has", "diagnosis is confirmed",
				"ruled out entirely", "is cured", "guaranteed to be",
			},
		},
		{
			ID:          "no_treatment_directive",
			Description: "Drafts must not direct treatment or dosing; they summarize the encounter only.",
			Severity:    SeverityBlock,
			Terms: []string{
				"must take", "should immediately take", "prescribe", "increase the dose",
				"stop taking", "double the dose",
			},
		},
		{
			ID:          "no_identity_leakage",
			Description: "Drafts must not carry direct identifiers; those stay out of the hashed payload.",
			Severity:    SeverityBlock,
			Terms: []string{
				"ssn", "social security", "date of birth", "home address",
				"phone number", "medical record number",
			},
		},
		{
			ID:          "no_dismissive_tone",
			Description: "Drafts should stay objective and clinical; dismissive or judgmental language gets flagged for review.",
			Severity:    SeverityWarn,
			Terms: []string{
				"malingering", "drug-seeking", "hysterical", "exaggerating",
				"non-compliant patient",
			},
		},
		{
			ID:          "no_speculation",
			Description: "Drafts should not speculate beyond the source material; hedged guesses get flagged for review.",
			Severity:    SeverityWarn,
			Terms: []string{
				"probably suffers from", "most likely has", "i suspect",
			},
		},
	}
}
