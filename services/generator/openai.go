// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

const intakeSystemPrompt = "You are a clinical documentation assistant. " +
	"Generate a concise History of Present Illness (HPI) summary from the " +
	"provided transcript and vitals. Be objective and clinical in tone. Do " +
	"not add information not present in the source. Respond with a JSON " +
	"object with one key: \"hpi_summary\"."

// OpenAIGenerator drafts intake summaries through the OpenAI chat API.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	adapterID string
}

// NewOpenAIGenerator builds an OpenAI-backed generator.
func NewOpenAIGenerator(apiKey, model, adapterID string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		slog.Error("OpenAI generator selected but no API key supplied")
		return nil, fmt.Errorf("openai generator: API key not set")
	}
	if model == "" {
		model = openai.GPT4oMini
		slog.Warn("OpenAI model not set, defaulting", "model", model)
	}
	slog.Info("Initializing OpenAI generator", "model", model, "adapter_id", adapterID)
	return &OpenAIGenerator{
		client:    openai.NewClient(apiKey),
		model:     model,
		adapterID: adapterID,
	}, nil
}

// DraftIntake implements the Generator interface.
func (g *OpenAIGenerator) DraftIntake(ctx context.Context, transcript string, vitals map[string]any) (Draft, error) {
	if vitals == nil {
		vitals = map[string]any{}
	}
	vitalsJSON, err := json.Marshal(vitals)
	if err != nil {
		return Draft{}, fmt.Errorf("encode vitals: %w", err)
	}
	prompt := fmt.Sprintf("Transcript:\n%q\n\nVitals:\n%s\n\nJSON Output:", transcript, vitalsJSON)

	slog.Debug("Generating intake draft via OpenAI", "model", g.model)
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intakeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return Draft{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return Draft{}, fmt.Errorf("OpenAI returned no choices")
	}

	var generated struct {
		HPISummary string `json:"hpi_summary"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &generated); err != nil {
		slog.Error("Failed to decode model output", "error", err)
		return Draft{}, fmt.Errorf("decode model output: %w", err)
	}
	slog.Debug("Received intake draft", "finish_reason", resp.Choices[0].FinishReason)

	return Draft{
		Transcript: transcript,
		Vitals:     vitals,
		HPISummary: generated.HPISummary,
		Model:      g.model,
		AdapterID:  g.adapterID,
	}, nil
}
