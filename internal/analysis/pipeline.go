// Package analysis implements the background pipeline that classifies each
// discovered tool's side effects as read and/or write.
//
// The design is two-phase and non-blocking: discovered tools are saved
// synchronously with null classification so chat can use them immediately,
// and a background run classifies them afterwards. Classification calls are
// strictly sequential within one run to bound load on the inference backend;
// runs for different servers may proceed concurrently.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/bus"
	"github.com/steward-ai/stewardd/internal/contracts"
	"github.com/steward-ai/stewardd/internal/domain"
	"github.com/steward-ai/stewardd/internal/inference"
)

// classifyPromptFormat is the single-shot classification prompt. The explicit
// output example keeps small local models on format.
const classifyPromptFormat = `You are classifying a tool exposed by an MCP server by its side effects.

Tool name: %s
Tool description: %s

Decide whether calling this tool reads state (is_read) and whether it writes
or mutates state (is_write). A tool may be both, either, or neither.

Respond with ONLY a JSON object in exactly this shape, no other text:
{"is_read": true, "is_write": false}`

// Pipeline classifies discovered tools in the background.
// NewPipeline should be used to create instances of Pipeline.
type Pipeline struct {
	logger       hclog.Logger
	tools        contracts.ToolStore
	backend      contracts.InferenceBackend
	availability *inference.Availability
	events       *bus.Bus
	model        string
}

// NewPipeline creates an analysis pipeline bound to a classification model.
func NewPipeline(
	logger hclog.Logger,
	tools contracts.ToolStore,
	backend contracts.InferenceBackend,
	availability *inference.Availability,
	events *bus.Bus,
	model string,
) *Pipeline {
	return &Pipeline{
		logger:       logger.Named("analysis"),
		tools:        tools,
		backend:      backend,
		availability: availability,
		events:       events,
		model:        model,
	}
}

// SaveDiscovered is the synchronous phase: newly discovered tools are upserted
// immediately with classification fields left null, so they are usable before
// classification finishes. The store's merge policy guarantees that re-saving
// a tool never regresses an existing classification.
func (p *Pipeline) SaveDiscovered(ctx context.Context, seeds []domain.ToolRecord) error {
	for _, seed := range seeds {
		seed.IsRead = nil
		seed.IsWrite = nil
		seed.AnalyzedAt = nil
		if err := p.tools.UpsertTool(ctx, seed); err != nil {
			return fmt.Errorf("save discovered tool %q: %w", seed.ID, err)
		}
	}
	return nil
}

// Run classifies every unanalyzed tool for the server, one at a time.
// Intended to be launched as a background goroutine per install/discovery
// event; once started it runs to completion or failure and is not canceled by
// lifecycle operations. Failures here are local: they are logged and
// broadcast, never propagated into an unrelated server's lifecycle.
func (p *Pipeline) Run(ctx context.Context, serverID string) {
	all, err := p.tools.ToolsByServer(ctx, serverID)
	if err != nil {
		p.logger.Error("Failed to load tools for analysis", "server", serverID, "error", err)
		p.publish(domain.AnalysisProgress{
			ServerID: serverID,
			Phase:    domain.AnalysisPhaseError,
			Message:  "failed to load tools",
			Error:    err.Error(),
		})
		return
	}

	// Already-analyzed tools are skipped entirely, so re-runs on app restart
	// do no redundant work.
	var pending []domain.ToolRecord
	for _, t := range all {
		if !t.Analyzed() {
			pending = append(pending, t)
		}
	}

	total := len(pending)
	p.publish(domain.AnalysisProgress{
		ServerID:   serverID,
		Phase:      domain.AnalysisPhaseStarted,
		TotalTools: total,
		Message:    fmt.Sprintf("analyzing %d tool(s)", total),
	})

	if total == 0 {
		p.publish(domain.AnalysisProgress{
			ServerID: serverID,
			Phase:    domain.AnalysisPhaseCompleted,
			Progress: 100,
			Message:  "no tools to analyze",
		})
		return
	}

	// If the model never becomes available the whole run falls back to the
	// heuristic rather than leaving tools unclassified.
	backendUsable := true
	if err := p.availability.Wait(ctx, p.model); err != nil {
		p.logger.Warn("Classification model unavailable, falling back to heuristic",
			"server", serverID, "model", p.model, "error", err)
		backendUsable = false
	}

	analyzed := 0
	failed := 0
	for _, tool := range pending {
		p.publish(domain.AnalysisProgress{
			ServerID:      serverID,
			Phase:         domain.AnalysisPhaseAnalyzing,
			TotalTools:    total,
			AnalyzedTools: analyzed,
			CurrentTool:   tool.Name,
			Progress:      progressPct(analyzed, total),
			Message:       fmt.Sprintf("classifying %s", tool.Name),
		})

		c := p.classify(ctx, backendUsable, tool)

		now := time.Now().UTC()
		tool.IsRead = &c.IsRead
		tool.IsWrite = &c.IsWrite
		tool.AnalyzedAt = &now
		tool.UpdatedAt = now
		if err := p.tools.UpsertTool(ctx, tool); err != nil {
			// Left unclassified this run; reflected in progress, not fatal.
			p.logger.Error("Failed to persist classification", "tool", tool.ID, "error", err)
			failed++
			continue
		}

		analyzed++
		p.publish(domain.AnalysisProgress{
			ServerID:      serverID,
			Phase:         domain.AnalysisPhaseAnalyzing,
			TotalTools:    total,
			AnalyzedTools: analyzed,
			CurrentTool:   tool.Name,
			Progress:      progressPct(analyzed, total),
			Message:       fmt.Sprintf("classified %s", tool.Name),
		})
	}

	if failed > 0 && analyzed == 0 {
		p.publish(domain.AnalysisProgress{
			ServerID:      serverID,
			Phase:         domain.AnalysisPhaseError,
			TotalTools:    total,
			AnalyzedTools: analyzed,
			Progress:      progressPct(analyzed, total),
			Message:       "analysis failed",
			Error:         fmt.Sprintf("%d tool(s) could not be persisted", failed),
		})
		return
	}

	msg := fmt.Sprintf("analyzed %d tool(s)", analyzed)
	if failed > 0 {
		msg = fmt.Sprintf("analyzed %d of %d tool(s), %d left unclassified", analyzed, total, failed)
	}
	p.publish(domain.AnalysisProgress{
		ServerID:      serverID,
		Phase:         domain.AnalysisPhaseCompleted,
		TotalTools:    total,
		AnalyzedTools: analyzed,
		Progress:      100,
		Message:       msg,
	})
}

// classify asks the inference backend for a structured judgment, falling back
// to the deterministic heuristic when the backend is unusable, its response is
// not valid JSON, or the fields are not booleans.
func (p *Pipeline) classify(ctx context.Context, backendUsable bool, tool domain.ToolRecord) Classification {
	if !backendUsable {
		return HeuristicClassify(tool.Name, tool.Description)
	}

	prompt := fmt.Sprintf(classifyPromptFormat, tool.Name, tool.Description)
	raw, err := p.backend.Generate(ctx, p.model, prompt)
	if err != nil {
		p.logger.Warn("Backend classification failed, using heuristic", "tool", tool.ID, "error", err)
		return HeuristicClassify(tool.Name, tool.Description)
	}

	c, err := parseClassification(raw)
	if err != nil {
		p.logger.Warn("Unparseable classification, using heuristic", "tool", tool.ID, "error", err)
		return HeuristicClassify(tool.Name, tool.Description)
	}

	return c
}

// parseClassification validates that the backend returned a JSON object with
// boolean is_read and is_write fields.
func parseClassification(raw string) (Classification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Classification{}, fmt.Errorf("response is not a JSON object: %w", err)
	}

	var c Classification
	for field, dst := range map[string]*bool{"is_read": &c.IsRead, "is_write": &c.IsWrite} {
		entry, ok := fields[field]
		if !ok {
			return Classification{}, fmt.Errorf("missing field %q", field)
		}
		if err := json.Unmarshal(entry, dst); err != nil {
			return Classification{}, fmt.Errorf("field %q is not a boolean", field)
		}
	}

	return c, nil
}

func progressPct(analyzed, total int) int {
	if total == 0 {
		return 100
	}
	return analyzed * 100 / total
}

func (p *Pipeline) publish(progress domain.AnalysisProgress) {
	if err := p.events.Publish(bus.AnalysisProgressEvent(progress)); err != nil {
		p.logger.Error("Failed to publish analysis progress", "server", progress.ServerID, "error", err)
	}
}
