// Package orchestrator implements the analysis orchestrator (C12): it
// fingerprints an artifact, consults the result cache, fans the
// artifact out across the enabled engine set under bounded
// parallelism, and fuses the resulting detections into a consensus
// AnalysisResult.
package orchestrator

import (
	"context"

	"github.com/threatcore/analysis-core/internal/model"
)

// Engine is the uniform interface every member of the engine set
// implements, so the orchestrator dispatches through a jump table
// instead of a type switch per call (spec §9 Design Notes).
type Engine interface {
	Analyze(ctx context.Context, artifact model.Artifact) (model.Detection, error)
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, artifact model.Artifact) (model.Detection, error)

// Analyze implements Engine.
func (f EngineFunc) Analyze(ctx context.Context, artifact model.Artifact) (model.Detection, error) {
	return f(ctx, artifact)
}

// Registry is a closed map from EngineKind to the Engine that handles
// it. It is built once at startup and never mutated concurrently with
// reads, so no locking is needed.
type Registry map[model.EngineKind]Engine

// NewRegistry constructs a Registry from the given engines.
func NewRegistry(engines map[model.EngineKind]Engine) Registry {
	r := make(Registry, len(engines))
	for k, v := range engines {
		r[k] = v
	}
	return r
}

// Enabled returns the engine kinds present in the registry, in a fixed
// order so task construction is deterministic across runs.
func (r Registry) Enabled() []model.EngineKind {
	order := []model.EngineKind{model.EngineStatic, model.EngineHeuristic, model.EngineYara, model.EngineHash, model.EngineDynamic, model.EngineML}
	var out []model.EngineKind
	for _, k := range order {
		if _, ok := r[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
