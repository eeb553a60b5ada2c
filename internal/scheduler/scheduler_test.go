package scheduler

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/dag"
	"github.com/vk/snapforge/internal/fingerprint"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/statestore"
)

// memState is an in-memory StateReader.
type memState map[string]map[lifecycle.Step]fingerprint.Fingerprint

func (m memState) Load(_ context.Context, part string, step lifecycle.Step) (*statestore.Entry, bool) {
	fp, ok := m[part][step]
	if !ok {
		return nil, false
	}
	return &statestore.Entry{Part: part, Step: step, Fingerprint: fp}, true
}

// recordAll marks every operation of plan as completed.
func (m memState) recordAll(plan *Plan) {
	for _, op := range plan.Operations {
		if m[op.Part] == nil {
			m[op.Part] = make(map[lifecycle.Step]fingerprint.Fingerprint)
		}
		m[op.Part][op.Step] = op.Fingerprint
	}
}

type fixture struct {
	model *config.Model
	graph *dag.Graph
	order []string
	state memState
}

func newFixture(t *testing.T, parts map[string][]string) *fixture {
	t.Helper()
	model := config.NewModel("/proj")
	for name, after := range parts {
		model.Parts[name] = &config.Part{Name: name, Plugin: "nil", After: after}
	}
	graph, err := dag.Build(ctxlog.Discard(context.Background()), model)
	require.NoError(t, err)
	order, err := graph.TopologicalOrder()
	require.NoError(t, err)
	return &fixture{model: model, graph: graph, order: order, state: memState{}}
}

func (f *fixture) plan(t *testing.T, sources map[string]string, target lifecycle.Step, parts ...string) *Plan {
	t.Helper()
	ctx := ctxlog.Discard(context.Background())
	fps, err := fingerprint.Compute(ctx, f.model, f.order, func(p *config.Part) (fingerprint.Fingerprint, error) {
		return fingerprint.Fingerprint(sources[p.Name] + "-src"), nil
	})
	require.NoError(t, err)
	plan, err := New(f.graph, fps, f.state).Plan(ctx, target, parts)
	require.NoError(t, err)
	return plan
}

type opRef struct {
	Part   string
	Step   string
	Reason Reason
	Deps   []int
}

func refs(plan *Plan) []opRef {
	out := make([]opRef, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		out = append(out, opRef{Part: op.Part, Step: op.Step.String(), Reason: op.Reason, Deps: op.DependsOn})
	}
	return out
}

func TestPrimeAppSchedulesDependencyStageFirst(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, map[string][]string{"base": nil, "app": {"base"}})

	// --- Act ---
	plan := f.plan(t, nil, lifecycle.Prime, "app")

	// --- Assert ---
	want := []opRef{
		{Part: "base", Step: "pull", Reason: ReasonMissing},
		{Part: "base", Step: "build", Reason: ReasonCascade, Deps: []int{0}},
		{Part: "base", Step: "stage", Reason: ReasonCascade, Deps: []int{1}},
		{Part: "app", Step: "pull", Reason: ReasonMissing},
		{Part: "app", Step: "build", Reason: ReasonCascade, Deps: []int{3, 2}},
		{Part: "app", Step: "stage", Reason: ReasonCascade, Deps: []int{4}},
		{Part: "app", Step: "prime", Reason: ReasonCascade, Deps: []int{5}},
	}
	if diff := cmp.Diff(want, refs(plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildNeverPrecedesDependencyStage(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"a": nil, "b": {"a"}, "c": {"a", "b"}, "d": {"c"}, "e": nil,
	})

	for _, target := range lifecycle.Steps {
		t.Run(target.String(), func(t *testing.T) {
			plan := f.plan(t, nil, target)
			for i, op := range plan.Operations {
				if op.Step != lifecycle.Build {
					continue
				}
				for _, dep := range f.model.Parts[op.Part].After {
					stageIdx := plan.Index(dep, lifecycle.Stage)
					require.GreaterOrEqual(t, stageIdx, 0, "stage of %s missing before build of %s", dep, op.Part)
					assert.Less(t, stageIdx, i)
					assert.Contains(t, op.DependsOn, stageIdx)
				}
			}
			for i, op := range plan.Operations {
				for _, d := range op.DependsOn {
					assert.Less(t, d, i, "no forward references")
				}
			}
		})
	}
}

func TestSecondPlanIsEmpty(t *testing.T) {
	f := newFixture(t, map[string][]string{"base": nil, "app": {"base"}})
	first := f.plan(t, nil, lifecycle.Prime)
	f.state.recordAll(first)

	second := f.plan(t, nil, lifecycle.Prime)

	assert.True(t, second.Empty())
	assert.Len(t, second.Skipped, len(first.Operations))
}

func TestDependencyChangeReschedulesDependentBuild(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, map[string][]string{"base": nil, "app": {"base"}})
	f.state.recordAll(f.plan(t, map[string]string{"base": "v1"}, lifecycle.Prime))

	// --- Act ---
	plan := f.plan(t, map[string]string{"base": "v2"}, lifecycle.Prime)

	// --- Assert ---
	want := []opRef{
		{Part: "base", Step: "pull", Reason: ReasonChanged},
		{Part: "base", Step: "build", Reason: ReasonCascade, Deps: []int{0}},
		{Part: "base", Step: "stage", Reason: ReasonCascade, Deps: []int{1}},
		{Part: "base", Step: "prime", Reason: ReasonCascade, Deps: []int{2}},
		{Part: "app", Step: "build", Reason: ReasonDependency, Deps: []int{2}},
		{Part: "app", Step: "stage", Reason: ReasonCascade, Deps: []int{4}},
		{Part: "app", Step: "prime", Reason: ReasonCascade, Deps: []int{5}},
	}
	if diff := cmp.Diff(want, refs(plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "base", plan.Operations[4].Detail)
}

func TestRestagedDependencyForcesRebuildWithUnchangedFingerprint(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, map[string][]string{"base": nil, "app": {"base"}})
	f.state.recordAll(f.plan(t, nil, lifecycle.Prime))
	delete(f.state["base"], lifecycle.Stage)

	// --- Act ---
	plan := f.plan(t, nil, lifecycle.Stage, "app")

	// --- Assert ---
	want := []opRef{
		{Part: "base", Step: "stage", Reason: ReasonMissing},
		{Part: "app", Step: "build", Reason: ReasonDependency, Deps: []int{0}},
		{Part: "app", Step: "stage", Reason: ReasonCascade, Deps: []int{1}},
	}
	if diff := cmp.Diff(want, refs(plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanedBuildReRunsOnlyThatPart(t *testing.T) {
	f := newFixture(t, map[string][]string{"base": nil, "app": {"base"}})
	f.state.recordAll(f.plan(t, nil, lifecycle.Prime))
	for _, step := range lifecycle.StepsFrom(lifecycle.Build) {
		delete(f.state["app"], step)
	}

	plan := f.plan(t, nil, lifecycle.Prime)

	want := []opRef{
		{Part: "app", Step: "build", Reason: ReasonMissing},
		{Part: "app", Step: "stage", Reason: ReasonCascade, Deps: []int{0}},
		{Part: "app", Step: "prime", Reason: ReasonCascade, Deps: []int{1}},
	}
	if diff := cmp.Diff(want, refs(plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanUnknownPart(t *testing.T) {
	f := newFixture(t, map[string][]string{"base": nil})
	ctx := ctxlog.Discard(context.Background())
	fps, err := fingerprint.Compute(ctx, f.model, f.order, func(*config.Part) (fingerprint.Fingerprint, error) { return "x", nil })
	require.NoError(t, err)

	_, err = New(f.graph, fps, f.state).Plan(ctx, lifecycle.Build, []string{"ghost"})

	var manifestErr *lifecycle.ManifestError
	require.ErrorAs(t, err, &manifestErr)
	assert.Equal(t, "ghost", manifestErr.Part)
}
