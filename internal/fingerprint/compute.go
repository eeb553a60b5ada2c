package fingerprint

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Set holds the freshly computed fingerprint of every (part, step).
type Set map[string]map[lifecycle.Step]Fingerprint

// Get returns the fingerprint of a (part, step), zero when unknown.
func (s Set) Get(part string, step lifecycle.Step) Fingerprint {
	return s[part][step]
}

// SourceDigester digests the source content of a part.
type SourceDigester func(part *config.Part) (Fingerprint, error)

// SourceDigest returns the default digester: a tree digest for directory
// sources, a file digest for archives, and a constant for parts without a
// source. Directories in skip (the work directory) are ignored.
func SourceDigest(skip ...string) SourceDigester {
	return func(part *config.Part) (Fingerprint, error) {
		if part.Source == "" {
			return NewHasher("nosource").Sum(), nil
		}
		info, err := os.Stat(part.Source)
		if err != nil {
			return "", &lifecycle.ManifestError{Part: part.Name, Reason: "source is not accessible", Err: err}
		}
		if info.IsDir() {
			return HashTree(part.Source, skip...)
		}
		return HashFile(part.Source)
	}
}

// Compute derives the fingerprints of every part for every step. order must
// list dependencies before their dependents.
//
// pull digests the part's source configuration and content; build chains the
// pull fingerprint with plugin options, environment, build override, build
// fileset and the stage fingerprints of the dependencies; stage and prime
// chain the previous step with their fileset.
func Compute(ctx context.Context, model *config.Model, order []string, digest SourceDigester) (Set, error) {
	logger := ctxlog.FromContext(ctx)
	set := make(Set, len(order))

	for _, name := range order {
		part, ok := model.Parts[name]
		if !ok {
			return nil, fmt.Errorf("part %q is not defined", name)
		}

		source, err := digest(part)
		if err != nil {
			return nil, err
		}
		pull := NewHasher("pull").
			String(part.Name).
			String(part.Plugin).
			String(part.Source).
			String(part.SourceType).
			Fingerprint(source).
			Sum()

		options, err := optionsDigest(part)
		if err != nil {
			return nil, err
		}
		deps := append([]string(nil), part.After...)
		sort.Strings(deps)
		bh := NewHasher("build").
			Fingerprint(pull).
			Fingerprint(options).
			Map(part.BuildEnvironment).
			String(part.OverrideBuild)
		addFileset(bh, part.BuildFiles)
		bh.Int(len(deps))
		for _, dep := range deps {
			depStage := set.Get(dep, lifecycle.Stage)
			if depStage.IsZero() {
				return nil, fmt.Errorf("dependency %q of part %q is not fingerprinted yet", dep, name)
			}
			bh.String(dep).Fingerprint(depStage)
		}
		build := bh.Sum()

		stage := addFileset(NewHasher("stage").Fingerprint(build), part.StageFiles).Sum()
		prime := addFileset(NewHasher("prime").Fingerprint(stage), part.PrimeFiles).Sum()

		set[name] = map[lifecycle.Step]Fingerprint{
			lifecycle.Pull:  pull,
			lifecycle.Build: build,
			lifecycle.Stage: stage,
			lifecycle.Prime: prime,
		}
		logger.Debug("Fingerprints computed.", "part", name, "pull", pull.Short(), "build", build.Short())
	}
	return set, nil
}

func addFileset(h *Hasher, fs config.Fileset) *Hasher {
	return h.Strings(fs.Include).Strings(fs.Exclude)
}

// optionsDigest canonicalises plugin options through their JSON encoding.
func optionsDigest(part *config.Part) (Fingerprint, error) {
	names := make([]string, 0, len(part.Options))
	for name := range part.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	h := NewHasher("options").Int(len(names))
	for _, name := range names {
		val := part.Options[name]
		data, err := ctyjson.Marshal(val, val.Type())
		if err != nil {
			return "", &lifecycle.ManifestError{Part: part.Name, Reason: fmt.Sprintf("option %q cannot be encoded", name), Err: err}
		}
		h.String(name).Bytes(data)
	}
	return h.Sum(), nil
}
