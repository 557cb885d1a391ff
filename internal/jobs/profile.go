// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/launcher"
)

// Profile turns a resolved job into a command line for one external tool.
type Profile struct {
	Name string
	Bin  string
	// Args may contain {input}, {output} and {id}.
	Args []string
	// Parameters maps accepted names to default values.
	Parameters map[string]string
	Dir        string
	Env        []string
	// InputKinds, when set, restricts accepted input extensions.
	InputKinds []string
}

// ProfilesFromConfig converts the configured profiles.
func ProfilesFromConfig(profiles map[string]config.ProfileConfig) map[string]Profile {
	out := make(map[string]Profile, len(profiles))
	for name, p := range profiles {
		kinds := make([]string, 0, len(p.InputKinds))
		for _, k := range p.InputKinds {
			kinds = append(kinds, NormalizeKind(k))
		}
		out[name] = Profile{
			Name:       name,
			Bin:        p.Bin,
			Args:       append([]string(nil), p.Args...),
			Parameters: p.Parameters,
			Dir:        p.Dir,
			Env:        append([]string(nil), p.Env...),
			InputKinds: kinds,
		}
	}
	return out
}

// AcceptsInput reports whether the profile takes inputs of the given kind.
func (p Profile) AcceptsInput(kind string) bool {
	if len(p.InputKinds) == 0 {
		return true
	}
	for _, k := range p.InputKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CheckParameters rejects names the profile does not declare.
func (p Profile) CheckParameters(params map[string]string) error {
	var unknown []string
	for name := range params {
		if _, ok := p.Parameters[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: profile %s does not accept %s", ErrInvalidParameter, p.Name, strings.Join(unknown, ", "))
	}
	return nil
}

// Argv expands the argument template for res and appends parameters as
// "--name value" pairs in name order. Caller values override defaults.
func (p Profile) Argv(res Resolution, params map[string]string) ([]string, error) {
	if err := p.CheckParameters(params); err != nil {
		return nil, err
	}

	repl := strings.NewReplacer(
		"{input}", res.InputPath,
		"{output}", res.PartialPath,
		"{id}", res.ID,
	)
	args := make([]string, 0, len(p.Args)+2*len(p.Parameters))
	for _, a := range p.Args {
		args = append(args, repl.Replace(a))
	}

	names := make([]string, 0, len(p.Parameters))
	for name := range p.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := p.Parameters[name]
		if v, ok := params[name]; ok {
			value = v
		}
		args = append(args, "--"+name, value)
	}
	return args, nil
}

// Command builds the launcher command for res.
func (p Profile) Command(res Resolution, params map[string]string) (launcher.Command, error) {
	args, err := p.Argv(res, params)
	if err != nil {
		return launcher.Command{}, err
	}
	return launcher.Command{
		JobID:   res.ID,
		Bin:     p.Bin,
		Args:    args,
		Dir:     p.Dir,
		Env:     p.Env,
		LogPath: res.LogPath,
	}, nil
}
