// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"testing"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_Argv(t *testing.T) {
	profiles := ProfilesFromConfig(config.DefaultProfiles("python3"))
	chroma := profiles[config.ProfileChromaKey]

	res := Resolution{ID: "clip", InputPath: "/in/clip.mp4", PartialPath: "/out/.clip.partial.mov"}
	args, err := chroma.Argv(res, map[string]string{"similarity": "0.5"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"remove_green_background.py", "--input", "/in/clip.mp4", "--output", "/out/.clip.partial.mov",
		"--blend", "0.1",
		"--despill-expand", "0.1",
		"--despill-mix", "0.9",
		"--similarity", "0.5",
	}, args)
}

func TestProfile_UnknownParameter(t *testing.T) {
	p := Profile{Name: "echo", Bin: "/bin/echo", Args: []string{"{input}"}, Parameters: map[string]string{"a": "1"}}
	_, err := p.Argv(Resolution{}, map[string]string{"b": "2", "c": "3"})
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Contains(t, err.Error(), "b, c")
}

func TestProfile_IDPlaceholder(t *testing.T) {
	p := Profile{Bin: "tool", Args: []string{"--name={id}", "{output}"}}
	cmd, err := p.Command(Resolution{ID: "clip", PartialPath: "/o/.clip.partial.mov", LogPath: "/l/clip.log"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--name=clip", "/o/.clip.partial.mov"}, cmd.Args)
	assert.Equal(t, "clip", cmd.JobID)
	assert.Equal(t, "/l/clip.log", cmd.LogPath)
}

func TestProfile_AcceptsInput(t *testing.T) {
	profiles := ProfilesFromConfig(map[string]config.ProfileConfig{
		"any":  {Bin: "x"},
		"json": {Bin: "x", InputKinds: []string{".JSON"}},
	})
	assert.True(t, profiles["any"].AcceptsInput("mp4"))
	assert.True(t, profiles["json"].AcceptsInput("json"))
	assert.False(t, profiles["json"].AcceptsInput("mp4"))
}
