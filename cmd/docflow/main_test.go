package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docflow/workflow"
)

func writeTempDefinition(t *testing.T) string {
	t.Helper()
	def := &workflow.Definition{}
	in := def.AddNode(workflow.Node{
		Type:  workflow.NodeTypeInput,
		Input: &workflow.InputSpec{Source: workflow.SourceProvider},
	})
	conv := def.AddNode(workflow.Node{
		Type:      workflow.NodeTypeTransform,
		Transform: &workflow.TransformSpec{Kind: workflow.TransformConvert, TargetFormat: "html"},
	})
	def.Connect(in, conv)

	data, err := json.Marshal(def)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeTempDefinition(t)

	app := &cli.App{
		Name: "docflow",
		Commands: []*cli.Command{
			{
				Name:   "validate",
				Action: validateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "definition", Aliases: []string{"f"}, Required: true},
					&cli.StringFlag{Name: "credentials"},
				},
			},
		},
	}

	t.Run("valid definition compiles", func(t *testing.T) {
		err := app.Run([]string{"docflow", "validate", "--definition", path})
		require.NoError(t, err)
	})

	t.Run("missing file fails", func(t *testing.T) {
		err := app.Run([]string{"docflow", "validate", "--definition", "/nonexistent.json"})
		require.Error(t, err)
	})
}

func TestLoadDefinition_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := loadDefinition(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing definition")
}

func TestLoadCredentials_Empty(t *testing.T) {
	reg, err := loadCredentials("")
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	app := &cli.App{
		Name: "docflow",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Before: setupLogger,
		Action: func(c *cli.Context) error { return nil },
	}

	require.NoError(t, app.Run([]string{"docflow", "--log-level", "debug"}))

	err := app.Run([]string{"docflow", "--log-level", "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
