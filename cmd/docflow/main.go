// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/ai/ollama"
	"github.com/poiesic/docflow/connector"
	connectorfs "github.com/poiesic/docflow/connector/fs"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/credentials"
	"github.com/poiesic/docflow/engine"
	"github.com/poiesic/docflow/queue"
	queuebadger "github.com/poiesic/docflow/queue/badger"
	"github.com/poiesic/docflow/worker"
	"github.com/poiesic/docflow/workflow"
)

func main() {
	app := &cli.App{
		Name:  "docflow",
		Usage: "Workflow-driven document processing pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate and compile a workflow definition",
				Action: validateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "definition",
						Aliases:  []string{"f"},
						Usage:    "Path to the workflow definition JSON",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "credentials",
						Usage: "Path to a JSON array of provider credentials",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Execute a workflow definition against a single input file",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "definition",
						Aliases:  []string{"f"},
						Usage:    "Path to the workflow definition JSON",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Path to the input file fed to provider-source input nodes",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "credentials",
						Usage: "Path to a JSON array of provider credentials",
					},
					&cli.StringFlag{
						Name:  "data-dir",
						Usage: "Root directory served to provider-backed inputs and outputs",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to the BadgerDB queue directory (empty means in-memory)",
					},
					&cli.StringFlag{
						Name:  "ollama-host",
						Usage: "Ollama server base URL",
						Value: "http://localhost:11434",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.StringFlag{
						Name:  "generation-model",
						Usage: "Generation model name",
						Value: "qwen2.5:3b",
					},
					&cli.StringFlag{
						Name:  "vision-model",
						Usage: "Vision model name for OCR",
						Value: "qwen2.5vl:3b",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum in-flight jobs per stage",
						Value: worker.DefaultConcurrency,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Per-node execution timeout",
						Value: engine.DefaultNodeTimeout,
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Run the three stage dispatchers against a shared queue",
				Action: workerCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to the BadgerDB queue directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "ollama-host",
						Usage: "Ollama server base URL",
						Value: "http://localhost:11434",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.StringFlag{
						Name:  "generation-model",
						Usage: "Generation model name",
						Value: "qwen2.5:3b",
					},
					&cli.StringFlag{
						Name:  "vision-model",
						Usage: "Vision model name for OCR",
						Value: "qwen2.5vl:3b",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum in-flight jobs per stage",
						Value: worker.DefaultConcurrency,
					},
					&cli.DurationFlag{
						Name:  "drain-timeout",
						Usage: "How long to wait for in-flight jobs on shutdown",
						Value: 30 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func validateCommand(c *cli.Context) error {
	def, err := loadDefinition(c.String("definition"))
	if err != nil {
		return err
	}
	registry, err := loadCredentials(c.String("credentials"))
	if err != nil {
		return err
	}

	compiled, err := engine.Compile(def, registry)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Definition: %s\n", c.String("definition"))
	fmt.Fprintf(os.Stderr, "Nodes: %d\n", compiled.Graph().Len())
	fmt.Fprintf(os.Stderr, "Cache slots: %s\n", strings.Join(compiled.Slots(), ", "))
	fmt.Fprintln(os.Stderr, "Execution order:")
	for _, id := range compiled.Order() {
		plan, _ := compiled.Plan(id)
		route := "inline"
		if plan.Queued {
			route = "queued on " + string(plan.Stage)
		}
		name := plan.Node.Name
		if name == "" {
			name = string(plan.Node.Type)
		}
		fmt.Fprintf(os.Stderr, "  %s  %-20s %s\n", id, name, route)
	}
	return nil
}

func runCommand(c *cli.Context) error {
	def, err := loadDefinition(c.String("definition"))
	if err != nil {
		return err
	}
	registry, err := loadCredentials(c.String("credentials"))
	if err != nil {
		return err
	}

	compiled, err := engine.Compile(def, registry)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	inputPath := c.String("input")
	content, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	input := core.NewDataValue(filepath.Base(inputPath), content)

	provider, err := buildProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	backend, err := queuebadger.OpenBackend(c.String("db"), c.String("db") == "")
	if err != nil {
		return fmt.Errorf("opening queue database: %w", err)
	}
	defer backend.Close()

	broker, err := queuebadger.NewBroker(backend)
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}
	defer broker.Close()

	handles, release, err := spawnDispatchers(c.Context, broker, provider, c.Int("concurrency"))
	if err != nil {
		return err
	}
	defer release()

	connectors := connector.NewRegistry()
	if dataDir := c.String("data-dir"); dataDir != "" {
		fsConn := connectorfs.New(dataDir)
		for _, id := range registry.IDs() {
			connectors.RegisterReader(id, fsConn)
			connectors.RegisterWriter(id, fsConn)
		}
	}

	eng, err := engine.New(
		engine.WithBroker(broker),
		engine.WithProvider(provider),
		engine.WithConnectors(connectors),
		engine.WithNodeTimeout(c.Duration("timeout")),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := eng.Execute(c.Context, compiled, input)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	for _, h := range handles {
		h.Shutdown()
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, h := range handles {
		if err := h.Wait(waitCtx); err != nil {
			h.Abort()
		}
	}

	fmt.Fprintf(os.Stderr, "Run %s: %d items written in %s\n",
		result.Status, result.ItemsWritten, result.FinishedAt.Sub(result.StartedAt))
	for id, node := range result.Nodes {
		line := fmt.Sprintf("  %s  %-10s items=%d", id, node.Status, node.Items)
		if node.Error != "" {
			line += "  error=" + node.Error
		}
		fmt.Fprintln(os.Stderr, line)
	}
	if result.Status != engine.RunCompleted {
		return fmt.Errorf("run finished with status %s", result.Status)
	}
	return nil
}

func workerCommand(c *cli.Context) error {
	provider, err := buildProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	backend, err := queuebadger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("opening queue database: %w", err)
	}
	defer backend.Close()

	broker, err := queuebadger.NewBroker(backend)
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handles, release, err := spawnDispatchers(ctx, broker, provider, c.Int("concurrency"))
	if err != nil {
		return err
	}
	defer release()

	slog.Info("workers running", "db", c.String("db"), "concurrency", c.Int("concurrency"))
	<-ctx.Done()
	slog.Info("shutting down, draining in-flight jobs")

	for _, h := range handles {
		h.Shutdown()
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), c.Duration("drain-timeout"))
	defer cancel()
	for _, h := range handles {
		if err := h.Wait(waitCtx); err != nil {
			slog.Warn("drain timeout exceeded, aborting in-flight jobs")
			h.Abort()
			h.Wait(context.Background())
		}
	}
	return nil
}

// spawnDispatchers starts one dispatcher per pipeline stage. The returned
// release function frees the worker pools after the handles have drained.
func spawnDispatchers(ctx context.Context, broker queue.Broker, provider ai.Provider, concurrency int) ([]*worker.Handle, func(), error) {
	pre, err := worker.NewPreprocessingHandler(provider, broker)
	if err != nil {
		return nil, nil, err
	}
	proc, err := worker.NewProcessingHandler(provider, broker)
	if err != nil {
		return nil, nil, err
	}
	post := worker.NewPostprocessingHandler()

	d1, err := worker.NewDispatcher(broker, worker.JobHandler[queue.PreprocessingData](pre),
		worker.WithConcurrency[queue.PreprocessingData](concurrency))
	if err != nil {
		return nil, nil, err
	}
	d2, err := worker.NewDispatcher(broker, worker.JobHandler[queue.ProcessingData](proc),
		worker.WithConcurrency[queue.ProcessingData](concurrency))
	if err != nil {
		d1.Release()
		return nil, nil, err
	}
	d3, err := worker.NewDispatcher(broker, worker.JobHandler[queue.PostprocessingData](post),
		worker.WithConcurrency[queue.PostprocessingData](concurrency))
	if err != nil {
		d1.Release()
		d2.Release()
		return nil, nil, err
	}
	release := func() {
		d1.Release()
		d2.Release()
		d3.Release()
	}

	var handles []*worker.Handle
	h1, err := d1.Spawn(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	handles = append(handles, h1)
	h2, err := d2.Spawn(ctx)
	if err != nil {
		h1.Abort()
		release()
		return nil, nil, err
	}
	handles = append(handles, h2)
	h3, err := d3.Spawn(ctx)
	if err != nil {
		h1.Abort()
		h2.Abort()
		release()
		return nil, nil, err
	}
	handles = append(handles, h3)
	return handles, release, nil
}

func buildProvider(c *cli.Context) (ai.Provider, error) {
	cfg := ai.NewConfig(
		ai.WithHost(c.String("ollama-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
		ai.WithVisionModel(c.String("vision-model")),
	)
	provider, err := ollama.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating inference provider: %w", err)
	}
	return provider, nil
}

func loadDefinition(path string) (*workflow.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	def, err := workflow.ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	return def, nil
}

func loadCredentials(path string) (*credentials.Registry, error) {
	if path == "" {
		return credentials.NewRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	var entries []credentials.ProviderCredentials
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return credentials.NewRegistry(entries...), nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
