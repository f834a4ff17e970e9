// testserver starts an agenttask API server on an in-memory store with a few
// demo tasks for manual and E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/Little-Star888/agenttask/internal/api"
	"github.com/Little-Star888/agenttask/internal/engine"
	"github.com/Little-Star888/agenttask/internal/model"
	"github.com/Little-Star888/agenttask/internal/step"
	"github.com/Little-Star888/agenttask/internal/step/builtin"
	"github.com/Little-Star888/agenttask/internal/store"
)

// demoTasks are saved on startup so the server has something to run.
var demoTasks = []struct {
	name string
	cfg  model.TaskConfig
}{
	{
		name: "greet",
		cfg: model.TaskConfig{
			Description: "Greets ${name} and measures the greeting",
			Steps: []model.StepSpec{
				{Type: builtin.TypeSet, Config: map[string]any{"value": "hello ${name}"}, ResponseVariable: "greeting"},
				{Type: builtin.TypeExpr, Config: map[string]any{"expression": "len(greeting)"}, ResponseVariable: "length"},
			},
		},
	},
	{
		name: "slow",
		cfg: model.TaskConfig{
			Description: "Sleeps between steps; useful for cancel and event streaming",
			Steps: []model.StepSpec{
				{Type: builtin.TypeDelay, Config: map[string]any{"duration": "2s"}},
				{Type: builtin.TypeSet, Config: map[string]any{"value": "woke up"}, ResponseVariable: "status"},
				{Type: builtin.TypeDelay, Config: map[string]any{"duration": "2s"}},
			},
		},
	},
	{
		name: "broken",
		cfg: model.TaskConfig{
			Description: "Fails on its second step",
			Steps: []model.StepSpec{
				{Type: builtin.TypeSet, Config: map[string]any{"value": 1}, ResponseVariable: "first"},
				{Type: builtin.TypeFail, Config: map[string]any{"message": "demo failure"}},
				{Type: builtin.TypeSet, Config: map[string]any{"value": 3}, ResponseVariable: "never"},
			},
		},
	},
}

func main() {
	addr := ":8080"
	if v := os.Getenv("AGENTTASK_LISTEN_ADDR"); v != "" {
		addr = v
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db := store.NewMemoryStore()
	defer db.Close()

	reg := step.NewRegistry()
	builtin.Register(reg, logger)

	for _, d := range demoTasks {
		task, err := db.SaveTask(context.Background(), d.name, d.cfg, "")
		if err != nil {
			log.Fatalf("seed %s: %v", d.name, err)
		}
		logger.Info("testserver: seeded task", "name", task.Name, "task_id", task.ID)
	}

	runner := engine.NewRunner(db, reg, logger)
	srv := api.NewServer(addr, db, reg, runner, logger)

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
