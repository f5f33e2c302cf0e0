// Command idle builds and exports execution plans for identity lifecycle
// workflows. It plans only — execution needs host-registered handlers, so the
// CLI always runs in what-if mode.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/idle-engine/idle/internal/logging"
	"github.com/idle-engine/idle/internal/store"
	"github.com/idle-engine/idle/pkg/idle"
	"github.com/idle-engine/idle/pkg/registry"
	"github.com/idle-engine/idle/pkg/schema"
)

// requestFile is the on-disk shape of a lifecycle request.
type requestFile struct {
	LifecycleEvent string         `json:"lifecycleEvent"`
	IdentityKeys   map[string]any `json:"identityKeys"`
	DesiredState   map[string]any `json:"desiredState"`
	Changes        map[string]any `json:"changes"`
	CorrelationID  string         `json:"correlationId"`
	Actor          string         `json:"actor"`
}

// staticProvider advertises a fixed capability set, standing in for the real
// connectors a host would configure.
type staticProvider struct {
	caps []string
}

func (p *staticProvider) GetCapabilities() []string { return p.caps }

func main() {
	var (
		workflowPath = flag.String("workflow", "", "path to the workflow JSON document (required)")
		requestPath  = flag.String("request", "", "path to the lifecycle request JSON (required)")
		capsFlag     = flag.String("capabilities", "", "comma-separated capabilities to advertise (legacy names accepted)")
		workDir      = flag.String("workdir", "", "base directory for FromFile template paths")
		auditPath    = flag.String("audit", "", "optional libsql audit database, e.g. file:audit.db")
		verbose      = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if err := run(*workflowPath, *requestPath, *capsFlag, *workDir, *auditPath, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "idle:", err)
		os.Exit(1)
	}
}

func run(workflowPath, requestPath, capsFlag, workDir, auditPath string, verbose bool) error {
	if workflowPath == "" || requestPath == "" {
		return fmt.Errorf("both -workflow and -request are required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(logging.NewCorrelationHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var workflow map[string]any
	if err := readJSON(workflowPath, &workflow); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	var reqFile requestFile
	if err := readJSON(requestPath, &reqFile); err != nil {
		return fmt.Errorf("request: %w", err)
	}

	var sink schema.EventSink
	if auditPath != "" {
		audit, err := store.NewAuditLog(auditPath)
		if err != nil {
			return err
		}
		defer audit.Close()
		sink = audit
	}

	eng, err := idle.New(idle.Config{
		Handlers: registry.NewHandlerRegistry(),
		Sink:     sink,
		Logger:   logger,
		Options: schema.ExecutionOptions{
			WhatIf:     true,
			WorkingDir: workDir,
		},
	})
	if err != nil {
		return err
	}

	var providers map[string]schema.Provider
	if capsFlag != "" {
		providers = map[string]schema.Provider{
			"cli": &staticProvider{caps: strings.Split(capsFlag, ",")},
		}
	}

	ctx := context.Background()
	plan, err := eng.NewPlan(ctx, workflow, schema.LifecycleRequestInput{
		LifecycleEvent: reqFile.LifecycleEvent,
		IdentityKeys:   reqFile.IdentityKeys,
		DesiredState:   reqFile.DesiredState,
		Changes:        reqFile.Changes,
		CorrelationID:  reqFile.CorrelationID,
		Actor:          reqFile.Actor,
	}, providers)
	if err != nil {
		return err
	}

	for _, w := range plan.Warnings {
		logger.WarnContext(logging.WithCorrelationID(ctx, plan.CorrelationID), w)
	}

	exported, err := eng.ExportPlan(plan)
	if err != nil {
		return err
	}
	fmt.Println(string(exported))
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
