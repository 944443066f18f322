package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"city-pulse/internal/app"
	"city-pulse/internal/config"
	"city-pulse/internal/database/migration"
	"city-pulse/internal/domain"
)

func main() {
	mode := flag.String("mode", "status", "pass mode: status, heal, or force")
	sources := flag.String("sources", "", "comma-separated source ids (force mode only, default all)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall pass timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	c, err := app.NewContainer(cfg, log.Default())
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer func() {
		_ = c.Close()
	}()

	migCtx, migCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	r := migration.Runner{Dir: "migrations"}
	err = r.Run(migCtx, c.DB.SQLDB())
	migCancel()
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var report *domain.ReadinessReport
	switch strings.ToLower(strings.TrimSpace(*mode)) {
	case "status":
		report, err = c.Orchestrator.RunStatus(ctx)
	case "heal":
		report, err = c.Orchestrator.RunAutoHeal(ctx)
	case "force":
		report, err = c.Orchestrator.RunForce(ctx, splitSources(*sources)...)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
	if err != nil {
		log.Fatalf("pass failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("encode report: %v", err)
	}

	if report.LockDenied {
		os.Exit(2)
	}
	if !report.Ready {
		os.Exit(1)
	}
}

func splitSources(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
