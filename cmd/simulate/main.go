// Command simulate runs one batch through a fresh in-memory session and prints
// the run report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"RewardBid/internal/di"
	"RewardBid/internal/domain/models"
	internalrepo "RewardBid/internal/repository"
	"RewardBid/internal/usecase"
	"RewardBid/pkg/config"
	"RewardBid/pkg/logger"
	pkgmetrics "RewardBid/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "optional config file for bidding settings")
	in := flag.String("in", "-", "batch JSON file, - for stdin")
	out := flag.String("out", "", "write the report to this file instead of stdout")
	budget := flag.Float64("budget", 0, "session budget (default from config)")
	verbose := flag.Bool("v", false, "log each step to stderr")
	flag.Parse()

	if err := run(*configPath, *in, *out, *budget, *verbose); err != nil {
		log.Fatalf("simulate: %v", err)
	}
}

func run(configPath, in, out string, budget float64, verbose bool) error {
	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if budget <= 0 {
		budget = cfg.Bidding.DefaultBudget
	}

	batch, err := readBatch(in)
	if err != nil {
		return err
	}

	l := logger.Nop()
	if verbose {
		l, err = logger.New(&logger.Config{Level: "debug", Format: "console", Output: "stderr"})
		if err != nil {
			return err
		}
	}

	sessions := usecase.NewSessionManager(di.EngineSettingsFromConfig(cfg), pkgmetrics.Nop{}, l,
		usecase.WithStrengths(internalrepo.NewStaticStrengthSource(cfg.Bidding.Strengths)),
	)
	ctx := context.Background()
	st, err := sessions.Create(ctx, usecase.CreateSessionParams{Budget: budget})
	if err != nil {
		return err
	}
	defer sessions.Shutdown(ctx)

	report, err := sessions.Run(ctx, st.ID, batch)
	if err != nil {
		return err
	}
	return writeReport(out, report)
}

func readBatch(path string) (*models.Batch, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var batch models.Batch
	if err := json.NewDecoder(r).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &batch, nil
}

func writeReport(path string, report *models.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
