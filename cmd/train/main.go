package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"CoinPull/internal/di"
	"CoinPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	timeout := flag.Duration("timeout", 5*time.Minute, "training deadline")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if cfg.Scorer.ModelStore == "http" {
		log.Fatalf("scorer.model_store=http: the remote service owns its model")
	}

	trainer, cleanup, err := di.InitializeTrainer(cfg)
	if err != nil {
		log.Fatalf("trainer initialization failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	report, err := trainer.Train(ctx)
	cancel()
	cleanup()
	if err != nil {
		log.Printf("training failed: %v (samples=%d)", err, report.Samples)
		os.Exit(1)
	}

	fmt.Printf("samples=%d trades=%d signals=%d skipped=%d train=%d test=%d\n",
		report.Samples, report.Trades, report.Signals, report.Skipped, report.TrainSize, report.TestSize)
	fmt.Printf("accuracy=%.2f%%\n", report.Accuracy*100)
}
