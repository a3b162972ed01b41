package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"StockPulse/internal/backtest"
	"StockPulse/internal/di"
	"StockPulse/internal/domain/models"
	"StockPulse/pkg/config"
	"StockPulse/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	predictSym := flag.String("predict", "", "one-shot: predict a symbol and exit")
	backtestSym := flag.String("backtest", "", "one-shot: backtest a symbol and exit")
	scanBoard := flag.String("scan", "", "one-shot: scan backtest a board (main|chinext|star) and exit")
	start := flag.String("start", "", "period start for backtests, YYYY-MM-DD")
	end := flag.String("end", "", "period end for backtests, YYYY-MM-DD")
	topK := flag.Int("topk", 5, "scan: symbols held per day")
	minProb := flag.Float64("minprob", 0.5, "scan: minimum entry probability")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx := context.Background()
	from := util.ParseDateDefault(*start, time.Now().AddDate(-2, 0, 0))
	to := util.ParseDateDefault(*end, time.Now())

	switch {
	case *predictSym != "":
		printResult(app.PredictOnce(ctx, *predictSym, ""))
	case *backtestSym != "":
		printResult(app.BacktestOnce(ctx, *backtestSym, from, to))
	case *scanBoard != "":
		printResult(app.ScanOnce(ctx, backtest.ScanParams{
			Board:      models.Board(*scanBoard),
			Start:      from,
			End:        to,
			TopK:       *topK,
			MinProb:    *minProb,
			MaxSymbols: cfg.Backtest.MaxSymbols,
		}))
	default:
		if err := app.Run(); err != nil {
			log.Printf("app error: %v", err)
			os.Exit(1)
		}
	}
}

func printResult(v interface{}, err error) {
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}
