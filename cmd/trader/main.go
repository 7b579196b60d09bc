// Command trader runs the fifteen-minute binary-option decision and
// execution engine. Subcommands: `run` starts the decision loop;
// `verify` enumerates resolved configuration and checks adapter
// connectivity without placing any order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brindlecap/option15/internal/book"
	"github.com/brindlecap/option15/internal/config"
	"github.com/brindlecap/option15/internal/control"
	"github.com/brindlecap/option15/internal/execution"
	"github.com/brindlecap/option15/internal/feed"
	"github.com/brindlecap/option15/internal/observ"
	"github.com/brindlecap/option15/internal/orchestrator"
	"github.com/brindlecap/option15/internal/risk"
	"github.com/brindlecap/option15/internal/settlement"
	"github.com/brindlecap/option15/internal/statusapi"
	"github.com/brindlecap/option15/internal/tradelog"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: trader <run|verify> [flags]")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "verify":
		verifyCmd(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(2)
	}
}

func loadConfig(fs *flag.FlagSet, args []string) config.Root {
	configPath := fs.String("config", "", "path to a YAML base config file")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		observ.Fatal("config_error", map[string]any{"error": err.Error()})
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	return cfg
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfg := loadConfig(fs, args)

	observ.Init(cfg.RunID)
	observ.Log("RUN_START", map[string]any{"mode": cfg.Mode})

	runDir := filepath.Join(cfg.LogDir, cfg.RunID)
	if err := writeConfigSnapshot(runDir, cfg); err != nil {
		observ.Fatal("config_snapshot_error", map[string]any{"error": err.Error()})
	}

	riskState := risk.New(cfg.RunID, riskConfigFrom(cfg))

	logWriter, err := tradelog.New(filepath.Join(runDir, "events.jsonl"), cfg.RunID)
	if err != nil {
		observ.Fatal("io_error", map[string]any{"error": err.Error()})
	}

	metricsWriter, err := tradelog.New(filepath.Join(runDir, "metrics.jsonl"), cfg.RunID)
	if err != nil {
		observ.Fatal("io_error", map[string]any{"error": err.Error()})
	}

	resolver := settlement.NewPaperResolver()
	bookStore := book.New(book.DefaultStaleness)

	adapter, feedSource, closeFns := wireAdapterAndFeed(cfg, bookStore)
	defer func() {
		for _, fn := range closeFns {
			_ = fn()
		}
	}()

	controlChannel := control.New(context.Background(), control.Config{
		SentinelPath: filepath.Join(runDir, "KILL_SWITCH"),
		RedisEnabled: cfg.ControlRedisEnabled,
		RedisAddr:    cfg.ControlRedisAddr,
		RedisChannel: cfg.ControlRedisChannel,
	}, riskState)

	eventLog := statusapi.NewEventLog(10)

	orch := orchestrator.New(cfg, riskState, adapter, resolver, logWriter, metricsWriter, bookStore, eventLog, feedSource, controlChannel)

	statusSrv := statusapi.New(riskState, orch, orch, eventLog)
	httpSrv := &http.Server{Addr: cfg.StatusAddr, Handler: statusSrv}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observ.Log("status_api_error", map[string]any{"error": err.Error()})
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		observ.Fatal("orchestrator_error", map[string]any{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	observ.Log("RUN_END", map[string]any{"mode": cfg.Mode})
}

func verifyCmd(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cfg := loadConfig(fs, args)

	fmt.Printf("mode=%s execution_enabled=%v max_trades_per_run=%d\n", cfg.Mode, cfg.ExecutionEnabled, cfg.MaxTradesPerRun)
	fmt.Printf("edge_base=%.2f edge_mid=%.2f edge_high=%.2f ask_cap=%.2f spread_max=%.2f\n", cfg.EdgeBase, cfg.EdgeMid, cfg.EdgeHigh, cfg.AskCap, cfg.SpreadMax)
	fmt.Printf("core=[%.0f,%.0f) pnl_floor=%.2f cooldown_sec=%d regime_mod_enabled=%v\n", cfg.CoreLoSec, cfg.CoreHiSec, cfg.PnLFloor, cfg.CooldownSec, cfg.RegimeModEnabled)

	if cfg.Mode == "real" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		adapter, err := execution.NewLiveAdapter(ctx, cfg.LiveExecutionURL, 5*time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "live execution connectivity check failed: %v\n", err)
			os.Exit(1)
		}
		_ = adapter.Close()
		fmt.Println("live execution endpoint reachable")
	}

	fmt.Println("OK")
}

func riskConfigFrom(cfg config.Root) risk.Config {
	rc := risk.DefaultConfig()
	rc.MaxTradesPerRun = cfg.MaxTradesPerRun
	rc.PnLFloor = decimal.NewFromFloat(cfg.PnLFloor)
	rc.CooldownPerZone = time.Duration(cfg.CooldownSec) * time.Second
	return rc
}

func wireAdapterAndFeed(cfg config.Root, bookStore *book.Store) (execution.Adapter, feed.Source, []func() error) {
	if cfg.Mode == "real" {
		liveFeed := feed.NewLiveSource(cfg.LiveFeedURL, feed.DefaultReconnectConfig())

		if !cfg.ExecutionEnabled {
			// MODE=real without EXECUTION_ENABLED=true is a shadow run:
			// live market data, but fills are synthesized, never placed.
			observ.Log("execution_disabled", map[string]any{"mode": cfg.Mode})
			return execution.NewPaperAdapter(cfg.RunID), liveFeed, nil
		}

		ctx := context.Background()
		liveAdapter, err := execution.NewLiveAdapter(ctx, cfg.LiveExecutionURL, time.Second)
		if err != nil {
			observ.Fatal("placement_connect_error", map[string]any{"error": err.Error()})
		}
		gate := &execution.BookRetryGate{Book: bookStore, Thresholds: orchestrator.ThresholdsFromConfig(cfg)}
		retrying := execution.NewRetryingAdapter(liveAdapter, gate)
		return retrying, liveFeed, []func() error{liveAdapter.Close}
	}

	paperAdapter := execution.NewPaperAdapter(cfg.RunID)
	paperFeed := feed.NewPaperSource(cfg.RunID, time.Second, 0.5)
	return paperAdapter, paperFeed, nil
}

func writeConfigSnapshot(runDir string, cfg config.Root) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(runDir, "config.json"))
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(cfg)
}
