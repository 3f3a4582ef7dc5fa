package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/croncatio/tm-indexer/internal/config"
	"github.com/croncatio/tm-indexer/internal/db"
	"github.com/croncatio/tm-indexer/internal/dispatcher"
	"github.com/croncatio/tm-indexer/internal/filter"
	"github.com/croncatio/tm-indexer/internal/gapfiller"
	"github.com/croncatio/tm-indexer/internal/indexer"
	"github.com/croncatio/tm-indexer/internal/provider"
	"github.com/croncatio/tm-indexer/internal/rpc"
	"github.com/croncatio/tm-indexer/internal/sequencer"
	"github.com/croncatio/tm-indexer/internal/source"
	"github.com/croncatio/tm-indexer/internal/store"
	"github.com/croncatio/tm-indexer/internal/util"
)

// restartInterval is how long a chain's supervisor waits before restarting
// its pipeline after a crash.
const restartInterval = 5 * time.Second

// pollPeriod is the fixed interval a polling source sleeps between
// latest-block calls.
const pollPeriod = 5 * time.Second

// migrationsPath is the ordered, idempotent SQL migrations directory
// relative to the working directory.
const migrationsPath = "migrations"

func main() {
	if err := util.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize metrics: %v\n", err)
		os.Exit(1)
	}

	util.Info("starting tm-indexer")

	chains, err := config.Discover(".")
	if err != nil {
		util.Error("failed to discover chain configs", "error", err.Error())
		os.Exit(1)
	}
	if len(chains) == 0 {
		util.Error("no configs found in the working directory")
		os.Exit(1)
	}

	dbConfig := db.NewConfig()
	logger := util.GlobalLogger

	if err := db.RunMigrations(dbConfig, migrationsPath, logger); err != nil {
		util.Error("failed to run migrations", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, dbConfig, logger)
	if err != nil {
		util.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	go func() {
		healthCheck := func() error { return pool.HealthCheck(ctx) }
		if err := util.StartMetricsServer(healthCheck); err != nil {
			util.Error("metrics server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	for _, chain := range chains {
		chain := chain
		go func() {
			indexer.Supervise(ctx, chain.ChainID, restartInterval, func(ctx context.Context) error {
				return runChain(ctx, chain, pool)
			})
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	util.Info("received signal, shutting down", "signal", sig.String())

	cancel()
	time.Sleep(time.Second)
	util.Info("shutdown complete")
}

// runChain wires and runs one chain's full pipeline — sources, provider
// fan-in, sequencer, dispatcher, indexer worker, and gap filler — until
// ctx is cancelled or a fatal error occurs.
func runChain(ctx context.Context, chain config.Chain, pool *db.Pool) error {
	util.Info("starting chain pipeline", "chain_id", chain.ChainID, "name", chain.Name)

	filterSet, err := buildFilterSet(chain.Filters)
	if err != nil {
		return fmt.Errorf("chain %s: %w", chain.ChainID, err)
	}

	rpcClient, err := buildPrimaryClient(chain)
	if err != nil {
		return fmt.Errorf("chain %s: %w", chain.ChainID, err)
	}
	defer rpcClient.Close()

	sys := provider.NewSystem()
	for _, src := range chain.Sources {
		client, err := newClientForSource(src, chain.ChainID)
		if err != nil {
			return fmt.Errorf("chain %s source %s: %w", chain.ChainID, src.Name, err)
		}
		defer client.Close()

		switch src.Type {
		case config.SourceWebsocket:
			sys.AddSource(source.NewWSSource(src.Name, client))
		case config.SourcePolling:
			sys.AddSource(source.NewPollSource(src.Name, client, pollPeriod))
		}
	}

	seq, err := sequencer.New(sequencer.Config{Capacity: sequencer.DefaultCapacity, ChainID: chain.ChainID})
	if err != nil {
		return fmt.Errorf("chain %s: %w", chain.ChainID, err)
	}

	disp := dispatcher.New()

	adapter := store.NewAdapter(pool)

	workerSub := disp.Subscribe("indexer-" + chain.ChainID)
	defer disp.Unsubscribe("indexer-" + chain.ChainID)

	worker := &indexer.Worker{
		ChainID: chain.ChainID,
		Store:   adapter,
		Fetcher: rpcClient,
		Filters: filterSet,
	}

	gf := &gapfiller.GapFiller{
		ChainID: chain.ChainID,
		Store:   adapter,
		Fetcher: rpcClient,
		Filters: filterSet,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go sys.Run(runCtx)
	seqOut := seq.Run(runCtx, sys.Out())
	go disp.Run(runCtx, seqOut)
	go gf.Run(runCtx)

	worker.Run(runCtx, workerSub)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("chain %s: live block stream ended", chain.ChainID)
}

// buildFilterSet compiles a chain's configured filters into a filter.Set.
func buildFilterSet(configured []config.Filter) (*filter.Set, error) {
	filters := make([]filter.Filter, 0, len(configured))
	for _, f := range configured {
		attrs := make([]filter.AttributeFilter, 0, len(f.Attributes))
		for _, a := range f.Attributes {
			attrs = append(attrs, filter.AttributeFilter{KeyPattern: a.Key, ValuePattern: a.Value})
		}
		filters = append(filters, filter.Filter{TypePattern: f.TypePattern, Attributes: attrs})
	}
	return filter.NewSet(filters)
}

// buildPrimaryClient dials the chain's first configured source, used for
// the gap filler's block/tx_search RPC calls shared with the live worker.
func buildPrimaryClient(chain config.Chain) (rpc.Client, error) {
	return newClientForSource(chain.Sources[0], chain.ChainID)
}

func newClientForSource(src config.Source, chainID string) (rpc.Client, error) {
	cfg, err := rpc.NewConfig(src.URL)
	if err != nil {
		return nil, err
	}
	return rpc.NewClient(cfg, chainID)
}
