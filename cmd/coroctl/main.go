// coroctl boots the scheduling core standalone: a reactor-driven
// Scheduler, a demo TaskPool and a throttled one fed by a timer-driven
// producer, and (if enabled) a Prometheus metrics endpoint. It has no
// RPC surface of its own, it exists to exercise the core end to end
// without a driving application.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/coresched"
	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/logger"
	"github.com/maumercado/corosched/internal/pool"
	"github.com/maumercado/corosched/internal/poolstore"
	"github.com/maumercado/corosched/internal/reactor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("starting coroctl")

	loop, err := reactor.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build event loop")
	}

	failures := pool.NewFailureLog(256)
	// Init/Get realize spec.md §6's initScheduler/scheduler() ambient
	// accessor: coroctl is exactly the kind of call site the design note
	// in internal/coresched/singleton.go anticipates, one that has no
	// other plumbing for a *Scheduler reference at the signal-handling
	// shutdown site below.
	sched, err := coresched.Init(cfg.Scheduler, loop, coresched.WithExceptionHandler(failures.Handler()))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build scheduler")
	}

	var store *poolstore.Store
	if cfg.Redis.Enabled {
		store, err = poolstore.New(cfg.Redis, "ping-throttled")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to poolstore Redis backend")
		}
		defer store.Close()
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		srv := &http.Server{Addr: ":9090", Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server stopped unexpectedly")
			}
		}()
		defer srv.Close()
	}

	var completed atomic.Int64
	demoPool := pool.New[int, *pingItem]("ping-demo", sched, cfg.Scheduler.WorkerLimit, func() *pingItem {
		return newPingItem(&completed)
	})

	upstream := &logSuspendable{log: logger.WithComponent("demo-producer")}
	throttled, err := pool.NewThrottled[int, *pingItem]("ping-throttled", sched, cfg.Scheduler.WorkerLimit, func() *pingItem {
		return newPingItem(&completed)
	}, upstream, cfg.Scheduler.WorkerLimit, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build throttled demo pool")
	}

	// Seed the throttled pool from whatever a prior run last persisted
	// per worker slot, before anything is scheduled.
	var persistCh chan int
	if store != nil {
		ctx := context.Background()
		restored, err := poolstore.RestoreAll(ctx, store, throttled)
		if err != nil {
			log.Error().Err(err).Msg("poolstore: RestoreAll failed, starting cold")
		} else if restored > 0 {
			log.Info().Int("restored", restored).Msg("poolstore: resumed throttled pool instances from prior run")
		}

		// Persisting runs on its own goroutine, off the scheduler's
		// single cooperative thread of control: the producer task body
		// below only ever does a non-blocking channel send, so a slow
		// Redis round trip never stalls the reactor.
		persistCh = make(chan int, 2*cfg.Scheduler.WorkerLimit)
		go func() {
			for n := range persistCh {
				slot := n % cfg.Scheduler.WorkerLimit
				key := "slot-" + strconv.Itoa(slot)
				if err := store.Save(context.Background(), key, []byte(strconv.Itoa(n))); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("poolstore: failed to persist slot checkpoint")
				}
			}
		}()
	}

	var seq atomic.Int64
	producer := coretask.New("demo-producer", func(tk *coretask.Task) error {
		for {
			if sched.State() == coresched.StateShuttingDown {
				return nil
			}
			n := int(seq.Add(1))
			demoPool.Start(n)
			throttled.Start(n)
			if persistCh != nil {
				select {
				case persistCh <- n:
				default:
				}
			}
			if err := sched.Wait(tk, 50*time.Millisecond); err != nil {
				return err
			}
		}
	}, nil)
	if err := sched.Schedule(producer); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule demo producer")
	}

	done := make(chan error, 1)
	go func() { done <- sched.EventLoop() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
		live, err := coresched.Get()
		if err != nil {
			log.Error().Err(err).Msg("coresched.Get: singleton unexpectedly absent at shutdown")
			live = sched
		}
		live.Shutdown(nil)
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("event loop exited with error")
		}
		return
	}

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("event loop exited with error during shutdown")
		}
	case <-time.After(5 * time.Second):
		log.Warn().Msg("event loop did not quiesce within shutdown grace period")
	}

	if persistCh != nil {
		close(persistCh)
	}

	log.Info().
		Int64("completed", completed.Load()).
		Int("failures", failures.Len()).
		Msg("coroctl stopped")
}
