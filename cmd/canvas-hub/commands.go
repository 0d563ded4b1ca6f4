package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/canvas-hub/canvas-homework-hub/config"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/scheduler"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/scheduler/jobs"
	apihttp "github.com/canvas-hub/canvas-homework-hub/internal/interface/http"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN
// ══════════════════════════════════════════════════════════════════════════════

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the poller, HTTP API and event sinks until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, opts)
		},
	}
}

func runWorker(ctx context.Context, opts *options) error {
	a, err := newApp(ctx, opts, wiring{sinks: true})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	log := a.log
	log.Info("starting Canvas Homework Hub",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"poll_interval", cfg.Poll.Interval.String(),
		"state_backend", cfg.EffectiveBackend(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	sched := scheduler.NewScheduler(schedCfg)

	var regOpts []scheduler.RegisterOption
	if cfg.Poll.RunOnStart {
		regOpts = append(regOpts, scheduler.RunOnStart())
	}
	if err := sched.Register(a.job, scheduler.NewIntervalSchedule(cfg.Poll.Interval), regOpts...); err != nil {
		return fmt.Errorf("failed to register poll job: %w", err)
	}
	health := a.healthChecker()
	var lastPoll atomic.Pointer[scheduler.JobResult]
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if r.JobName == jobs.PollHomeworkJobName {
			lastPoll.Store(&r)
		}
	})
	health.AddCheck("poll", func(context.Context) error {
		if r := lastPoll.Load(); r != nil && !r.Success {
			return fmt.Errorf("last poll failed: %s", r.Error)
		}
		return nil
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	var server *apihttp.Server
	var serverErr <-chan error
	if cfg.HTTP.Enabled {
		server = apihttp.NewServer(httpConfig(cfg), apihttp.Dependencies{
			Poller:      a.job,
			Sensors:     a.projector,
			Jobs:        sched,
			Events:      eventHistory(a),
			Health:      health,
			PollJobName: jobs.PollHomeworkJobName,
			Version:     cfg.App.Version,
			Logger:      log,
		})
		serverErr = server.StartAsync()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// CONFIG RELOAD
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Path != "" {
		interval := cfg.Poll.Interval
		watcher, err := config.NewWatcher(cfg.Path, 0, func(next *config.Config) {
			a.level.Set(logLevel(next, opts.Verbose))
			if next.Poll.Interval != interval {
				if err := sched.Reschedule(jobs.PollHomeworkJobName, scheduler.NewIntervalSchedule(next.Poll.Interval)); err != nil {
					log.Warn("failed to apply new poll interval", "error", err)
					return
				}
				log.Info("poll interval changed", "interval", next.Poll.Interval.String())
				interval = next.Poll.Interval
			}
		}, log)
		if err != nil {
			log.Warn("config reload disabled", "error", err)
		} else {
			defer watcher.Close()
			go watcher.Start(ctx)
		}
	}

	log.Info("Canvas Homework Hub is running")

	// ─────────────────────────────────────────────────────────────────────────
	// GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown", "error", err)
		}
	}

	// Stop waits for an in-flight cycle; it has already stopped emitting
	// if it was cancelled before the emitting phase.
	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()
	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler stop", "error", err)
		}
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out waiting for poll cycle")
	}

	log.Info("shutdown completed successfully")
	return nil
}

func httpConfig(cfg *config.Config) apihttp.Config {
	hc := apihttp.DefaultConfig()
	hc.Addr = cfg.HTTP.Addr
	hc.APIKeys = cfg.HTTP.APIKeys
	hc.EnablePollTrigger = cfg.Features.IsEnabled(config.FeatureAPIPollTrigger)
	return hc
}

func eventHistory(a *app) apihttp.EventHistory {
	if a.eventLog == nil {
		return nil
	}
	return a.eventLog
}

func (a *app) healthChecker() *apihttp.HealthChecker {
	h := apihttp.NewHealthChecker(a.cfg.App.Version)
	h.AddCheck("canvas", func(context.Context) error {
		if state := a.client.Status().CircuitBreaker; state == "open" {
			return fmt.Errorf("canvas circuit breaker is %s", state)
		}
		return nil
	})
	if a.db != nil {
		h.AddCheck("postgres", a.db.Ping)
	}
	if a.cache != nil {
		h.AddCheck("redis", a.cache.Ping)
	}
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// POLL
// ══════════════════════════════════════════════════════════════════════════════

func newPollCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll cycle and print its statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, wiring{sinks: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.job.Run(ctx); err != nil {
				return fmt.Errorf("poll cycle failed: %w", err)
			}

			stats, _ := a.job.LastStats()
			out := cmd.OutOrStdout()
			if opts.JSONOutput {
				return printJSON(out, stats)
			}

			fmt.Fprintf(out, "Students:     %d\n", stats.Students)
			fmt.Fprintf(out, "Assignments:  %d\n", stats.Assignments)
			fmt.Fprintf(out, "Appeared:     %d\n", stats.Appeared)
			fmt.Fprintf(out, "Completed:    %d\n", stats.Completed)
			if stats.PublishFailed > 0 {
				fmt.Fprintf(out, "Failed sends: %d\n", stats.PublishFailed)
			}
			fmt.Fprintf(out, "Duration:     %s\n", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print per-student homework counts from the persisted state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, wiring{})
			if err != nil {
				return err
			}
			defer a.Close()

			summary := a.job.Summary(ctx)
			if a.snapshots != nil {
				if snap, err := a.snapshots.LoadSnapshot(ctx); err == nil {
					summary = homework.Summarize(a.job.CurrentState(ctx), snap.Roster())
				}
			}

			if opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
}

func printSummary(out io.Writer, s homework.Summary) error {
	ids := make([]homework.StudentID, 0, len(s.Students))
	for id := range s.Students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDENT\tNAME\tKNOWN\tCOMPLETED\tPENDING")
	for _, id := range ids {
		st := s.Students[id]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", id, st.Name, st.Known, st.Completed, st.Pending)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t%d\n", s.TotalKnown, s.TotalCompleted, s.TotalPending)
	return tw.Flush()
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATE
// ══════════════════════════════════════════════════════════════════════════════

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the Canvas URL and token and list observed students",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, wiring{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.client.Validate(ctx); err != nil {
				return err
			}
			observees, err := a.client.Observees(ctx)
			if err != nil {
				return fmt.Errorf("list observees: %w", err)
			}

			students := make([]homework.Student, 0, len(observees))
			for _, o := range observees {
				students = append(students, a.client.Mapper().StudentFromDTO(o))
			}

			out := cmd.OutOrStdout()
			if opts.JSONOutput {
				return printJSON(out, map[string]interface{}{"valid": true, "students": students})
			}
			fmt.Fprintf(out, "Canvas credentials OK (%s)\n", a.cfg.Canvas.BaseURL)
			for _, s := range students {
				fmt.Fprintf(out, "  %s  %s\n", s.ID, s.DisplayName())
			}
			return nil
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESET STATE
// ══════════════════════════════════════════════════════════════════════════════

func newResetStateCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-state",
		Short: "Forget all known and completed assignments",
		Long: `Overwrites the persisted tracking state with an empty one.
The next poll cycle announces every current assignment as new again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts, wiring{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.job.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tracking state reset")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
