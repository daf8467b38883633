package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/retrieval-cli/internal/budget"
	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run-status HTTP server",
	Long:  "Read-only HTTP endpoints over run history and the daily budget. The server never triggers pipeline work.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		tracker, err := budget.NewTracker(cfg.Budget.StateFile, cfg.Budget.MaxCallsPerDay)
		if err != nil {
			return eris.Wrap(err, "load budget state")
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /budget", func(w http.ResponseWriter, r *http.Request) {
			used, ceiling := tracker.Used()
			writeJSON(w, http.StatusOK, map[string]int{
				"used":      used,
				"ceiling":   ceiling,
				"remaining": tracker.Remaining(),
			})
		})

		mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
			runs, err := st.ListRuns(r.Context(), store.RunFilter{
				Status: model.RunStatus(r.URL.Query().Get("status")),
				Limit:  50,
			})
			if err != nil {
				zap.L().Error("list runs", zap.Error(err))
				http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			run, err := st.GetRun(r.Context(), r.PathValue("id"))
			if err != nil {
				http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		mux.HandleFunc("GET /report", func(w http.ResponseWriter, r *http.Request) {
			runs, err := st.ListRuns(r.Context(), store.RunFilter{Limit: 50})
			if err != nil {
				zap.L().Error("list runs", zap.Error(err))
				http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
				return
			}
			// Runs come back newest first; serve the latest finished report.
			for _, run := range runs {
				if len(run.Report) > 0 {
					writeJSON(w, http.StatusOK, json.RawMessage(run.Report))
					return
				}
			}
			http.Error(w, `{"error":"no completed run with a report"}`, http.StatusNotFound)
		})

		mux.HandleFunc("GET /runs/{id}/outcomes", func(w http.ResponseWriter, r *http.Request) {
			outcomes, err := st.ListOutcomes(r.Context(), r.PathValue("id"))
			if err != nil {
				zap.L().Error("list outcomes", zap.Error(err))
				http.Error(w, `{"error":"list outcomes failed"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, outcomes)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting status server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down status server")
			return srv.Shutdown(ctx)
		})

		return g.Wait()
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
