package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/pipeline"
	"github.com/sells-group/audit-cli/internal/store"
)

var servePort int

// auditSubmitter launches a detached audit and returns its run ID.
// *pipeline.Pipeline satisfies it.
type auditSubmitter interface {
	Submit(ctx context.Context, req pipeline.Request) (string, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for audit requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAudit(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildMux(env.Pipeline, env.Store),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			timeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildMux wires the webhook routes. Audits launch detached; the
// response carries the run ID for polling GET /runs/{id}.
func buildMux(submitter auditSubmitter, st store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/audit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DealID      string                `json:"deal_id"`
			StageID     string                `json:"stage_id"`
			CompanyName string                `json:"company_name"`
			Domain      string                `json:"domain"`
			Country     string                `json:"country"`
			SalesTeam   []pipeline.TeamMember `json:"sales_team"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.CompanyName == "" && req.Domain == "" {
			http.Error(w, `{"error":"company_name or domain is required"}`, http.StatusBadRequest)
			return
		}

		runID, err := submitter.Submit(r.Context(), pipeline.Request{
			DealID:      req.DealID,
			StageID:     req.StageID,
			CompanyName: req.CompanyName,
			Domain:      req.Domain,
			Country:     req.Country,
			SalesTeam:   req.SalesTeam,
		})
		if err != nil {
			zap.L().Error("webhook audit not accepted",
				zap.String("company", req.CompanyName),
				zap.Error(err),
			)
			http.Error(w, `{"error":"audit could not be started"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"run_id": runID,
		})
	})

	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return mux
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
