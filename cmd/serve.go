package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluated feed over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/profiles", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, e.Profiles.Keys())
		})

		r.Get("/api/feed", func(w http.ResponseWriter, r *http.Request) {
			profileKey := r.URL.Query().Get("profile")
			if profileKey == "" {
				profileKey = cfg.Profiles.Default
			}
			if _, err := e.Profiles.Resolve(profileKey); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown profile"})
				return
			}

			f := selectionFilter()
			if v := r.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 || n > 100 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
					return
				}
				f.Limit = n
			}
			if v := r.URL.Query().Get("min_score"); v != "" {
				s, err := strconv.ParseFloat(v, 64)
				if err != nil || s < 0 || s > 100 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_score"})
					return
				}
				f.MinScore = s
			}

			listings, err := e.Selector.Select(r.Context(), profileKey, f)
			if err != nil {
				zap.L().Error("feed query failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "feed query failed"})
				return
			}
			writeJSON(w, http.StatusOK, listings)
		})

		r.Get("/api/listings", func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Query().Get("key")
			if key == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
				return
			}
			l, err := e.Store.FindByIdentity(r.Context(), key)
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "listing not found"})
					return
				}
				zap.L().Error("listing lookup failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
				return
			}
			writeJSON(w, http.StatusOK, l)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
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
