package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/fetcher"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/partition"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/pipeline"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/reconciler"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the viewer query API for the map front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initViewer(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		rec := reconciler.New(env.parts, env.index, nil)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/api/meta", handleMeta)
		r.Get("/api/facilities", handleFacilities(rec))
		r.Get("/api/pollutants", handlePollutants(rec))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// handleMeta reports the fixed query vocabulary the front-end builds its
// controls from.
func handleMeta(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"regions":       partition.Regions,
		"all_regions":   partition.AllRegions,
		"class_filters": []string{model.ClassAll.String(), model.ClassOnly.String(), model.ClassExclude.String()},
	})
}

type facilitiesResponse struct {
	Count          int                    `json:"count"`
	Plottable      int                    `json:"plottable"`
	MissingRegions []string               `json:"missing_regions,omitempty"`
	Near           []string               `json:"near"`
	Facilities     []model.FacilityRecord `json:"facilities"`
}

// handleFacilities resolves one query selection. Unlike the stateful
// control path, every request is its own epoch; the session classification
// cache is still shared through the reconciler.
func handleFacilities(rec *reconciler.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st, ok := selectionFromQuery(w, req)
		if !ok {
			return
		}

		res, err := rec.Resolve(req.Context(), st)
		if err != nil {
			writeResolveError(w, "facilities query failed", st, err)
			return
		}

		resp := facilitiesResponse{
			Count:      len(res.Display),
			Plottable:  pipeline.Plottable(res.Display),
			Near:       make([]string, 0, len(res.Near)),
			Facilities: res.Display,
		}
		for id := range res.Near {
			resp.Near = append(resp.Near, id)
		}
		sort.Strings(resp.Near)
		if res.Report != nil {
			resp.MissingRegions = res.Report.Missing
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handlePollutants reports the pollutant vocabulary of a region/year scope:
// the sorted distinct pollutant names across the resolved records, before
// any filtering. The front-end builds its pollutant selector from this.
func handlePollutants(rec *reconciler.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st, ok := selectionFromQuery(w, req)
		if !ok {
			return
		}
		st.Pollutant = ""
		st.Class = model.ClassAll

		res, err := rec.Resolve(req.Context(), st)
		if err != nil {
			writeResolveError(w, "pollutant list query failed", st, err)
			return
		}

		seen := make(map[string]struct{})
		names := make([]string, 0, 64)
		for i := range res.Records {
			p := res.Records[i].Pollutant
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			names = append(names, p)
		}
		sort.Strings(names)

		writeJSON(w, http.StatusOK, map[string]any{"pollutants": names})
	}
}

// selectionFromQuery validates the query parameters into an AppState. On
// failure it writes a 400 and returns ok=false.
func selectionFromQuery(w http.ResponseWriter, req *http.Request) (model.AppState, bool) {
	q := req.URL.Query()

	region := q.Get("region")
	year := q.Get("year")
	if region != partition.AllRegions && !partition.IsRegion(region) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown region %q", region))
		return model.AppState{}, false
	}
	if len(year) != 4 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid year %q", year))
		return model.AppState{}, false
	}
	class, err := model.ParseClassFilter(q.Get("class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.AppState{}, false
	}

	return model.AppState{
		Pollutant: q.Get("pollutant"),
		Region:    region,
		Year:      year,
		Class:     class,
	}, true
}

func writeResolveError(w http.ResponseWriter, msg string, st model.AppState, err error) {
	status := http.StatusBadGateway
	if eris.Is(err, fetcher.ErrNotFound) {
		status = http.StatusNotFound
	}
	zap.L().Warn(msg,
		zap.String("region", st.Region),
		zap.String("year", st.Year),
		zap.Error(err),
	)
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
