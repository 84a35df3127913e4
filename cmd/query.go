package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/pipeline"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/reconciler"
)

var (
	queryYear      string
	queryRegion    string
	queryPollutant string
	queryClass     string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one query selection and print the display set as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := model.ParseClassFilter(queryClass)
		if err != nil {
			return err
		}

		env, err := initViewer(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		out := &consoleRenderer{}
		rec := reconciler.New(env.parts, env.index, out)

		ctx := cmd.Context()
		rec.SetPollutant(ctx, queryPollutant)
		rec.SetClassFilter(ctx, class)
		rec.SetRegion(ctx, queryRegion)
		rec.SetYear(ctx, queryYear)
		rec.WaitIdle()

		switch rec.Phase() {
		case reconciler.PhaseError:
			return eris.Errorf("query failed: %s", out.ErrorMessage())
		case reconciler.PhaseIdle:
			return eris.New("query: both --region and --year are required")
		}

		display := rec.Display()
		resp := facilitiesResponse{
			Count:      len(display),
			Plottable:  pipeline.Plottable(display),
			Near:       []string{},
			Facilities: display,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

// consoleRenderer logs progress and keeps the last error message for the
// exit path. The display set itself is read back from the reconciler.
type consoleRenderer struct {
	mu      sync.Mutex
	lastErr string
}

func (r *consoleRenderer) RenderDisplaySet([]model.FacilityRecord) {}
func (r *consoleRenderer) ClearRendering()                         {}

func (r *consoleRenderer) ReportCount(n int) {
	zap.L().Info("display set", zap.Int("count", n))
}

func (r *consoleRenderer) ReportProgress(done, total int) {
	zap.L().Info("fetch progress", zap.Int("done", done), zap.Int("total", total))
}

func (r *consoleRenderer) ReportError(msg string) {
	r.mu.Lock()
	r.lastErr = msg
	r.mu.Unlock()
}

func (r *consoleRenderer) ErrorMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func init() {
	queryCmd.Flags().StringVar(&queryYear, "year", "", "query year, e.g. 2019")
	queryCmd.Flags().StringVar(&queryRegion, "region", "", "region code or ALL")
	queryCmd.Flags().StringVar(&queryPollutant, "pollutant", "", "pollutant name filter")
	queryCmd.Flags().StringVar(&queryClass, "class", "all", "proximity class filter: all, only, exclude")
	_ = queryCmd.MarkFlagRequired("year")
	_ = queryCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(queryCmd)
}
