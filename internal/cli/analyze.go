package cli

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/events"
	"stock-scanner/internal/llm"
	"stock-scanner/internal/market"
	"stock-scanner/internal/orchestrator"
	"stock-scanner/internal/store"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <stock-code> [stock-code...]",
		Short: "Run a one-off analysis from the terminal",
		Long: `Analyze one or more stocks using indicator data from the local store.

Streams the AI narration to the terminal as it arrives. With --ndjson
the raw event lines are written instead, matching the HTTP API wire
format. Indicator rows must have been imported beforehand.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return apperrors.Wrap(apperrors.ErrStoreClosed, "store unavailable")
			}

			marketFlag, _ := cmd.Flags().GetString("market")
			days, _ := cmd.Flags().GetInt("days")
			presetID, _ := cmd.Flags().GetString("preset")
			portfolio, _ := cmd.Flags().GetString("portfolio")
			ndjson, _ := cmd.Flags().GetBool("ndjson")

			codes := make([]string, 0, len(args))
			for _, a := range args {
				if c := strings.TrimSpace(a); c != "" {
					codes = append(codes, c)
				}
			}
			if len(codes) == 0 {
				return apperrors.Wrap(apperrors.ErrInvalidRequest, "no stock codes given")
			}

			orch := orchestrator.New(
				store.Provider(app.Store),
				market.NewTechnicalScorer(),
				llm.Overrides{
					URL:     app.Config.API.URL,
					Key:     app.Config.API.Key,
					Model:   app.Config.API.Model,
					Timeout: app.Config.API.Timeout,
				},
				app.Logger,
			)

			req := orchestrator.Request{
				StockCodes:       codes,
				MarketType:       market.ParseType(marketFlag),
				Stream:           true,
				Days:             days,
				PresetID:         presetID,
				PortfolioContext: portfolio,
			}

			ch := orch.Run(cmd.Context(), req)
			if ndjson {
				for ev := range ch {
					if err := events.Write(os.Stdout, ev); err != nil {
						return err
					}
				}
				return nil
			}

			output := NewOutput(cmd)
			return renderAnalysis(output, ch)
		},
	}

	cmd.Flags().String("market", "A", "market type: A, US, HK, ETF, LOF")
	cmd.Flags().Int("days", 30, "number of trading days to analyze")
	cmd.Flags().String("preset", "", "analysis preset id (see 'stockscan presets')")
	cmd.Flags().String("portfolio", "", "portfolio context passed to the AI")
	cmd.Flags().Bool("ndjson", false, "emit raw NDJSON event lines")
	return cmd
}

// renderAnalysis consumes an event stream and pretty-prints it. Narrative
// chunks are written as they arrive; snapshots and completions get a
// structured summary.
func renderAnalysis(output *Output, ch <-chan events.Event) error {
	var failed bool
	currentRole := ""

	for ev := range ch {
		switch e := ev.(type) {
		case events.OrchestratorInit:
			output.Dim("preset %s  analysis %s", e.Orchestrator.PresetID, e.Orchestrator.AnalysisID)

		case events.Snapshot:
			output.Println()
			output.Bold("%s", e.StockCode)
			output.Printf("  price %.2f (%s)  RSI %.2f  MA %s  MACD %s  volume %s\n",
				e.Price, FormatSignedPercent(e.PriceChange), e.RSI,
				e.MATrend, e.MACDSignal, e.VolumeStatus)
			output.Println()

		case events.Chunk:
			if e.Role != "" && e.Role != currentRole {
				currentRole = e.Role
				output.Println()
				output.Info("[%d] %s", e.Order, e.Role)
			}
			output.Print("%s", e.Text)

		case events.Completion:
			output.Println()
			rec := output.Recommendation(e.Recommendation)
			score := output.ColoredString(output.ScoreColor(e.Score), strconv.Itoa(e.Score))
			output.Printf("%s  score %s  %s", output.Cyan(e.StockCode), score, rec)
			if e.TokenUsage != nil {
				if e.TokenUsage.Estimated {
					output.Printf("  tokens ~%s", FormatTokenCount(e.TokenUsage.TotalTokens))
				} else {
					output.Printf("  tokens %s", FormatTokenCount(e.TokenUsage.TotalTokens))
				}
			}
			output.Println()

		case events.Error:
			failed = true
			output.Println()
			output.Error("%s: %s", e.StockCode, e.Message)
		}
	}

	if failed {
		return apperrors.Wrap(apperrors.ErrEmptyResponse, "one or more analyses failed")
	}
	return nil
}
