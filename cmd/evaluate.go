package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/screening"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Aggregate a scored rubric into an evaluation record",
	Long: `Reads an evaluation request as JSON:

  {"applicationId": "...", "profileId": "...", "jobId": "...", "categories": [
    {"name": "Experience", "items": [{"name": "Go", "score": 8, "scoreBase": 10}]}
  ]}`,
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd.Context(), cmd)
	},
}

var evaluationCmd = &cobra.Command{
	Use:   "evaluation <application-id>",
	Short: "Show the latest evaluation of an application",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := setup(cmd.Context())
		defer a.Close()

		record, err := a.service.ReadEvaluation(cmd.Context(), args[0])
		if err != nil {
			fail(a.logger, "reading the evaluation", err)
		}
		if err := printJSON(record); err != nil {
			a.logger.Fatal("writing output", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd, evaluationCmd)

	evaluateCmd.Flags().StringP("file", "f", "-", "request file, - reads stdin")
	evaluateCmd.Flags().Bool("summary", false, "ask the ai provider for a short summary")
}

func evaluate(ctx context.Context, cmd *cobra.Command) {
	a := setup(ctx)
	defer a.Close()

	raw, err := readInput(cmd.Flag("file").Value.String())
	if err != nil {
		a.logger.Fatal("reading the request", zap.Error(err))
	}

	var req screening.EvaluateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		a.logger.Fatal("decoding the request", zap.Error(err))
	}
	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		req.WithSummary = true
	}

	record, err := a.service.Evaluate(ctx, req)
	if err != nil {
		fail(a.logger, "evaluating the application", err)
	}

	a.logger.Info("evaluation stored",
		zap.String("application_id", record.ApplicationID),
		zap.Int("score", record.Result.TotalEvaluationScore),
	)

	if err := printJSON(record); err != nil {
		a.logger.Fatal("writing output", zap.Error(err))
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
