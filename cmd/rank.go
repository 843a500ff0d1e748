package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/export"
	"github.com/spigell/cv-screener/internal/ranking"
	"github.com/spigell/cv-screener/internal/utils"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank evaluated candidates and optionally export an Excel report",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().Int("min-score", 0, "drop candidates scoring below this value")
	rankCmd.Flags().StringP("exclude-file", "e", "", "file with applications to exclude. Default is unset.")
	rankCmd.Flags().String("job-id", "", "rank only evaluations of this job")
	rankCmd.Flags().String("job-title", "", "rank only evaluations whose job title contains this text")
	rankCmd.Flags().String("xlsx", "", "write the ranking to this Excel workbook")
	rankCmd.Flags().Bool("exclude-ranked", false, "append the ranked applications to the exclude file")
	rankCmd.Flags().Bool("no-min-score", false, "disable the min_score filter")

	viper.BindPFlag("ranking.min-score", rankCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("ranking.exclude-file", rankCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("ranking.job-id", rankCmd.Flags().Lookup("job-id"))
	viper.BindPFlag("ranking.job-title", rankCmd.Flags().Lookup("job-title"))
}

func rank(ctx context.Context, cmd *cobra.Command) {
	a := setup(ctx)
	defer a.Close()

	cfg := a.config.Ranking
	steps := ranking.Default()
	if off, _ := cmd.Flags().GetBool("no-min-score"); off {
		ranking.DisableByName(steps, "min_score", "disabled by flag")
	}

	ranked, err := a.service.Rank(ctx, &cfg, steps)
	if err != nil {
		fail(a.logger, "ranking candidates", err)
	}

	if ranked.Len() == 0 {
		a.logger.Info("exiting", zap.String("reason", "no candidates left after filters"))
		return
	}

	pretty, _ := json.MarshalIndent(ranked.ReportByJob(), "", "  ")
	a.logger.Info(string(pretty), zap.Int("candidates count", ranked.Len()))

	if path := cmd.Flag("xlsx").Value.String(); path != "" {
		written, err := export.WriteFile(path, export.Report{
			Title:       utils.FirstNonEmpty(cfg.JobTitle, cfg.JobID, "all jobs"),
			GeneratedAt: time.Now().UTC(),
			Records:     ranked.Items,
		})
		if err != nil {
			a.logger.Fatal("writing the workbook", zap.Error(err))
		}
		a.logger.Info("workbook written", zap.String("filename", written))
	}

	if ok, _ := cmd.Flags().GetBool("exclude-ranked"); ok {
		if err := appendExcluded(cfg.ExcludeFile, ranked); err != nil {
			a.logger.Fatal("updating the exclude file", zap.Error(err))
		}
		a.logger.Info("appended to exclude file", zap.String("filename", cfg.ExcludeFile))
	}
}

func appendExcluded(path string, ranked *ranking.Candidates) error {
	if path == "" {
		return fmt.Errorf("exclude file is not configured")
	}
	excluded, err := ranking.LoadExcluded(path)
	if err != nil {
		return err
	}
	excluded.Append(ranked.ToExcluded())
	return excluded.ToFile(path)
}
