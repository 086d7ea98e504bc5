package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rerank "github.com/soundprediction/go-rerank"
	"github.com/soundprediction/go-rerank/pkg/config"
	"github.com/soundprediction/go-rerank/pkg/logger"
)

var rankCmd = &cobra.Command{
	Use:   "rank <query> <passage> [passage...]",
	Short: "Rank passages against a query from the command line",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRank(cmd.Context(), args[0], args[1:])
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)
}

func runRank(ctx context.Context, query string, passages []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	svc, err := rerank.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer svc.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	result, err := svc.Rank(ctx, query, passages)
	if err != nil {
		return err
	}

	for rank, idx := range result.Order {
		fmt.Printf("%2d. [%.4f] %s\n", rank+1, result.Scores[idx], passages[idx])
	}
	return nil
}
