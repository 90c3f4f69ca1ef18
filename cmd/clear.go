package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"uploadai/internal/app"
	"uploadai/pkg/config"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete uploaded videos",
	Long:  `Remove every video record and every stored audio file from the backend storage.`,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !clearYes {
		var confirm bool
		if err := huh.NewConfirm().
			Title("Delete all uploaded videos?").
			Description("Records and stored audio are removed permanently").
			Value(&confirm).
			Run(); err != nil {
			return err
		}
		if !confirm {
			return nil
		}
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Prompts.SkipSeed = true

	result, err := app.BuildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = result.Close(closeCtx)
	}()

	count, err := result.Service.Clear(ctx)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Cleared %d video(s)", count)))
	return nil
}
