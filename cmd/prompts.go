package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"uploadai/pkg/config"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the prompt templates stored on the backend",
	RunE:  runPrompts,
}

func init() {
	rootCmd.AddCommand(promptsCmd)
}

func runPrompts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	list, err := newAPIClient(cfg).ListPrompts(ctx)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println(infoStyle.Render("No prompts stored"))
		return nil
	}

	for _, p := range list {
		fmt.Println(titleStyle.Render(p.Title))
		fmt.Println(p.Template)
	}
	return nil
}
