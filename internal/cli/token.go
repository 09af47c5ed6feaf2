package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/autospot-crawl/internal/ui"
)

var tokenFull bool

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Acquire the API bearer token and print it",
	Long: `Token loads the site root page and extracts the API bearer token the
listing pages require. Use it to check that authentication still works.`,
	Example: `  # Print the first characters of the token
  autospot token

  # Print the full token
  autospot token --full`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().BoolVar(&tokenFull, "full", false, "Print the full token instead of a prefix")
}

func runToken(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	token, err := a.Tokens.Token(cmd.Context(), true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tokenFull {
		fmt.Fprintln(out, token)
		return nil
	}

	state := a.Tokens.State()
	ui.Statusf(out, true, "Token %s (%d chars) acquired at %s, valid until %s",
		ui.Bold(maskToken(token)), len(token),
		state.AcquiredAt.Format(time.RFC3339),
		state.AcquiredAt.Add(a.Config.TokenTTL).Format(time.RFC3339))
	return nil
}

// maskToken keeps the first 8 characters
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
