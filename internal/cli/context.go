package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Assemble the working-context view",
		Long:  "Build the bounded three-tier view a chat caller feeds into its prompt: recent session short-term entries, most-accessed intermediate entries, highest-confidence long-term entries.",
		Run:   runContext,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().StringP("session", "s", "", "Session ID for the short-term slice")
	cmd.Flags().IntP("limit", "l", 5, "Max entries per tier")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	session, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.Context(cmd.Context(), store.ContextParams{
		OwnerID:      owner,
		SessionID:    session,
		LimitPerTier: limit,
	})
	if err != nil {
		exitErr("context", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
