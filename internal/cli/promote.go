package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	promote := &cobra.Command{
		Use:   "promote [id]",
		Short: "Promote a memory one tier up",
		Long:  "Move a memory from short-term to intermediate, or intermediate to long-term. Promoting to long-term computes the embedding and clears the expiry.",
		Args:  cobra.ExactArgs(1),
		Run:   runPromote,
	}
	promote.Flags().StringP("owner", "o", "", "Owner ID (required)")
	promote.MarkFlagRequired("owner")
	RootCmd.AddCommand(promote)

	access := &cobra.Command{
		Use:   "access [id]",
		Short: "Record an access on a memory",
		Long:  "Increment access_count, stamp last_accessed_at, and slide an intermediate memory's expiry forward.",
		Args:  cobra.ExactArgs(1),
		Run:   runAccess,
	}
	access.Flags().StringP("owner", "o", "", "Owner ID (required)")
	access.MarkFlagRequired("owner")
	RootCmd.AddCommand(access)
}

func runPromote(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.Promote(cmd.Context(), args[0], owner)
	if err != nil {
		exitErr("promote", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}

func runAccess(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.RecordAccess(cmd.Context(), args[0], owner); err != nil {
		exitErr("access", err)
	}
	fmt.Println("ok")
}
