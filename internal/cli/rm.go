package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory (soft)",
		Long:  "Soft-delete a memory. The row stays for the grace window and is removed by purge.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}
	rm.Flags().StringP("owner", "o", "", "Owner ID (required)")
	rm.MarkFlagRequired("owner")
	RootCmd.AddCommand(rm)

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete soft-deleted rows past the grace window",
		Run:   runPurge,
	}
	purge.Flags().Duration("grace", 30*24*time.Hour, "Keep soft-deleted rows younger than this")
	RootCmd.AddCommand(purge)
}

func runRm(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Delete(cmd.Context(), args[0], owner); err != nil {
		exitErr("rm", err)
	}
	fmt.Println("deleted")
}

func runPurge(cmd *cobra.Command, args []string) {
	grace, _ := cmd.Flags().GetDuration("grace")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.Purge(cmd.Context(), grace)
	if err != nil {
		exitErr("purge", err)
	}
	fmt.Printf("purged %d rows\n", n)
}
