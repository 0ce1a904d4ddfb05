package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Retrieve a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().Bool("touch", false, "Record the access (bumps access_count, slides ITM expiry)")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	touch, _ := cmd.Flags().GetBool("touch")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.Get(cmd.Context(), store.GetParams{ID: args[0], OwnerID: owner})
	if err != nil {
		exitErr("get", err)
	}
	if touch {
		if err := s.RecordAccess(cmd.Context(), mem.ID, owner); err != nil {
			exitErr("record access", err)
		}
		mem, err = s.Get(cmd.Context(), store.GetParams{ID: args[0], OwnerID: owner})
		if err != nil {
			exitErr("get", err)
		}
	}

	b, _ := json.MarshalIndent(mem, "", "  ")
	fmt.Println(string(b))
}
