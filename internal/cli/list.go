package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/model"
	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Run:   runList,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().String("tier", "", "Filter by tier: stm, itm, ltm")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Int("offset", 0, "Pagination offset")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	tier, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := s.List(cmd.Context(), store.ListParams{
		OwnerID: owner,
		Tier:    model.Tier(tier),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		exitErr("list", err)
	}

	if len(memories) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
