package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/model"
	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search long-term memories by similarity",
		Long:  "Embed the query and rank the owner's long-term memories by cosine similarity.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().String("tier", "", "Filter by tier")
	cmd.Flags().Float64P("min-confidence", "c", 0, "Minimum confidence score")
	cmd.Flags().IntP("limit", "l", 10, "Max results")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	tier, _ := cmd.Flags().GetString("tier")
	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p := store.SearchParams{
		OwnerID: owner,
		Query:   query,
		Tier:    model.Tier(tier),
		Limit:   limit,
	}
	if cmd.Flags().Changed("min-confidence") {
		p.MinConfidence = &minConf
	}

	results, err := s.Search(cmd.Context(), p)
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
