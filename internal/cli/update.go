package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a memory's mutable fields",
		Long:  "Patch tags, confidence, emotional weight, outcome or validity. Tier changes go through promote, never update.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags (replaces the set)")
	cmd.Flags().Float64P("confidence", "c", 0, "Confidence score in [0, 1]")
	cmd.Flags().Float64P("weight", "w", 0, "Emotional weight in [-1, 1]")
	cmd.Flags().String("outcome", "", "Outcome: success, failure, neutral")
	cmd.Flags().Bool("valid", false, "Set validity")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	var patch store.UpdatePatch
	if cmd.Flags().Changed("tags") {
		tagsStr, _ := cmd.Flags().GetString("tags")
		tags := splitTags(tagsStr)
		patch.Tags = &tags
	}
	if cmd.Flags().Changed("confidence") {
		c, _ := cmd.Flags().GetFloat64("confidence")
		patch.ConfidenceScore = &c
	}
	if cmd.Flags().Changed("weight") {
		w, _ := cmd.Flags().GetFloat64("weight")
		patch.EmotionalWeight = &w
	}
	if cmd.Flags().Changed("outcome") {
		o, _ := cmd.Flags().GetString("outcome")
		patch.Outcome = &o
	}
	if cmd.Flags().Changed("valid") {
		v, _ := cmd.Flags().GetBool("valid")
		patch.IsValid = &v
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.Update(cmd.Context(), args[0], owner, patch)
	if err != nil {
		exitErr("update", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
