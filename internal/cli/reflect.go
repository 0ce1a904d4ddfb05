package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reflect [memory-id]",
		Short: "Record a reflection on a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runReflect,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().StringP("assessment", "a", "", "Self-assessment text (required)")
	cmd.Flags().Float64("alignment", 0, "Alignment score in [0, 1]")
	cmd.Flags().StringP("improvement", "i", "", "Improvement notes")

	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("assessment")

	RootCmd.AddCommand(cmd)

	list := &cobra.Command{
		Use:   "reflections [memory-id]",
		Short: "List reflections on a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runReflections,
	}
	list.Flags().StringP("owner", "o", "", "Owner ID (required)")
	list.MarkFlagRequired("owner")
	RootCmd.AddCommand(list)
}

func runReflect(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	assessment, _ := cmd.Flags().GetString("assessment")
	alignment, _ := cmd.Flags().GetFloat64("alignment")
	improvement, _ := cmd.Flags().GetString("improvement")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	r, err := s.CreateReflection(cmd.Context(), store.ReflectionParams{
		MemoryID:       args[0],
		OwnerID:        owner,
		Assessment:     assessment,
		AlignmentScore: alignment,
		Improvement:    improvement,
	})
	if err != nil {
		exitErr("reflect", err)
	}

	b, _ := json.Marshal(r)
	fmt.Println(string(b))
}

func runReflections(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	refs, err := s.ListReflections(cmd.Context(), args[0], owner)
	if err != nil {
		exitErr("list reflections", err)
	}

	b, _ := json.MarshalIndent(refs, "", "  ")
	fmt.Println(string(b))
}
