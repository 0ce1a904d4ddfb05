package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/model"
	"github.com/evanwhit/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [input text]",
		Short: "Store a memory",
		Long:  "Store a memory. Input text can be a positional arg or piped via stdin.",
		Run:   runStore,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().StringP("session", "s", "", "Session ID")
	cmd.Flags().String("kind", "conversation", "Kind: conversation, lesson, task, error, reflection, achievement")
	cmd.Flags().String("output", "", "Output text (what was produced)")
	cmd.Flags().String("outcome", "neutral", "Outcome: success, failure, neutral")
	cmd.Flags().Float64P("weight", "w", 0, "Emotional weight in [-1, 1]")
	cmd.Flags().Float64P("confidence", "c", 0, "Confidence score in [0, 1]")
	cmd.Flags().Bool("invalid", false, "Mark the memory as failed validation")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("tier", "stm", "Initial tier: stm, itm, ltm")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	session, _ := cmd.Flags().GetString("session")
	kind, _ := cmd.Flags().GetString("kind")
	output, _ := cmd.Flags().GetString("output")
	outcome, _ := cmd.Flags().GetString("outcome")
	weight, _ := cmd.Flags().GetFloat64("weight")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	invalid, _ := cmd.Flags().GetBool("invalid")
	tagsStr, _ := cmd.Flags().GetString("tags")
	tier, _ := cmd.Flags().GetString("tier")

	// Input: positional arg first, then check stdin.
	var input string
	if len(args) > 0 {
		input = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			input = string(b)
		}
	}
	if strings.TrimSpace(input) == "" {
		exitErr("store", fmt.Errorf("input text is required (positional arg or stdin)"))
	}

	valid := !invalid
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.Store(cmd.Context(), store.StoreParams{
		OwnerID:         owner,
		SessionID:       session,
		Kind:            kind,
		InputText:       strings.TrimSpace(input),
		OutputText:      output,
		Outcome:         outcome,
		EmotionalWeight: weight,
		ConfidenceScore: confidence,
		IsValid:         &valid,
		Tags:            splitTags(tagsStr),
		Tier:            model.Tier(tier),
	})
	if err != nil {
		exitErr("store", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
