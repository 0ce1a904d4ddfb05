package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/distill"
	"github.com/evanwhit/mnemo/internal/embedding"
)

func init() {
	run := &cobra.Command{
		Use:   "distill",
		Short: "Run one distillation pass",
		Long:  "Scan reflections since the last completed run, promote qualifying intermediate memories to long-term, synthesize distilled knowledge from reflection groups, and expire or archive lapsed memories.",
		Run:   runDistill,
	}
	run.Flags().String("since", "", "Override window start (RFC3339); default is the last checkpoint")
	run.Flags().String("until", "", "Override window end (RFC3339); default is now")
	RootCmd.AddCommand(run)

	runs := &cobra.Command{
		Use:   "runs",
		Short: "Show recent distillation runs",
		Run:   runRuns,
	}
	runs.Flags().IntP("limit", "l", 20, "Max runs")
	RootCmd.AddCommand(runs)

	knowledge := &cobra.Command{
		Use:   "knowledge",
		Short: "List distilled knowledge",
		Run:   runKnowledge,
	}
	knowledge.Flags().StringP("owner", "o", "", "Owner ID (required)")
	knowledge.Flags().StringP("topic", "t", "", "Filter by topic")
	knowledge.MarkFlagRequired("owner")
	RootCmd.AddCommand(knowledge)
}

func runDistill(cmd *cobra.Command, args []string) {
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")

	s, cfg, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	emb, err := embedding.NewFromConfig(cfg)
	if err != nil {
		exitErr("embedder", err)
	}
	eng := distill.New(s, cfg, emb, logger())

	w, err := eng.NextWindow(cmd.Context())
	if err != nil {
		exitErr("checkpoint", err)
	}
	if since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			exitErr("parse --since", err)
		}
		w.Start = t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339Nano, until)
		if err != nil {
			exitErr("parse --until", err)
		}
		w.End = t
	}

	run, err := eng.Run(cmd.Context(), w)
	if run == nil && err != nil {
		exitErr("distill", err)
	}

	b, _ := json.MarshalIndent(run, "", "  ")
	fmt.Println(string(b))
}

func runRuns(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context(), limit)
	if err != nil {
		exitErr("runs", err)
	}

	if len(runs) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}

func runKnowledge(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	topic, _ := cmd.Flags().GetString("topic")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	items, err := s.ListKnowledge(cmd.Context(), owner, topic)
	if err != nil {
		exitErr("knowledge", err)
	}

	if len(items) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(items, "", "  ")
	fmt.Println(string(b))
}
