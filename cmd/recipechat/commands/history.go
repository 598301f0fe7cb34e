package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/recipechat/internal/config"
	"github.com/opencode-ai/recipechat/pkg/types"
)

var (
	historyDelete string
	historyClear  bool
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or remove stored chats",
	Long: `List the stored chats, most recent first.

Examples:
  recipechat history
  recipechat history --delete 01J9Z...
  recipechat history --clear`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDelete, "delete", "", "Delete the chat with this id")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete every chat and the input history")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the history as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Load(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case historyClear:
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "History cleared")
		return nil
	case historyDelete != "":
		if _, ok := store.Get(historyDelete); !ok {
			return fmt.Errorf("chat not found: %s", historyDelete)
		}
		if err := store.Delete(ctx, historyDelete); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted chat %s\n", historyDelete)
		return nil
	}

	snapshot := store.Snapshot()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	chats := make([]types.TranscriptJSON, 0, len(snapshot.Chat))
	for _, t := range snapshot.Chat {
		chats = append(chats, t)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastInteractionTimestamp.After(chats[j].LastInteractionTimestamp)
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLAST ACTIVE\tMESSAGES\tFIRST QUESTION")
	for _, t := range chats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			t.ID,
			t.LastInteractionTimestamp.Local().Format("2006-01-02 15:04"),
			len(t.Interactions),
			firstQuestion(t),
		)
	}
	return tw.Flush()
}

func firstQuestion(t types.TranscriptJSON) string {
	if len(t.Interactions) == 0 {
		return ""
	}
	h := t.Interactions[0].HumanMessage
	text := h.DisplayText
	if text == "" {
		text = h.Text
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	return text
}
