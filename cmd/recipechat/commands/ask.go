package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/recipechat/internal/event"
	"github.com/opencode-ai/recipechat/internal/recipe"
	"github.com/opencode-ai/recipechat/pkg/types"
)

var (
	askRecipe   string
	askContinue bool
	askRender   bool
	askWidth    int
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask one question and print the answer",
	Long: `Run one recipe in a fresh chat and print the assistant's answer.

Examples:
  recipechat ask "Where is the HTTP server started?"
  recipechat ask "/search listenAndServe"
  recipechat ask --continue "And how is it stopped?"
  recipechat ask --recipe next-questions`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askRecipe, "recipe", "r", string(recipe.ChatQuestion), "Recipe to run")
	askCmd.Flags().BoolVarP(&askContinue, "continue", "c", false, "Continue the most recent chat")
	askCmd.Flags().BoolVar(&askRender, "render", true, "Render the answer as markdown")
	askCmd.Flags().IntVar(&askWidth, "width", 100, "Word wrap width of rendered answers")
}

// answerWaiter follows the bus until the turn started by the command has
// finished and its chat has been saved.
type answerWaiter struct {
	mu       sync.Mutex
	started  bool
	finished bool
	messages []types.ChatMessage
	errors   []string
	done     chan struct{}
	once     sync.Once
}

func (w *answerWaiter) handle(e event.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch data := e.Data.(type) {
	case event.TranscriptUpdatedData:
		w.started = true
		if !data.InProgress {
			w.finished = true
			w.messages = data.Messages
		}
	case event.HistoryUpdatedData:
		if w.finished {
			w.once.Do(func() { close(w.done) })
		}
	case event.SessionErrorData:
		w.errors = append(w.errors, data.Message)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	id := recipe.ID(askRecipe)
	if text == "" && id == recipe.ChatQuestion {
		return errors.New("a question is required")
	}

	dir, err := GetWorkDir(workDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, dir)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, ok := a.recipes.Get(id); !ok {
		return fmt.Errorf("unknown recipe %q", id)
	}
	a.authenticate(ctx)

	o := a.newOrchestrator(event.NewBusObserver(a.bus, "cli"))
	defer o.Close()
	if err := o.Init(ctx); err != nil {
		return err
	}
	if !askContinue {
		if err := o.ClearAndRestartSession(ctx); err != nil {
			return err
		}
	}

	w := &answerWaiter{done: make(chan struct{})}
	for _, t := range []event.EventType{event.TranscriptUpdated, event.HistoryUpdated, event.SessionError} {
		unsub := a.bus.Subscribe(t, w.handle)
		defer unsub()
	}

	if id == recipe.ChatQuestion {
		err = o.SubmitHumanMessage(ctx, text)
	} else {
		err = o.ExecuteRecipe(ctx, id, text)
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return fmt.Errorf("recipe %s had nothing to do", id)
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		o.AbortCompletion()
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, msg := range w.errors {
		fmt.Fprintln(os.Stderr, "error:", msg)
	}
	if len(w.messages) == 0 {
		return errors.New("no answer")
	}
	last := w.messages[len(w.messages)-1]
	if last.Error != "" {
		return errors.New(last.Error)
	}
	return printAnswer(cmd, answerText(last))
}

// answerText is the reply as the chat shows it, with attributions and
// code-block fixes applied.
func answerText(msg types.ChatMessage) string {
	if msg.DisplayText != "" {
		return msg.DisplayText
	}
	return msg.Text
}

func printAnswer(cmd *cobra.Command, answer string) error {
	out := cmd.OutOrStdout()
	if !askRender {
		_, err := fmt.Fprintln(out, answer)
		return err
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(askWidth),
	)
	if err != nil {
		return err
	}
	rendered, err := renderer.Render(answer)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
