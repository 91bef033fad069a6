package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/internal/chat"
	"github.com/spf13/cobra"
)

// AskCmd interroga un gateway in esecuzione
var AskCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a running gateway a question",
	Long: `Send a question to a running gateway and print the answer.

While waiting, a typing indicator is printed on stderr.`,
	Example: `  # Let the router pick the agent
  nutrillm ask "Сколько калорий мне нужно, мужчина, 30 лет, 70кг, 170см"

  # Force the planning agent and stream the answer
  nutrillm ask --agent planning --stream "Составь план тренировок"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askAgent   string
	askContext string
	askStream  bool
	askChatID  int64
	askUserID  int64
	askTimeout time.Duration
)

func init() {
	AskCmd.Flags().StringVar(&askAgent, "agent", "auto", "Agent type (auto, nutrition, planning, simple)")
	AskCmd.Flags().StringVar(&askContext, "context", "", "Extra context prepended to the question")
	AskCmd.Flags().BoolVar(&askStream, "stream", false, "Stream the answer as it arrives")
	AskCmd.Flags().Int64Var(&askChatID, "chat-id", 0, "Chat ID for conversation memory")
	AskCmd.Flags().Int64Var(&askUserID, "user-id", 0, "User ID for conversation memory")
	AskCmd.Flags().DurationVar(&askTimeout, "timeout", 5*time.Minute, "Request timeout")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger("warn", false, true)

	client := chat.NewClient(gatewayURL(cmd, cfg), cfg.Auth.APIKey, askTimeout)
	req := chat.Request{
		Prompt:    strings.Join(args, " "),
		AgentType: askAgent,
		Context:   askContext,
		ChatID:    askChatID,
		UserID:    askUserID,
	}

	fmt.Fprintln(os.Stderr, chat.ThinkingPhrase())

	ping := func(ctx context.Context) {
		fmt.Fprint(os.Stderr, ".")
	}

	reply, err := chat.RunWithTyping(cmd.Context(), 2*time.Second, ping, func(ctx context.Context) (chat.Reply, error) {
		if askStream {
			return client.AskStream(ctx, req, func(chunk string) {
				fmt.Print(chunk)
			})
		}
		return client.Ask(ctx, req)
	})
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return fmt.Errorf("❌ %s (%w)", chat.ErrorPhrase(), err)
	}

	if askStream && reply.OK {
		fmt.Println()
	} else {
		fmt.Println(reply.Text)
	}
	if reply.AgentType != "" {
		fmt.Fprintf(os.Stderr, "agent: %s\n", reply.AgentType)
	}
	return nil
}
