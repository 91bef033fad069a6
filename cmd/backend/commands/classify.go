package commands

import (
	"fmt"
	"strings"

	"github.com/biodoia/nutrillm/internal/agents"
	"github.com/spf13/cobra"
)

// ClassifyCmd classifica una domanda senza contattare alcun backend
var ClassifyCmd = &cobra.Command{
	Use:   "classify [question]",
	Short: "Show which agent would handle a question",
	Example: `  nutrillm classify "Сколько белка нужно после тренировки?"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	router, err := agents.NewManager(agents.Declarations(agents.Deps{}), agents.AgentSimple)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	fmt.Println(router.Classify(query))
	return nil
}
