package commands

import (
	"errors"
	"fmt"

	"github.com/biodoia/nutrillm/internal/chat"
	"github.com/biodoia/nutrillm/internal/memory"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/spf13/cobra"
)

// MemoryCmd gestisce memoria e profili di un utente su un gateway in esecuzione
var MemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit user memory and profiles",
	Long: `Read the conversation history of a user, clear it, or save the profile
used for calorie estimates. All subcommands talk to a running gateway.`,
}

var memoryHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the last saved exchanges",
	Example: `  nutrillm memory history --chat-id 42 --user-id 42
  nutrillm memory history --chat-id 42 --user-id 42 -n 10`,
	RunE: runMemoryHistory,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved exchanges of a user",
	RunE:  runMemoryClear,
}

var memoryProfileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Save the profile of a user",
	Example: `  nutrillm memory profile --chat-id 42 --user-id 42 --gender м --age 30 --weight 70 --height 175`,
	RunE:    runMemoryProfile,
}

var (
	memoryChatID int64
	memoryUserID int64
	memoryTurns  int
	memoryJSON   bool
	profileInput models.Profile
)

func init() {
	for _, c := range []*cobra.Command{memoryHistoryCmd, memoryClearCmd, memoryProfileCmd} {
		c.Flags().Int64Var(&memoryChatID, "chat-id", 0, "Chat ID")
		c.Flags().Int64Var(&memoryUserID, "user-id", 0, "User ID")
	}

	memoryHistoryCmd.Flags().IntVarP(&memoryTurns, "number", "n", memory.DefaultHistoryTurns,
		fmt.Sprintf("Number of exchanges (max %d)", memory.MaxHistoryTurns))
	memoryHistoryCmd.Flags().BoolVar(&memoryJSON, "json", false, "Output in JSON format")

	memoryProfileCmd.Flags().StringVar(&profileInput.Gender, "gender", "", "Gender (м or ж)")
	memoryProfileCmd.Flags().IntVar(&profileInput.Age, "age", 0, "Age in years")
	memoryProfileCmd.Flags().Float64Var(&profileInput.Weight, "weight", 0, "Weight in kg")
	memoryProfileCmd.Flags().Float64Var(&profileInput.Height, "height", 0, "Height in cm")
	memoryProfileCmd.Flags().StringVar(&profileInput.Goal, "goal", "", "Goal")
	memoryProfileCmd.Flags().StringVar(&profileInput.Diet, "diet", "", "Diet")

	MemoryCmd.AddCommand(memoryHistoryCmd)
	MemoryCmd.AddCommand(memoryClearCmd)
	MemoryCmd.AddCommand(memoryProfileCmd)
}

func requireOwner() error {
	if memoryChatID == 0 && memoryUserID == 0 {
		return errors.New("--chat-id or --user-id is required")
	}
	return nil
}

func runMemoryHistory(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}
	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	turns, err := client.History(cmd.Context(), memoryChatID, memoryUserID, memoryTurns)
	if err != nil {
		return err
	}

	if memoryJSON {
		return printJSON(turns)
	}
	fmt.Println(chat.FormatHistory(turns))
	return nil
}

func runMemoryClear(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}
	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	if err := client.ClearMemory(cmd.Context(), memoryChatID, memoryUserID); err != nil {
		return err
	}
	fmt.Println("✓ Memory cleared")
	return nil
}

func runMemoryProfile(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}

	profile := profileInput
	profile.ChatID = memoryChatID
	profile.UserID = memoryUserID
	if err := profile.Validate(); err != nil {
		return err
	}

	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	saved, err := client.SaveProfile(cmd.Context(), profile)
	if err != nil {
		return err
	}
	fmt.Println("✓ Profile saved")
	if facts := saved.Facts(); facts != "" {
		fmt.Println(facts)
	}
	return nil
}
