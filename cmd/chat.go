package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/internal/manager/services"

	"github.com/spf13/cobra"
)

var ErrNoMessage = errors.New("either --message or --history is required")

var (
	chatSiteURL     string
	chatMessage     string
	chatHistoryFile string
	chatTemperature float32
	chatTimeout     time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask a question about an ingested site",
	Long: `Ask a question about an ingested site and print the updated conversation.

Examples:
  ike-wp chat --url "https://www.example.com" --message "What do you sell?"

  # Continue a conversation stored as a JSON array of {role, content}
  ike-wp chat --url "https://www.example.com" --history chat.json --temperature 0.2`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSiteURL, "url", "u", "", "WordPress site URL (required)")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "User message to append to the conversation")
	chatCmd.Flags().StringVar(&chatHistoryFile, "history", "", "JSON file holding the conversation so far")
	chatCmd.Flags().Float32VarP(&chatTemperature, "temperature", "t", 0, "Sampling temperature (model default when unset)")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 2*time.Minute, "Timeout for the request")
	if err := chatCmd.MarkFlagRequired("url"); err != nil {
		return
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	history, err := loadHistory(chatHistoryFile)
	if err != nil {
		return err
	}
	if chatMessage != "" {
		history = append(history, models.ChatMessage{Role: models.RoleUser, Content: chatMessage})
	}
	if len(history) == 0 {
		return ErrNoMessage
	}

	namespace, err := services.SiteNamespace(chatSiteURL)
	if err != nil {
		return err
	}

	var temperature *float32
	if cmd.Flags().Changed("temperature") {
		temperature = &chatTemperature
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), chatTimeout)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	messages, err := a.controller.Generate(ctx, namespace, history, temperature)
	if err != nil {
		return err
	}
	return printJSON(cmd, messages)
}

func loadHistory(path string) ([]models.ChatMessage, error) {
	if path == "" {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var history []models.ChatMessage
	if err := json.Unmarshal(content, &history); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", path, err)
	}
	return history, nil
}
