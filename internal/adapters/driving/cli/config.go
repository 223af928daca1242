package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/stash/internal/adapters/driven/ai"
	"github.com/custodia-labs/stash/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change configuration",
	Long: `View and change values in config.toml.

Every key can also be set through the environment: embedding.api_key is read
from STASH_EMBEDDING_API_KEY (or STASH_OPENAI_API_KEY), search.top_k from
STASH_SEARCH_TOP_K, and so on. Environment values win over the file.`,
	Annotations: map[string]string{annotationSettingsOnly: "true"},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every setting with its resolved value",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Change a setting",
	Long: `Change a setting in config.toml. When setting embedding.api_key without a
value the key is read from the terminal without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping the embedding backend",
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	values := settingsService.Values(settings)

	if jsonOutput {
		return printJSON(cmd, values)
	}
	for _, key := range settingsService.Keys() {
		cmd.Printf("%-30s %s\n", key, values[key])
	}
	if err := settingsService.Validate(settings); err != nil {
		cmd.Println()
		cmd.Println(defaultTheme.errorStyle().Render("Warning: " + err.Error()))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	value, ok := settingsService.Values(settings)[args[0]]
	if !ok {
		return fmt.Errorf("unknown config key %q", args[0])
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		v, err := promptValue(cmd, key)
		if err != nil {
			return err
		}
		value = v
	}

	if err := settingsService.Set(key, value); err != nil {
		return err
	}
	if key == services.KeyEmbeddingAPIKey {
		cmd.Printf("%s updated\n", key)
	} else {
		cmd.Printf("%s = %s\n", key, value)
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	if err := settingsService.Validate(settings); err != nil {
		return err
	}

	svc, err := ai.CreateAndValidateEmbeddingService(cmd.Context(), &settings.Embedding)
	if err != nil {
		return err
	}
	defer svc.Close()

	cmd.Printf("Embeddings: %s %s (%d dimensions)\n", svc.Provider(), svc.ModelName(), svc.Dimensions())
	cmd.Printf("Storage:    %s %s\n", settings.Storage.Driver, settings.Storage.DataDir)
	cmd.Println("Configuration OK")
	return nil
}

// promptValue asks for a value on the terminal, hiding secrets.
func promptValue(cmd *cobra.Command, key string) (string, error) {
	cmd.Printf("%s: ", key)

	fd := int(os.Stdin.Fd())
	if key == services.KeyEmbeddingAPIKey && term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", key, err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return strings.TrimSpace(line), nil
}
