package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsSecret bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure fusion, reasoning, coordinator, back-end and storage
settings. Settings are stored in ~/.sizhen/config.toml (SIZHEN_HOME overrides
the directory) and can be overridden per process with SIZHEN_<GROUP>__<KEY>
environment variables, e.g. SIZHEN_FUSION__ALGORITHM=ensemble.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one setting",
	Long: `Set one setting by its dot-notation key.

Examples:
  sizhen settings set fusion.algorithm ensemble
  sizhen settings set coordinator.look.timeout 15s
  sizhen settings set reasoning.methods eight_principles,zang_fu
  sizhen settings set backends.api_key --secret`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

func init() {
	settingsSetCmd.Flags().BoolVar(&settingsSecret, "secret", false, "read the value from the terminal without echo")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	out := cmd.OutOrStdout()
	t := themeFor(out)
	fmt.Fprintln(out, t.Title.Render("Current Settings"))

	group := ""
	for _, key := range settingsService.Keys() {
		prefix, _, _ := strings.Cut(key, ".")
		if prefix != group {
			group = prefix
			fmt.Fprintln(out)
			fmt.Fprintln(out, t.Label.Render("["+group+"]"))
		}

		value := settingsService.Display(settings, key)
		switch {
		case value == "":
			value = t.Muted.Render("(not set)")
		case settingsService.IsSecret(key):
			value = maskAPIKey(value)
		}
		fmt.Fprintf(out, "  %s = %s\n", key, value)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case settingsSecret:
		fmt.Fprintf(cmd.OutOrStdout(), "Enter value for %s: ", key)
		value = readPassword()
		fmt.Fprintln(cmd.OutOrStdout())
	default:
		return fmt.Errorf("a value is required for %s (or use --secret)", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if settingsService.IsSecret(key) {
		shown = maskAPIKey(value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, shown)
	return nil
}

func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
