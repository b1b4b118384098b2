package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/app"
	"github.com/CasualYT31/tiktok-dl/internal/config"
	"github.com/CasualYT31/tiktok-dl/internal/pager"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "tiktok-dl",
	Short: "TikTok video archiver",
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download [INPUT...]",
	Short: "Download videos from links, list files, and user pages",
	Long: `Download videos. Each INPUT may be a video link, a username, or a path to a
file containing more inputs (one per line; saved HTML user pages work too).`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _ := cmd.Flags().GetStringSlice("user")
		split, _ := cmd.Flags().GetInt("split")
		listFile, _ := cmd.Flags().GetString("list")
		noHistory, _ := cmd.Flags().GetBool("no-history")
		ignores, _ := cmd.Flags().GetStringSlice("ignore")
		deleteAfter, _ := cmd.Flags().GetStringSlice("delete-after")

		if len(args) == 0 && len(deleteAfter) == 0 {
			return fmt.Errorf("requires at least one input (argument or --delete-after)")
		}

		opts := app.DownloadOptions{
			Users:       users,
			Split:       split,
			NoHistory:   noHistory,
			IgnoreLinks: ignores,
			DeleteAfter: deleteAfter,
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if listFile != "" {
			count, err := a.List(cmd.Context(), args, listFile, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d link(s) to %s\n", count, listFile)
			return nil
		}

		result, err := a.Download(cmd.Context(), args, opts)
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}

		fmt.Printf("Downloaded %d video(s), %d failed, %d skipped\n",
			len(result.Succeeded), len(result.Failed), len(result.Skipped))
		for _, link := range result.Failed {
			fmt.Printf("FAILED  %s\n", link)
		}
		return nil
	},
}

// resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve INPUT [INPUT...]",
	Short: "Show what the inputs resolve to, without downloading",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _ := cmd.Flags().GetStringSlice("user")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		resolved, err := a.Resolve(cmd.Context(), args, users)
		if err != nil {
			return err
		}

		links := resolved.SortedLinks()
		if len(links) == 0 {
			fmt.Println("No links found.")
			return nil
		}
		lines := make([]string, len(links))
		for i, link := range links {
			lines[i] = link.String()
		}
		pager.New().PrintPages(pager.CreatePages(strings.Join(lines, "\n"), 0))

		fmt.Printf("Resolved %d link(s) from %d user(s)\n",
			len(links), len(resolved.SortedUsers()))
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Download Dir: %s\n", cfg.DownloadDir)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set USERNAME PROPERTY VALUE",
	Short: "Set a user's notbefore date or comment",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		property, err := app.ParseProperty(args[1])
		if err != nil {
			return err
		}
		if err := a.SetProperty(args[0], property, args[2]); err != nil {
			return err
		}

		fmt.Printf("Set %s for %s\n", args[1], args[0])
		return nil
	},
}

var configIgnoreCmd = &cobra.Command{
	Use:   "ignore LINK",
	Short: "Toggle a link in its owner's ignore list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		added, err := a.ToggleIgnore(args[0])
		if err != nil {
			return err
		}

		if added {
			fmt.Println("Link is now ignored.")
		} else {
			fmt.Println("Link is no longer ignored.")
		}
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete USERNAME",
	Short: "Delete a user's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteUser(args[0]); err != nil {
			return err
		}

		fmt.Printf("Deleted configuration for %s\n", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list [FILTER]",
	Short: "List configured users, optionally matching a regular expression",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}

		users, err := a.ListUsers(filter)
		if err != nil {
			return err
		}

		if len(users) == 0 {
			fmt.Println("No users configured.")
			return nil
		}

		lines := make([]string, len(users))
		for i, user := range users {
			lines[i] = user.String()
		}
		pager.New().PrintPages(pager.CreatePages(strings.Join(lines, "\n"), 0))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show USERNAME [USERNAME...]",
	Short: "View the configuration of one or more users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		blocks := make([]string, 0, len(args))
		for _, user := range args {
			block, err := a.ShowUser(user)
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
		}

		pager.New().PrintPages(pager.CreatePages(strings.Join(blocks, "\n\n"), 0))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View download run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No download runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("%s  %s  %s  %s  ok:%d fail:%d skip:%d\n",
				run.ID[:8],
				run.Operation,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				duration,
				run.Succeeded,
				run.Failed,
				run.Skipped,
			)
		}
		return nil
	},
}

func init() {
	// download flags
	downloadCmd.Flags().StringSliceP("user", "u", nil, "Only download links owned by these users")
	downloadCmd.Flags().IntP("split", "s", 1, "Number of parallel download workers")
	downloadCmd.Flags().StringP("list", "l", "", "Write the resolved links to this file instead of downloading")
	downloadCmd.Flags().Bool("no-history", false, "Do not record this run")
	downloadCmd.Flags().StringSlice("ignore", nil, "Exclude a link from this run without changing any configuration")
	downloadCmd.Flags().StringSliceP("delete-after", "d", nil, "Extra input whose file is deleted after the run")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configIgnoreCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)

	resolveCmd.Flags().StringSliceP("user", "u", nil, "Only resolve links owned by these users")

	// root commands
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
