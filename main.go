package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/zimkit/internal/build"
	"github.com/ossyrian/zimkit/internal/config"
	"github.com/ossyrian/zimkit/internal/extract"
	"github.com/ossyrian/zimkit/internal/logging"
	"github.com/ossyrian/zimkit/internal/namespace"
	"github.com/ossyrian/zimkit/internal/reader"
	"github.com/ossyrian/zimkit/internal/zim"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "zimkit",
	Short: "Inspect, extract from, and create ZIM-style archives",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = &config.Config{}
		if err := viper.Unmarshal(cfg); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := logging.Setup(cfg.LogLevel, cfg.LogOutputDir); err != nil {
			return fmt.Errorf("could not set up logging: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stdout and file)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_output_dir", rootCmd.PersistentFlags().Lookup("log-output-dir"))

	rootCmd.AddCommand(namespacesCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(textCmd())
	rootCmd.AddCommand(titlesCmd())
	rootCmd.AddCommand(pathsCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(createCmd())
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "zimkit"))
		}
		viper.AddConfigPath("/etc/zimkit")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("ZIMKIT")
	viper.AutomaticEnv()

	viper.SetDefault("language", "eng")
	viper.SetDefault("indexing", true)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// openArchive opens the archive named by the command's --input flag.
func openArchive(cmd *cobra.Command) (*zim.Archive, error) {
	input, _ := cmd.Flags().GetString("input")
	a, err := zim.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return a, nil
}

// namespaceCode resolves a namespace selection down to a single code
// prefix for the path-prefix operations: "" for ALL, the concrete code
// otherwise. The UNKNOWN pseudo-selector has no single prefix.
func namespaceCode(a *zim.Archive, input string) (string, error) {
	view := namespace.Discover(a.Paths())
	sel, err := namespace.Resolve(view, input)
	if err != nil {
		return "", err
	}
	if sel == namespace.Unknown() {
		return "", errors.New("UNKNOWN is only valid for extract; choose a concrete namespace code or ALL")
	}
	return sel.Code(), nil
}

func namespacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List the namespaces present in an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			view := namespace.Discover(a.Paths())
			codes := lo.Keys(view)
			sort.Strings(codes)
			for _, code := range codes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, view[code])
			}
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract entries matching a namespace and MIME type prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nsInput, _ := cmd.Flags().GetString("namespace")
			mimePrefix, _ := cmd.Flags().GetString("mimetype")
			outputDir, _ := cmd.Flags().GetString("output")

			view := namespace.Discover(a.Paths())
			sel, err := namespace.Resolve(view, nsInput)
			if err != nil {
				return err
			}

			n, err := extract.Extract(a, outputDir, sel, mimePrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d files of type %s to %s\n", n, mimePrefix, outputDir)
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.Flags().StringP("output", "o", "", "directory to extract into (required)")
	cmd.Flags().String("namespace", namespace.SelectorAll, "namespace code, ALL, or UNKNOWN")
	cmd.Flags().String("mimetype", "", "MIME type prefix to match, e.g. image/ (required)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("mimetype")
	return cmd
}

func textCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Extract the stripped body text of a namespace to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nsInput, _ := cmd.Flags().GetString("namespace")
			output, _ := cmd.Flags().GetString("output")

			code, err := namespaceCode(a, nsInput)
			if err != nil {
				return err
			}
			if err := reader.SaveText(a, code, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Text extracted to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.Flags().StringP("output", "o", "", "output text file (required)")
	cmd.Flags().String("namespace", "A", "namespace code or ALL")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func titlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "titles",
		Short: "Write a title/URL report for a namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nsInput, _ := cmd.Flags().GetString("namespace")
			output, _ := cmd.Flags().GetString("output")

			code, err := namespaceCode(a, nsInput)
			if err != nil {
				return err
			}
			if err := reader.SaveTitles(a, code, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Titles extracted to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.Flags().StringP("output", "o", "", "output text file (required)")
	cmd.Flags().String("namespace", namespace.SelectorAll, "namespace code or ALL")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func pathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "List entry paths, optionally under one namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nsInput, _ := cmd.Flags().GetString("namespace")
			code, err := namespaceCode(a, nsInput)
			if err != nil {
				return err
			}
			for _, p := range reader.ListPaths(a, code) {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.Flags().String("namespace", namespace.SelectorAll, "namespace code or ALL")
	cmd.MarkFlagRequired("input")
	return cmd
}

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Save selected articles, by path, as a stripped-text report",
		Long: "Reads one archive path per line from --urls-file (or stdin) and writes " +
			"the matching articles' cleaned text. Paths not present in the archive are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			output, _ := cmd.Flags().GetString("output")
			urlsFile, _ := cmd.Flags().GetString("urls-file")

			urls, err := readURLList(cmd, urlsFile)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no article paths supplied")
			}

			if err := reader.SaveArticles(a, urls, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Articles saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.Flags().StringP("output", "o", "", "output text file (required)")
	cmd.Flags().String("urls-file", "", "file with one archive path per line (defaults to stdin)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

// readURLList loads one path per line, blank lines skipped, order and
// duplicates preserved.
func readURLList(cmd *cobra.Command, urlsFile string) ([]string, error) {
	var data []byte
	var err error
	if urlsFile != "" {
		data, err = os.ReadFile(urlsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read URL list: %w", err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read URL list from stdin: %w", err)
		}
	}

	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "List front articles whose title starts with a prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.HasTitleIndex() {
				return fmt.Errorf("archive has no title index")
			}
			prefix, _ := cmd.Flags().GetString("prefix")
			for _, e := range a.Suggest(prefix) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Title, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "path to the archive to read (required)")
	cmd.Flags().String("prefix", "", "title prefix to match")
	cmd.MarkFlagRequired("input")
	return cmd
}

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a new archive from a directory tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			mainPath, _ := cmd.Flags().GetString("main")
			inputDir, _ := cmd.Flags().GetString("input-dir")

			opts := build.Options{Language: cfg.Language, Indexing: cfg.Indexing}
			slog.Info("creating archive", "output", output, "input_dir", inputDir)

			if err := build.BuildFromDirectory(output, mainPath, inputDir, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archive created successfully at %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "path of the archive to create (required)")
	cmd.Flags().String("main", "", "archive path of the landing entry (required)")
	cmd.Flags().String("input-dir", "", "directory tree to package (required)")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("main")
	cmd.MarkFlagRequired("input-dir")
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
