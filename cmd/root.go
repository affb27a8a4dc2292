// Package cmd wires the kqlrun command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/oakwood-commons/kqlrun/internal/engine"
	"github.com/oakwood-commons/kqlrun/internal/runner"
	"github.com/oakwood-commons/kqlrun/pkg/logger"
	"github.com/oakwood-commons/kqlrun/pkg/settings"
)

var (
	folder           string
	workspaceID      string
	configPath       string
	schemaPath       string
	logLevel         string
	outputDir        string
	parallel         int
	noColor          bool
	failOnQueryError bool
)

var rootCmd = &cobra.Command{
	Use:   settings.CliBinaryName,
	Short: "Run folders of KQL query files against an Azure Monitor workspace",
	Long: `kqlrun executes every KQL query file in a folder against a Log Analytics
workspace and renders the results in the configured formats: json, yaml,
table, or tsv, colorized or plain, to the console or to files.

A ` + "`.kql-config.yaml`" + ` in the query folder (or the working directory)
selects which files run, projects results with JMESPath expressions, and
routes each query to one or more destinations.`,
	Example: "\n  kqlrun -f ./queries -w 00000000-0000-0000-0000-000000000000\n  kqlrun -f ./queries -w $WORKSPACE_ID -c ./ci/.kql-config.yaml --output-dir ./results\n  kqlrun -f ./queries -w $WORKSPACE_ID --parallel 4 --fail-on-query-error\n",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&folder, "folder", "f", "", "folder containing .kql query files (required)")
	flags.StringVarP(&workspaceID, "workspace-id", "w", "", "Log Analytics workspace ID (required)")
	flags.StringVarP(&configPath, "config", "c", "", "path to the run configuration file")
	flags.StringVarP(&schemaPath, "schema", "s", "", "path to a JSON schema overriding the embedded one")
	flags.StringVarP(&logLevel, "log-level", "l", "error", "minimum log level: debug|info|warn|error")
	flags.StringVar(&outputDir, "output-dir", ".", "base directory for relative file destinations")
	flags.IntVar(&parallel, "parallel", 1, "number of queries to execute concurrently")
	flags.BoolVar(&noColor, "no-color", false, "disable ANSI color on console output")
	flags.BoolVar(&failOnQueryError, "fail-on-query-error", false, "exit non-zero when any query fails")

	_ = rootCmd.MarkFlagRequired("folder")
	_ = rootCmd.MarkFlagRequired("workspace-id")

	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(schemaCmd)
}

// Execute runs the CLI. Errors are returned to main, which owns the exit
// code and the final logger flush.
func Execute() error {
	return rootCmd.Execute()
}

func runRoot(cmd *cobra.Command, _ []string) error {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}

	lgr := logger.Get(level)
	lgr = logger.WithValues(lgr, "command", settings.CliBinaryName)
	ctx := logger.WithLogger(context.Background(), lgr)

	params := settings.NewCliParams()
	params.MinLogLevel = level
	params.OutputDir = outputDir
	params.NoColor = noColor
	params.FailOnQueryError = failOnQueryError
	params.Parallel = parallel
	ctx = settings.IntoContext(ctx, params)

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		lgr.V(1).Info("flag", "name", f.Name, "value", f.Value.String(), "changed", f.Changed)
	})

	colorize := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
	if !colorize {
		color.NoColor = true
	}

	backend, err := runner.NewAzureBackend()
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}

	summary, err := engine.New(backend).Run(ctx, engine.Options{
		Folder:      folder,
		WorkspaceID: workspaceID,
		ConfigPath:  configPath,
		SchemaPath:  schemaPath,
		Colorize:    colorize,
		Stdout:      cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	queries, outputs := summary.Counts()
	queryFailures := summary.QueryFailures()
	outputFailures := summary.OutputFailures()
	lgr.Info("execution completed",
		"queries", queries,
		"outputs", outputs,
		"query_failures", len(queryFailures),
		"output_failures", len(outputFailures),
	)

	if failPolicy(cmd, summary) && len(queryFailures)+len(outputFailures) > 0 {
		return fmt.Errorf("%d of %d queries failed, %d of %d outputs failed",
			len(queryFailures), queries, len(outputFailures), outputs)
	}
	return nil
}

// failPolicy resolves the exit-code policy for per-query failures: an
// explicitly set flag wins, then the configuration, then the lenient
// default.
func failPolicy(cmd *cobra.Command, summary *engine.Summary) bool {
	if cmd.Flags().Changed("fail-on-query-error") {
		return failOnQueryError
	}
	if summary.Config != nil && summary.Config.FailOnQueryError != nil {
		return *summary.Config.FailOnQueryError
	}
	return false
}

// parseLogLevel maps the level name to the signed zap level used by the
// logger package.
func parseLogLevel(name string) (int8, error) {
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: use debug, info, warn, or error", name)
	}
	return int8(level), nil
}

func versionString() string {
	v := settings.VersionInformation
	return fmt.Sprintf("%s %s (commit %s, built %s)", settings.CliBinaryName, v.BuildVersion, v.Commit, v.BuildTime)
}
