// Package cli wires the command tree. Each command builds its effective
// config from file, environment and flags, constructs the API client, and
// renders either JSON or plain text.
package cli

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tfs-autotasks/internal/api"
	"tfs-autotasks/internal/config"
	"tfs-autotasks/internal/errs"
	"tfs-autotasks/internal/output"
)

type state struct {
	baseURL  string
	project  string
	team     string
	pat      string
	jsonMode bool
	verbose  bool
	insecure bool
	dryRun   bool

	cfg    config.Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

// Run executes the CLI and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	st := &state{stdout: stdout, stderr: stderr}
	root := newRootCmd(st)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if st.logger != nil {
		_ = st.logger.Sync()
	}
	if err != nil {
		output.WriteError(stderr, err, st.jsonMode)
		return 1
	}
	return 0
}

func newRootCmd(st *state) *cobra.Command {
	root := &cobra.Command{
		Use:   "tfs-autotasks",
		Short: "Create child work items from team templates",
		Long: `tfs-autotasks creates child work items under a parent from the team's
work item templates. A template opts in to a parent through its description,
either as a legacy bracket list of type names ([Bug, Task]) or as a JSON
filter ({"applywhen":[{"System.State":"Approved"}]}). Matching templates are
instantiated and linked under the parent with Hierarchy-Forward relations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := st.initLogger(); err != nil {
				return err
			}
			return st.loadConfig()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&st.baseURL, "base-url", "", "Base URL (overrides config/env)")
	pf.StringVar(&st.project, "project", "", "Project (overrides config/env)")
	pf.StringVar(&st.team, "team", "", "Team (overrides config/env)")
	pf.StringVar(&st.pat, "pat", "", "PAT token (overrides config/env)")
	pf.BoolVar(&st.jsonMode, "json", false, "Output JSON")
	pf.BoolVar(&st.verbose, "verbose", false, "Verbose logging (no tokens)")
	pf.BoolVar(&st.insecure, "insecure", false, "Skip TLS verification")

	root.AddCommand(newAddTasksCmd(st))
	root.AddCommand(newTemplatesCmd(st))
	root.AddCommand(newWhoamiCmd(st))
	root.AddCommand(newConfigCmd(st))
	return root
}

func (st *state) initLogger() error {
	cfg := zap.NewProductionConfig()
	if st.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	st.logger = logger
	return nil
}

func (st *state) loadConfig() error {
	fileCfg, err := config.Load("")
	if err != nil {
		return err
	}
	cfg := config.Merge(fileCfg, config.FromEnv())
	cfg = config.Merge(cfg, config.Config{
		BaseURL: st.baseURL,
		Project: st.project,
		Team:    st.team,
		PAT:     st.pat,
	})
	if cfg.BaseURL != "" && cfg.Project != "" {
		if normalized, ok := normalizeBaseURL(cfg.BaseURL, cfg.Project); ok {
			cfg.BaseURL = normalized
		}
	}
	st.cfg = cfg
	return nil
}

func (st *state) newClient() (*api.Client, error) {
	return api.NewClient(st.cfg.BaseURL, st.cfg.Project, st.cfg.Team, st.cfg.PAT, st.insecure, st.logger)
}

func (st *state) requireProject() error {
	if st.cfg.Project == "" {
		return missingConfigErr("project")
	}
	return nil
}

func missingConfigErr(name string) error {
	return errs.New(errs.CodeConfigMissing, name+" is required", nil)
}

// normalizeBaseURL strips a trailing project segment users habitually paste
// into the base URL.
func normalizeBaseURL(baseURL, project string) (string, bool) {
	if baseURL == "" || project == "" {
		return baseURL, false
	}
	trimmed := strings.TrimRight(baseURL, "/")
	lowerTrim := strings.ToLower(trimmed)
	lowerProject := strings.ToLower(project)
	if !strings.HasSuffix(lowerTrim, "/"+lowerProject) {
		return baseURL, false
	}
	parsed, err := url.Parse(trimmed)
	if err == nil && parsed.Scheme != "" {
		pathTrim := strings.TrimRight(parsed.Path, "/")
		parts := strings.Split(pathTrim, "/")
		if len(parts) > 0 && strings.EqualFold(parts[len(parts)-1], project) {
			parts = parts[:len(parts)-1]
			parsed.Path = strings.Join(parts, "/")
			if parsed.Path == "" {
				parsed.Path = "/"
			}
			return strings.TrimRight(parsed.String(), "/"), true
		}
	}
	return strings.TrimRight(trimmed[:len(trimmed)-len(project)-1], "/"), true
}
