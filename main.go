package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Limetric/schemaferry/internal/backend"
	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/journal"
	"github.com/Limetric/schemaferry/internal/metrics"
	"github.com/Limetric/schemaferry/internal/model"
	"github.com/Limetric/schemaferry/internal/orchestrate"
	"github.com/Limetric/schemaferry/internal/translate"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "schemaferry",
	Short:         "Oracle and PostgreSQL schema and procedural code migration tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [config.toml]",
	Short: "Migrate the target database to the desired model",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

var planCmd = &cobra.Command{
	Use:   "plan [config.toml]",
	Short: "Print the statements a migration would execute",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

var checkCmd = &cobra.Command{
	Use:   "check [config.toml]",
	Short: "Round-trip check the desired model's functions and triggers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

var translateCmd = &cobra.Command{
	Use:   "translate <body.sql>",
	Short: "Translate one function or trigger body between PL/SQL and PL/pgSQL",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranslate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionLine())
	},
}

var translateOpts struct {
	direction string
	kind      string
	name      string
	model     string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to migration TOML config file")

	translateCmd.Flags().StringVar(&translateOpts.direction, "direction", "o2p", "oracle->postgres (o2p) or postgres->oracle (p2o)")
	translateCmd.Flags().StringVar(&translateOpts.kind, "kind", "function", "function or trigger")
	translateCmd.Flags().StringVar(&translateOpts.name, "name", "", "object name, used for trigger functions and labels")
	translateCmd.Flags().StringVar(&translateOpts.model, "model", "", "schema description resolving called procedures")

	rootCmd.AddCommand(migrateCmd, planCmd, checkCmd, translateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFromArgs loads the config: a positional arg takes precedence over
// the --config flag.
func configFromArgs(args []string) (*MigrationConfig, error) {
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return nil, fmt.Errorf("config file required: schemaferry <command> <config.toml> or --config <config.toml>")
	}
	return loadConfig(cfgPath)
}

// session is everything a command needs to plan or run a migration.
type session struct {
	cfg     *MigrationConfig
	target  backend.Target // nil without target.dsn
	d       dialect.Dialect
	current *model.Database
	desired *model.Database
}

func (s *session) Close() {
	if s.target != nil {
		s.target.Close()
	}
}

func openSession(ctx context.Context, cfg *MigrationConfig) (*session, error) {
	s := &session{cfg: cfg}
	var version dialect.Version
	if cfg.Target.DSN != "" {
		log.Printf("connecting to %s...", cfg.Dialect)
		target, err := backend.Open(ctx, cfg.Dialect, cfg.Target.DSN)
		if err != nil {
			return nil, err
		}
		s.target = target
		if version, err = target.ServerVersion(ctx); err != nil {
			s.Close()
			return nil, err
		}
		log.Printf("  %s server version %s", target.Name(), version)
	}

	d, err := cfg.newDialect(version)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.d = d

	log.Printf("loading desired model %s...", cfg.Model.Desired)
	if s.desired, err = model.Load(cfg.resolvePath(cfg.Model.Desired)); err != nil {
		s.Close()
		return nil, fmt.Errorf("desired model: %w", err)
	}
	if cfg.Model.Current != "" {
		log.Printf("loading current model %s...", cfg.Model.Current)
		s.current, err = model.Load(cfg.resolvePath(cfg.Model.Current))
	} else {
		log.Printf("introspecting %s catalog...", s.target.Name())
		s.current, err = s.target.ReadModel(ctx)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("current model: %w", err)
	}
	log.Printf("  current: %d tables, %d functions, %d triggers; desired: %d tables, %d functions, %d triggers",
		len(s.current.Tables), len(s.current.Functions), len(s.current.Triggers),
		len(s.desired.Tables), len(s.desired.Functions), len(s.desired.Triggers))
	return s, nil
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, err := configFromArgs(args)
	if err != nil {
		return err
	}
	if cfg.Target.DSN == "" {
		return fmt.Errorf("target.dsn is required for migrate")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	log.Printf("schemaferry %s: %s migration", versionString(), cfg.Dialect)
	log.Printf("config: workers=%d continue_on_error=%t verify=%t journal=%q metrics=%t",
		cfg.Workers, cfg.ContinueOnError, cfg.Translate.Verify, cfg.Journal, cfg.Metrics.Enabled)

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := orchestrate.Options{
		ContinueOnError: cfg.ContinueOnError,
		Workers:         cfg.Workers,
		Verify:          cfg.Translate.Verify,
	}
	if opts.BeforeBackfill, err = loadScripts(cfg, cfg.Hooks.BeforeBackfill, "before_backfill"); err != nil {
		return err
	}
	if opts.AfterBackfill, err = loadScripts(cfg, cfg.Hooks.AfterBackfill, "after_backfill"); err != nil {
		return err
	}

	var run *journal.Run
	if cfg.Journal != "" {
		j, err := journal.Open(ctx, cfg.resolvePath(cfg.Journal))
		if err != nil {
			return err
		}
		defer j.Close()
		if run, err = j.Begin(ctx, s.d.Name()); err != nil {
			return err
		}
		log.Printf("journal run %s", run.ID)
		opts.Observers = append(opts.Observers, run)
	}
	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		if rec, err = metrics.New(s.d.Name()); err != nil {
			return err
		}
		opts.Observers = append(opts.Observers, rec)
	}

	report, runErr := orchestrate.New(s.d, s.target, opts).Run(ctx, s.current, s.desired)

	if run != nil {
		if err := run.Finish(ctx, runErr); err != nil {
			log.Printf("  WARN: %v", err)
		}
	}
	if rec != nil && cfg.Metrics.Pushgateway != "" {
		if err := rec.Push(cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			log.Printf("  WARN: %v", err)
		}
	}
	if report != nil {
		log.Printf("%d change(s), %d statement(s), %d recreated table(s), %d failure(s), %d flagged object(s) in %s",
			len(report.Changes), len(report.Statements), len(report.Recreated),
			len(report.Failures), len(report.Inconsistencies), time.Since(start).Round(time.Millisecond))
	}
	if runErr != nil {
		return fmt.Errorf("migrate: %w", runErr)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := configFromArgs(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	m := orchestrate.New(s.d, &backend.Recorder{}, orchestrate.Options{Workers: cfg.Workers})
	report, err := m.Plan(ctx, s.current, s.desired)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	for _, table := range report.Recreated {
		fmt.Fprintf(cmd.OutOrStdout(), "-- %s is recreated\n", table)
	}
	return printPlan(cmd.OutOrStdout(), s.d, report.Statements)
}

// printPlan writes statements as a script the target's own client can run:
// Oracle PL/SQL units end with a "/" line, everything else with ";".
func printPlan(w io.Writer, d dialect.Dialect, stmts []dialect.Statement) error {
	phase := dialect.Phase(-1)
	for _, s := range stmts {
		if s.Phase != phase {
			phase = s.Phase
			if _, err := fmt.Fprintf(w, "\n-- phase: %s\n", phase); err != nil {
				return err
			}
		}
		term := ";"
		if !d.Translates() && s.Phase == dialect.PhaseProcedural && strings.HasPrefix(s.SQL, "CREATE") {
			term = "\n/"
		}
		if _, err := fmt.Fprintf(w, "-- %s: %s\n%s%s\n", s.Object, s.Desc, s.SQL, term); err != nil {
			return err
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := configFromArgs(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	desired, err := model.Load(cfg.resolvePath(cfg.Model.Desired))
	if err != nil {
		return fmt.Errorf("desired model: %w", err)
	}
	log.Printf("checking %d function(s) and %d trigger(s) with %d workers...",
		len(desired.Functions), len(desired.Triggers), cfg.Workers)
	incs, err := translate.New(desired).Check(ctx, desired, translate.OracleToPostgres, cfg.Workers)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	states := translate.States(desired, incs)
	out := cmd.OutOrStdout()
	for _, f := range desired.Functions {
		fmt.Fprintf(out, "%-10s %s\n", states["function:"+f.Name], f.Name)
	}
	for _, tr := range desired.Triggers {
		fmt.Fprintf(out, "%-10s %s\n", states["trigger:"+tr.Name], tr.Name)
	}
	if len(incs) > 0 {
		return fmt.Errorf("check: %d object(s) flagged", len(incs))
	}
	return nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	dir, err := translate.ParseDirection(translateOpts.direction)
	if err != nil {
		return err
	}
	var kind translate.Kind
	switch translateOpts.kind {
	case "function":
		kind = translate.KindFunction
	case "trigger":
		kind = translate.KindTrigger
	default:
		return fmt.Errorf("--kind must be one of: function, trigger")
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	var resolver translate.Resolver
	if translateOpts.model != "" {
		db, err := model.Load(translateOpts.model)
		if err != nil {
			return fmt.Errorf("model: %w", err)
		}
		resolver = db
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), translate.New(resolver).Body(string(body), kind, translateOpts.name, dir))
	return err
}
