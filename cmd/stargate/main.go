package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stargate/internal/app"
	"stargate/internal/archive"
	"stargate/internal/config"
	"stargate/internal/domain"
	"stargate/internal/engine"
	"stargate/internal/repo"
	"stargate/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "stargate",
	Short: "Stargate astronaut career tracker",
	Long: `Stargate records people and their astronaut duty history.
- Person: someone with a unique name who may hold duties.
- Duty: a rank and duty title starting on a day. A new duty closes the current one the day before it starts.
- Retirement: a duty with the retirement title; it also ends the career the day before.
- Audit log: every request and failure, view with 'stargate log tail'.`,
	SilenceUsage: true,
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STARGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/stargate.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("driver", "", "database driver: sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database DSN (sqlite file path or postgres URL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "write service logs to stderr")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	_ = viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(dutyCmd())
	rootCmd.AddCommand(refCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(serveCmd())
}

func personCmd() *cobra.Command {
	p := &cobra.Command{Use: "person", Short: "Manage people"}
	p.AddCommand(personCreateCmd())
	p.AddCommand(personListCmd())
	p.AddCommand(personShowCmd())
	return p
}

func personCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.CreatePerson(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("created person %d %s\n", p.ID, p.Name)
				return nil
			})
		},
	}
}

func personListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List people with their current assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				people, err := rt.Engine.ListPeople(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(people)
				}
				renderPeople(people)
				return nil
			})
		},
	}
}

func personShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				lookup, err := rt.Engine.PersonByName(ctx, args[0])
				if err != nil {
					return err
				}
				if !lookup.Found {
					return fmt.Errorf("person '%s' not found", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(lookup.Person)
				}
				renderPeople([]domain.PersonAstronaut{lookup.Person})
				return nil
			})
		},
	}
}

func dutyCmd() *cobra.Command {
	d := &cobra.Command{
		Use:   "duty",
		Short: "Manage astronaut duties",
		Long:  "Duties are append-only. Each person has at most one current duty; adding a new one closes it.",
	}
	d.AddCommand(dutyCreateCmd())
	d.AddCommand(dutyHistoryCmd())
	return d
}

func dutyCreateCmd() *cobra.Command {
	var name, start string
	var rankID, titleID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Assign a new duty",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := domain.ParseDate(start)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				duty, err := rt.Engine.SubmitDuty(ctx, engine.DutyRequest{
					Name:          name,
					RankID:        rankID,
					DutyTitleID:   titleID,
					DutyStartDate: startDate,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(duty)
				}
				fmt.Printf("created duty %d for %s starting %s\n", duty.ID, name, duty.DutyStartDate)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "person name")
	cmd.Flags().Int64Var(&rankID, "rank-id", 0, "rank id")
	cmd.Flags().Int64Var(&titleID, "duty-title-id", 0, "duty title id")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("rank-id")
	_ = cmd.MarkFlagRequired("duty-title-id")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func dutyHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history NAME",
		Short: "Show a person's duty history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.DutiesByName(ctx, args[0])
				if err != nil {
					return err
				}
				if !res.Found {
					return fmt.Errorf("person '%s' not found", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(res.Duties)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Rank", "Duty Title", "Start", "End"})
				for _, d := range res.Duties {
					tw.AppendRow(table.Row{d.ID, d.Rank, d.DutyTitle, d.DutyStartDate, deref(d.DutyEndDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func refCmd() *cobra.Command {
	ref := &cobra.Command{Use: "ref", Short: "Reference data"}
	ref.AddCommand(&cobra.Command{
		Use:   "ranks",
		Short: "List active ranks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ranks, err := rt.Repo.ListRanks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ranks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Abbreviation", "Name", "Level"})
				for _, r := range ranks {
					tw.AppendRow(table.Row{r.ID, r.Abbreviation, r.Name, r.Level})
				}
				tw.Render()
				return nil
			})
		},
	})
	ref.AddCommand(&cobra.Command{
		Use:   "titles",
		Short: "List active duty titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				titles, err := rt.Repo.ListDutyTitles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(titles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Description"})
				for _, t := range titles {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Description})
				}
				tw.Render()
				return nil
			})
		},
	})
	return ref
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Audit log",
		Long:  "Every duty request, creation and failure, newest first.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.AuditFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Repo.ListAuditEntries(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Level", "Source", "Message", "Error"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.Timestamp, e.Level, e.Source, e.Message, e.Error})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", repo.DefaultAuditLimit, "number of entries")
	cmd.Flags().StringVar(&f.Level, "level", "", "level filter")
	cmd.Flags().StringVar(&f.Source, "source", "", "source substring filter")
	return cmd
}

func rosterCmd() *cobra.Command {
	r := &cobra.Command{Use: "roster", Short: "Roster snapshots"}
	var dir string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export every person and duty history to the archive target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				target := rt.Config.Archive
				if dir != "" {
					target.Bucket, target.Dir = "", dir
				}
				store, err := archive.Open(ctx, target)
				if err != nil {
					return err
				}
				key, err := archive.Export(ctx, rt.Engine, store, target.Prefix)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"key": key})
				}
				fmt.Println("exported", key)
				return nil
			})
		},
	}
	export.Flags().StringVar(&dir, "dir", "", "write to this directory instead of the configured target")
	r.AddCommand(export)
	return r
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect stargate.yml",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default stargate.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.LoadConfig(options())
			if err != nil {
				return err
			}
			if c.Archive.SecretAccessKey != "" {
				c.Archive.SecretAccessKey = "********"
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.LoadConfig(options())
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo people and duties from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rep, err := app.Seed(ctx, rt.Engine, rt.Config.Seed.People)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("people: %d created, %d skipped; duties: %d created, %d skipped\n",
					rep.PeopleCreated, rep.PeopleSkipped, rep.DutiesCreated, rep.DutiesSkipped)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options()
			opts.LogOutput = os.Stderr
			rt, err := app.Open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)
			if seed {
				if _, err := app.Seed(cmd.Context(), rt.Engine, rt.Config.Seed.People); err != nil {
					return err
				}
			}
			handler, err := server.New(server.Config{Engine: rt.Engine, BasePath: basePath, Metrics: rt.Metrics, Logger: rt.Logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			rt.Logger.Info("serving", "addr", addr, "base_path", basePath)
			fmt.Printf("Serving Stargate API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs, metrics at /metrics)\n", addr, basePath, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&seed, "seed", false, "seed demo data from config before serving")
	return cmd
}

// --- helpers ---

func options() app.Options {
	return app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		Driver:     viper.GetString("driver"),
		DSN:        viper.GetString("dsn"),
	}
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	opts := options()
	if viper.GetBool("verbose") {
		opts.LogOutput = os.Stderr
	}
	rt, err := app.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)
	return fn(ctx, rt)
}

func closeRuntime(rt *app.Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
}

func renderPeople(people []domain.PersonAstronaut) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Rank", "Duty Title", "Career Start", "Career End"})
	for _, p := range people {
		tw.AppendRow(table.Row{p.PersonID, p.Name, p.CurrentRank, p.CurrentDutyTitle, deref(p.CareerStartDate), deref(p.CareerEndDate)})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
