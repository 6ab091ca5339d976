package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"draughtsman/internal/app"
	"draughtsman/internal/config"
	"draughtsman/internal/content"
	"draughtsman/internal/db"
	"draughtsman/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "draughtsman",
	Short: "Draughtsman lead-intake service",
	Long: `Draughtsman captures guidance requests, session bookings and newsletter
sign-ups for an electrical design training business, tells the operator about
new leads by e-mail and serves the training catalog.

The workspace holds draughtsman.yml (optional) and .draughtsman/draughtsman.db.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DRAUGHTSMAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/draughtsman.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level override")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(contentCmd())
	rootCmd.AddCommand(recommendCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				handler, err := a.Handler()
				if err != nil {
					return err
				}
				addr := a.Config.Server.Addr
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(sctx)
				})
				g.Go(func() error {
					return a.Webhooks().Run(gctx)
				})
				a.Logger.Info("serving Draughtsman API",
					zap.String("url", fmt.Sprintf("http://%s%s", addr, a.Config.Server.BasePath)),
					zap.String("openapi", a.Config.Server.BasePath+"/openapi.json"),
					zap.String("docs", "/docs"))
				return g.Wait()
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("base-path", "", "API base path (overrides server.base_path)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func submitCmd() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "submit <guidance|scheduling|newsletter>",
		Short: "Submit a form as if it came from the site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseFormKind(args[0])
			if err != nil {
				return err
			}
			raw, err := parseFields(fields)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res := a.Engine.Submit(ctx, kind, raw)
				if viper.GetBool("json") {
					if err := printJSON(res); err != nil {
						return err
					}
				} else {
					fmt.Println(res.Message)
					for _, issue := range res.Issues {
						fmt.Println("  -", issue)
					}
				}
				if !res.Success {
					return errors.New("submission not stored")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "field value as key=value (repeatable)")
	return cmd
}

func parseFields(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --field %q; want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func recordsCmd() *cobra.Command {
	rec := &cobra.Command{Use: "records", Short: "Inspect stored submissions"}
	rec.AddCommand(recordsListCmd())
	return rec
}

func recordsListCmd() *cobra.Command {
	var collection string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection != "" && !domain.ValidCollection(collection) {
				return fmt.Errorf("unknown collection %q (want one of %s)", collection, strings.Join(domain.Collections(), ", "))
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Repo.ListRecords(ctx, collection, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Collection", "Status", "Created", "Fields"})
				for _, r := range recs {
					tw.AppendRow(table.Row{r.ID, r.Collection, r.Status, r.CreatedAt, summarizeFields(r.Fields)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records")
	return cmd
}

func summarizeFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if len(v) > 40 {
			v = v[:37] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}

func contentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "content",
		Short: "Manage the training catalog",
		Long:  "The catalog is served from the database when rows exist and from the built-in fixtures otherwise.",
	}
	c.AddCommand(contentImportCmd())
	c.AddCommand(contentListCmd())
	return c
}

func contentImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace catalog sections from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			doc, err := content.ParseDocument(data)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				counts, err := content.Import(ctx, a.Repo, doc)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Rows"})
				for _, kind := range []string{domain.ContentPrograms, domain.ContentResources, domain.ContentTestimonials, domain.ContentShowcase} {
					if n, ok := counts[kind]; ok {
						tw.AppendRow(table.Row{kind, n})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func contentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "list <programs|resources|testimonials|showcase>",
		Short:     "List a catalog section",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{domain.ContentPrograms, domain.ContentResources, domain.ContentTestimonials, domain.ContentShowcase},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				var (
					out    any
					source content.Source
				)
				switch args[0] {
				case domain.ContentPrograms:
					l, err := a.Catalog.Programs(ctx)
					if err != nil {
						return err
					}
					out, source = l, l.Source
					tw.AppendHeader(table.Row{"Slug", "Title", "Duration", "Price"})
					for _, p := range l.Items {
						tw.AppendRow(table.Row{p.Slug, p.Title, p.Duration, p.Price})
					}
				case domain.ContentResources:
					l, err := a.Catalog.Resources(ctx)
					if err != nil {
						return err
					}
					out, source = l, l.Source
					tw.AppendHeader(table.Row{"Slug", "Title", "Type", "Category"})
					for _, r := range l.Items {
						tw.AppendRow(table.Row{r.Slug, r.Title, r.Type, r.Category})
					}
				case domain.ContentTestimonials:
					l, err := a.Catalog.Testimonials(ctx)
					if err != nil {
						return err
					}
					out, source = l, l.Source
					tw.AppendHeader(table.Row{"ID", "Client", "Company", "Project"})
					for _, t := range l.Items {
						tw.AppendRow(table.Row{t.ID, t.ClientName, t.Company, t.ProjectTitle})
					}
				case domain.ContentShowcase:
					l, err := a.Catalog.Showcase(ctx)
					if err != nil {
						return err
					}
					out, source = l, l.Source
					tw.AppendHeader(table.Row{"ID", "Title", "Category"})
					for _, s := range l.Items {
						tw.AppendRow(table.Row{s.ID, s.Title, s.Category})
					}
				default:
					return fmt.Errorf("unknown catalog section %q", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				tw.SetCaption("source: %s", source)
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func recommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <design needs...>",
		Short: "Ask for training recommendations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rec, err := a.Recommender.Recommend(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				fmt.Println(rec.Recommendation)
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage draughtsman.yml",
		Long:  "Settings come from draughtsman.yml, then DRAUGHTSMAN_* variables and the legacy EMAIL_SERVER_*, ADMIN_EMAIL and GEMINI_API_KEY names, then flags.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configCheckCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default draughtsman.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o600); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Setting", "Value"})
			tw.AppendRow(table.Row{"server.addr", cfg.Server.Addr})
			tw.AppendRow(table.Row{"server.base_path", cfg.Server.BasePath})
			tw.AppendRow(table.Row{"mail", configuredText(cfg.Mail.Configured())})
			tw.AppendRow(table.Row{"operator", cfg.Notifications.OperatorAddress})
			tw.AppendRow(table.Row{"auth.jwt_secret", configuredText(cfg.Auth.JWTSecret != "")})
			tw.AppendRow(table.Row{"ai", configuredText(cfg.AI.APIKey != "")})
			tw.AppendRow(table.Row{"webhooks", len(cfg.Webhooks)})
			tw.Render()
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configuredText(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

// --- helpers ---

func resolveConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"), viper.GetViper())
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, app.Options{Workspace: viper.GetString("workspace"), Config: cfg})
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Logger.Sync()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
