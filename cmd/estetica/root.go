package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	estetica "github.com/shrek82/estetica-db"
	"github.com/shrek82/estetica-db/config"
)

type (
	Cmd struct {
		rootCmd    *cobra.Command
		v          *viper.Viper
		rootFlags  rootFlags
		queryFlags queryFlags
		agFlags    agendamentoFlags
	}

	rootFlags struct {
		cfgFile  string
		envFiles []string
	}

	queryFlags struct {
		params []string
		rows   bool
		exec   bool
	}
)

func New() *Cmd {
	return &Cmd{v: config.NewViper()}
}

func (c *Cmd) Execute() {
	rootCmd := &cobra.Command{
		Use:               "estetica",
		Short:             "Run parameterized statements against the estetica_plus database",
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.rootFlags.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.StringSliceVar(&c.rootFlags.envFiles, "env-file", nil, "env files to load (default .env)")
	pf.String("driver", "", "database driver (mysql, postgres, sqlite3)")
	pf.String("host", "", "database host")
	pf.Int("port", 0, "database port")
	pf.String("user", "", "database user")
	pf.String("password", "", "database password")
	pf.String("database", "", "database name, or file path for sqlite3")
	pf.Int("pool-size", 0, "number of pooled connections")
	pf.String("log-level", "", "log level (silent, error, warn, info)")
	pf.String("log-format", "", "log format (text, json)")

	for key, flag := range map[string]string{
		config.KeyDriver:      "driver",
		config.KeyHost:        "host",
		config.KeyPort:        "port",
		config.KeyUser:        "user",
		config.KeyPassword:    "password",
		config.KeyDatabase:    "database",
		config.KeyMaxPoolSize: "pool-size",
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
	} {
		if err := c.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			log.Fatalln(err)
		}
	}
	c.rootCmd = rootCmd

	rootCmd.AddCommand(c.getPingCmd())
	rootCmd.AddCommand(c.getQueryCmd())
	rootCmd.AddCommand(c.getStatsCmd())
	rootCmd.AddCommand(c.getAgendamentoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// open loads the configuration and opens the pool.
func (c *Cmd) open(ctx context.Context) (*estetica.DB, error) {
	if err := config.LoadDotenv(c.rootFlags.envFiles...); err != nil {
		return nil, err
	}
	if c.rootFlags.cfgFile != "" {
		c.v.SetConfigFile(c.rootFlags.cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", c.rootFlags.cfgFile, err)
		}
	}
	cfg, err := config.FromViper(c.v)
	if err != nil {
		return nil, err
	}
	return estetica.Open(ctx, cfg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func (c *Cmd) getPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Open the pool and check the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			db, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (c *Cmd) getQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Execute one statement and print its rows or affected row count as JSON",
		Long: `Execute one statement with positional ? placeholders. Each --param binds,
in order, to the next placeholder.`,
		Example: `  estetica query "SELECT * FROM agendamentos WHERE nome_pessoa = ?" --param "Maria Silva"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			db, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			params := make([]any, len(c.queryFlags.params))
			for i, p := range c.queryFlags.params {
				params[i] = p
			}

			var res *estetica.Result
			switch {
			case c.queryFlags.rows:
				res, err = db.Select(ctx, args[0], params...)
			case c.queryFlags.exec:
				res, err = db.Exec(ctx, args[0], params...)
			default:
				res, err = db.Query(ctx, args[0], params...)
			}
			if err != nil {
				return err
			}
			return writeResult(cmd, res)
		},
	}
	cmd.Flags().StringArrayVarP(&c.queryFlags.params, "param", "p", nil, "bind value, repeat in placeholder order")
	cmd.Flags().BoolVar(&c.queryFlags.rows, "rows", false, "force reading a result set")
	cmd.Flags().BoolVar(&c.queryFlags.exec, "exec", false, "force reporting affected rows")
	cmd.MarkFlagsMutuallyExclusive("rows", "exec")
	return cmd
}

func (c *Cmd) getStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Open the pool and print its bookkeeping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			db, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			return writeJSON(cmd, db.Stats())
		},
	}
}

func writeResult(cmd *cobra.Command, res *estetica.Result) error {
	if res.HasRows {
		return writeJSON(cmd, res.Rows)
	}
	return writeJSON(cmd, map[string]int64{
		"affectedRows": res.RowsAffected,
		"insertId":     res.LastInsertID,
	})
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
