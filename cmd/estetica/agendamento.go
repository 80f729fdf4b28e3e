package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shrek82/estetica-db/agendamento"
	"github.com/shrek82/estetica-db/validator"
)

type agendamentoFlags struct {
	form     agendamento.Form
	fragment string
}

func (c *Cmd) getAgendamentoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agendamento",
		Short: "Manage appointments in the agendamentos table",
	}
	cmd.AddCommand(c.getAgendamentoAddCmd())
	cmd.AddCommand(c.getAgendamentoFindCmd())
	return cmd
}

func (c *Cmd) getAgendamentoAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Insert one appointment",
		Example: `  estetica agendamento add --nome "Maria Silva" --telefone 123456789 --email maria@email.com --data 2024-10-05`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.agFlags.form.Parse()
			if err != nil {
				return fmt.Errorf("invalid agendamento: %s", validator.FirstMsg(err))
			}

			ctx, cancel := signalContext()
			defer cancel()
			db, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := agendamento.NewStore(db).Insert(ctx, a)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]int64{"affectedRows": n})
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.agFlags.form.NomePessoa, "nome", "", "person name")
	f.StringVar(&c.agFlags.form.ContatoTelefonico, "telefone", "", "phone number, digits only")
	f.StringVar(&c.agFlags.form.Email, "email", "", "e-mail address")
	f.StringVar(&c.agFlags.form.DataAgendamento, "data", "", "appointment date (YYYY-MM-DD)")
	return cmd
}

func (c *Cmd) getAgendamentoFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List appointments whose name contains the given text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			db, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			found, err := agendamento.NewStore(db).FindByNameContaining(ctx, c.agFlags.fragment)
			if err != nil {
				return err
			}
			return writeJSON(cmd, found)
		},
	}
	cmd.Flags().StringVar(&c.agFlags.fragment, "nome", "", "part of the person name")
	return cmd
}
