package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kshg9/FSO-part11-ci-phonebook/pkg/client"
	"github.com/kshg9/FSO-part11-ci-phonebook/pkg/types"
)

// serverFlag binds the --server flag shared by the client commands.
func serverFlag(cmd *cobra.Command, target *string) {
	def := os.Getenv("PHONEBOOK_SERVER")
	if def == "" {
		def = defaultServerURL
	}
	cmd.PersistentFlags().StringVar(target, "server", def, "phonebook base URL (env PHONEBOOK_SERVER)")
}

func newPersonsCmd() *cobra.Command {
	var serverURL string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "persons",
		Aliases: []string{"person", "p"},
		Short:   "Manage phonebook entries on a running server",
	}
	serverFlag(cmd, &serverURL)
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	newClient := func() (*client.Client, error) {
		return client.New(client.Config{BaseURL: serverURL})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			persons, err := c.ListPersons(cmd.Context())
			if err != nil {
				return err
			}
			return printPersons(cmd.OutOrStdout(), asJSON, persons)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			p, err := c.GetPerson(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPerson(cmd.OutOrStdout(), asJSON, *p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "add <name> <number>",
		Short:   "Add an entry",
		Example: `  phonebook persons add "Arto Hellas" 040-123456`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			p, err := c.CreatePerson(cmd.Context(), types.PersonRequest{Name: args[0], Number: args[1]})
			if err != nil {
				return err
			}
			return printPerson(cmd.OutOrStdout(), asJSON, *p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update <id> <name> <number>",
		Short: "Replace the name and number of an entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			p, err := c.UpdatePerson(cmd.Context(), args[0], types.PersonRequest{Name: args[1], Number: args[2]})
			if err != nil {
				return err
			}
			return printPerson(cmd.OutOrStdout(), asJSON, *p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeletePerson(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func newInfoCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the server info page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.New(client.Config{BaseURL: serverURL})
			if err != nil {
				return err
			}
			info, err := c.Info(cmd.Context())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), info)
			return err
		},
	}
	serverFlag(cmd, &serverURL)
	return cmd
}

func printPerson(w io.Writer, asJSON bool, p types.Person) error {
	if asJSON {
		return writeJSON(w, p)
	}
	return printPersons(w, false, []types.Person{p})
}

func printPersons(w io.Writer, asJSON bool, persons []types.Person) error {
	if asJSON {
		if persons == nil {
			persons = []types.Person{}
		}
		return writeJSON(w, persons)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tNUMBER")
	for _, p := range persons {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Number)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
