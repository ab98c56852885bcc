package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate documents against the dictionary",
		Long: `Checks every datablock of each document against the dictionary: item
types, enumerations, mandatory items, keys and parent/child links. The
documents are loaded in parallel. Requires a dictionary.

Examples:
  cifstore --dict mmcif_pdbx.dic validate 1abc.cif 2xyz.cif.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.app.Validate(cmd.Context(), args, cmd.OutOrStdout())
		},
	}
}

func newFindCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "find FILE CATEGORY EXPR",
		Short: "Print the rows of a category matching a condition",
		Long: `Prints the rows of CATEGORY that match EXPR as CIF, one datablock per
datablock of the document that has matches.

Conditions compare items with values: id = 1, name <> 'x', seq_id >= 10,
name LIKE 'A%', comp_id ~ 'HO[HD]', x IS NULL. The item * stands for any
item of the row. Combine with AND, OR, NOT and parentheses; TRUE matches
every row.

Examples:
  cifstore find 1abc.cif atom_site "label_comp_id = HOH AND label_asym_id = A"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := o.app.Find(cmd.Context(), args[0], args[1], args[2], cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no rows found")
			}
			return nil
		},
	}
}

func newRenameCommand(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "rename FILE CATEGORY EXPR TAG VALUE",
		Short: "Set an item in matching rows, following links",
		Long: `Sets TAG to VALUE in the rows of CATEGORY that match EXPR. With a
dictionary the change is carried to linked child rows; child rows that are
shared with other parents are split first.

Examples:
  cifstore --dict mmcif_pdbx.dic rename 1abc.cif entity "id = 1" id 10 -o 1abc-renamed.cif`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := o.app.Rename(cmd.Context(), args[0], args[1], args[2], args[3], args[4], out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			reportCount(cmd, out, "updated", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the result to this file or storage key")
	return cmd
}

func newEraseCommand(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "erase FILE CATEGORY EXPR",
		Short: "Remove matching rows, following links",
		Long: `Removes the rows of CATEGORY that match EXPR. With a dictionary, child
rows left without a parent are removed as well.

Examples:
  cifstore --dict mmcif_pdbx.dic erase 1abc.cif atom_site "label_comp_id = HOH" -o dry.cif`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := o.app.Erase(cmd.Context(), args[0], args[1], args[2], out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			reportCount(cmd, out, "erased", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the result to this file or storage key")
	return cmd
}

func newOrphansCommand(o *options) *cobra.Command {
	var (
		out   string
		erase bool
	)
	cmd := &cobra.Command{
		Use:   "orphans FILE CATEGORY",
		Short: "List or remove rows without a parent",
		Long: `Prints the rows of CATEGORY that have no parent row through any of the
dictionary links in which CATEGORY is the child. With --erase they are
removed and the document is written instead. Requires a dictionary.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := o.app.Orphans(cmd.Context(), args[0], args[1], erase, out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if erase {
				reportCount(cmd, out, "erased", n)
			} else if n == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no orphans found")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&erase, "erase", false, "remove the orphans")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the result to this file or storage key")
	return cmd
}

func newFmtCommand(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fmt FILE",
		Short: "Rewrite a document in canonical form",
		Long: `Writes FILE back out in canonical form: entry first, then audit_conform,
then the remaining categories in their original order, with values quoted
and loops aligned. With a dictionary that declares audit_conform, that
category is regenerated from the dictionary name and version. The output
name picks the compression: fmt 1abc.cif -o 1abc.cif.gz compresses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.app.Format(cmd.Context(), args[0], out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the result to this file or storage key")
	return cmd
}

func newDictCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dict",
		Short: "Print the loaded dictionary as YAML",
		Long: `Prints the resolved dictionary as YAML. The output can be given back to
--dict and loads much faster than a DDL dictionary.

Examples:
  cifstore --dict mmcif_pdbx.dic dict > mmcif_pdbx.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.app.WriteDictionary(cmd.OutOrStdout())
		},
	}
}

// reportCount tells how many rows changed. The note goes to stderr so it
// never ends up in a document written to stdout.
func reportCount(cmd *cobra.Command, out, verb string, n int) {
	if out == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d rows\n", verb, n)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %d rows, wrote %s\n", verb, n, out)
}
