package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
)

// TemplateAddResult is the output of template add.
type TemplateAddResult struct {
	Hash     string       `json:"template_hash"`
	Club     string       `json:"club"`
	Inserted bool         `json:"inserted"`
	Alias    *store.Alias `json:"alias,omitempty"`
}

// TemplateShowResult is the output of template show.
type TemplateShowResult struct {
	Hash      string       `json:"template_hash"`
	Club      string       `json:"club"`
	Canonical string       `json:"canonical"`
	Alias     *store.Alias `json:"alias,omitempty"`
}

// NewTemplateCommand creates the template command group.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Store and inspect KPI templates",
	}
	cmd.AddCommand(newTemplateAddCommand(rootOpts))
	cmd.AddCommand(newTemplateShowCommand(rootOpts))
	cmd.AddCommand(newTemplateAliasCommand(rootOpts))
	cmd.AddCommand(newTemplateListCommand(rootOpts))
	return cmd
}

func newTemplateAddCommand(rootOpts *RootOptions) *cobra.Command {
	var alias, notes string
	cmd := &cobra.Command{
		Use:   "add <file|->",
		Short: "Store a template by content hash",
		Long: `Validate and store a KPI template. Templates are identified by the
SHA-256 of their canonical form; storing the same content twice is a no-op
that returns the existing identity.

Example:
  golfkpi template add templates/7i.json --alias "7-iron baseline"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			raw, err := readInput(cmd, args[0])
			if err != nil {
				return a.out.Fail("failed to read template", commandError(args[0], err))
			}
			st, inserted, err := a.store.InsertTemplate(ctx, raw)
			if err != nil {
				return a.out.Fail("template rejected", err)
			}
			res := TemplateAddResult{Hash: st.Hash, Club: st.Template.Club, Inserted: inserted}
			if alias != "" {
				if res.Alias, err = a.store.SetAlias(ctx, st.Hash, alias, notes); err != nil {
					return a.out.Fail("failed to set alias", err)
				}
			}

			verb := "stored"
			if !inserted {
				verb = "already stored"
			}
			return a.out.Result(res, fmt.Sprintf("%s template %s (club %s)", verb, res.Hash, res.Club))
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "display name for the template")
	cmd.Flags().StringVar(&notes, "notes", "", "alias notes")
	return cmd
}

func newTemplateShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <template-hash>",
		Short:         "Print a stored template",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			st, err := a.store.FetchTemplate(ctx, args[0])
			if err != nil {
				return a.out.Fail("template lookup failed", err)
			}
			res := TemplateShowResult{Hash: st.Hash, Club: st.Template.Club, Canonical: string(st.Canonical)}
			if alias, err := a.store.GetAlias(ctx, st.Hash); err == nil {
				res.Alias = alias
			} else if !kernel.IsNotFound(err) {
				return a.out.Fail("alias lookup failed", err)
			}

			text := res.Canonical
			if res.Alias != nil {
				text = fmt.Sprintf("# %s\n%s", res.Alias.DisplayName, text)
			}
			return a.out.Result(res, text)
		},
	}
}

func newTemplateAliasCommand(rootOpts *RootOptions) *cobra.Command {
	var notes string
	var remove bool
	cmd := &cobra.Command{
		Use:   "alias <template-hash> [display-name]",
		Short: "Set or remove a template's display name",
		Long: `Aliases are mutable metadata. Changing or removing one never changes the
template it points to.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove == (len(args) == 2) {
				return newFormatter(rootOpts, cmd).Fail("invalid arguments",
					commandError("alias", fmt.Errorf("give a display name or --remove, not both")))
			}

			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			if remove {
				if err := a.store.RemoveAlias(ctx, args[0]); err != nil {
					return a.out.Fail("failed to remove alias", err)
				}
				return a.out.Result(map[string]string{"template_hash": args[0]}, "alias removed")
			}
			alias, err := a.store.SetAlias(ctx, args[0], args[1], notes)
			if err != nil {
				return a.out.Fail("failed to set alias", err)
			}
			return a.out.Result(alias, fmt.Sprintf("%s -> %s", alias.DisplayName, alias.TemplateHash))
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "alias notes")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the alias")
	return cmd
}

func newTemplateListCommand(rootOpts *RootOptions) *cobra.Command {
	var club string
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored templates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			infos, err := a.store.ListTemplates(cmd.Context(), club)
			if err != nil {
				return a.out.Fail("failed to list templates", err)
			}
			if infos == nil {
				infos = []store.TemplateInfo{}
			}

			var b strings.Builder
			for _, info := range infos {
				name := ""
				if info.Alias != nil {
					name = info.Alias.DisplayName
				}
				fmt.Fprintf(&b, "%s  %-8s  %s\n", info.Hash, info.Club, name)
			}
			return a.out.Result(infos, strings.TrimSuffix(b.String(), "\n"))
		},
	}
	cmd.Flags().StringVar(&club, "club", "", "only templates for this club")
	return cmd
}
