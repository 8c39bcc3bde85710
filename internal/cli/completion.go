package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

var completionInstall bool

// completionShell describes how to generate and install completions for one
// shell. An empty dir means --install is not supported.
type completionShell struct {
	gen     func(root *cobra.Command, w io.Writer) error
	load    string
	dir     []string
	file    string
	postTip []string
}

var completionShells = map[string]completionShell{
	"bash": {
		gen:  func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
		load: `eval "$(rrd completion bash)"`,
		dir:  []string{".local", "share", "bash-completion", "completions"},
		file: "rrd",
		postTip: []string{
			"Restart your shell to pick them up.",
		},
	},
	"zsh": {
		gen:  func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
		load: `eval "$(rrd completion zsh)"`,
		dir:  []string{".local", "share", "zsh", "site-functions"},
		file: "_rrd",
		postTip: []string{
			"Make sure the directory is on your fpath, e.g. in ~/.zshrc:",
			"  fpath=(~/.local/share/zsh/site-functions $fpath)",
			"  autoload -Uz compinit && compinit",
		},
	},
	"fish": {
		gen:  func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
		load: "rrd completion fish | source",
		dir:  []string{".config", "fish", "completions"},
		file: "rrd.fish",
		postTip: []string{
			"New fish sessions load them automatically.",
		},
	},
	"powershell": {
		gen:  func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
		load: "rrd completion powershell | Out-String | Invoke-Expression",
	},
}

func supportedShells() []string {
	names := make([]string, 0, len(completionShells))
	for name := range completionShells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Set up shell completions for rrd",
	Long: `Print or install shell completions for rrd commands, flags and task IDs.

Supported shells: bash, zsh, fish, powershell

  rrd completion zsh --install   # write the script into your completion dir
  eval "$(rrd completion bash)"  # load into the current session only`,
	ValidArgs: supportedShells(),
	Args:      cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		shell, ok := completionShells[args[0]]
		if !ok {
			return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", args[0])
		}
		if completionInstall {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("detecting home directory: %w", err)
			}
			return installCompletion(cmd.Root(), cmd.OutOrStdout(), home, args[0], shell)
		}
		// The hint goes to stderr so the script can be piped.
		fmt.Fprintf(cmd.ErrOrStderr(), "# load in the current session with: %s\n", shell.load)
		return shell.gen(cmd.Root(), cmd.OutOrStdout())
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into your shell's completion directory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

// installCompletion writes root's completion script under home and reports
// the written path on out.
func installCompletion(root *cobra.Command, out io.Writer, home, name string, shell completionShell) error {
	if len(shell.dir) == 0 {
		return fmt.Errorf("automatic install is not supported for %s; add `%s` to your profile", name, shell.load)
	}
	dir := filepath.Join(append([]string{home}, shell.dir...)...)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating completion directory: %w", err)
	}
	target := filepath.Join(dir, shell.file)

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating completion file %s: %w", target, err)
	}
	writeErr := shell.gen(root, f)
	if err := f.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("closing completion file %s: %w", target, err)
	}
	if writeErr != nil {
		return writeErr
	}

	fmt.Fprintf(out, "%s completions installed to %s\n", name, target)
	for _, line := range shell.postTip {
		fmt.Fprintln(out, line)
	}
	return nil
}
