package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyrx/keyrx/artifact"
	"github.com/keyrx/keyrx/charset"
	"github.com/keyrx/keyrx/compiler"
)

type compileCommand struct {
	out        string
	charsetArg string
	cmd        *cobra.Command
}

func newCompileCommand() *cobra.Command {
	cc := &compileCommand{}
	cc.cmd = &cobra.Command{
		Use:   "compile <src>",
		Short: "Compile a DSL profile into a sealed artifact",
		Args:  cobra.ExactArgs(1),
		RunE:  cc.Execute,
	}
	cc.cmd.Flags().StringVarP(&cc.out, "out", "o", "", "output artifact path (required)")
	cc.cmd.Flags().StringVar(&cc.charsetArg, "charset", "", "source charset, e.g. ISO8859-1 (default UTF-8)")
	_ = cc.cmd.MarkFlagRequired("out")
	return cc.cmd
}

func (c *compileCommand) Execute(_ *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("keyrx: reading %s: %w", args[0], err)
	}

	src, err := charset.Decode(raw, c.charsetArg)
	if err != nil {
		return fmt.Errorf("keyrx: decoding %s as %s: %w", args[0], c.charsetArg, err)
	}

	root, diags, warnings := compiler.Compile(src)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if len(diags) > 0 {
		return diags
	}

	sealed, err := artifact.Encode(root)
	if err != nil {
		return fmt.Errorf("keyrx: encoding artifact: %w", err)
	}
	if err := os.WriteFile(c.out, sealed, 0o644); err != nil {
		return fmt.Errorf("keyrx: writing %s: %w", c.out, err)
	}
	return nil
}
