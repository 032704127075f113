package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breadboard-sim/breadboard/core/ast"
	"github.com/breadboard-sim/breadboard/core/astfmt"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <sketch.bast>",
		Short: "Decode a compiled sketch and dump its tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(args[0], cmd.OutOrStdout())
		},
	}
}

func inspect(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	root, fp, err := astfmt.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(out, "file:        %s (%d bytes)\n", path, len(data))
	fmt.Fprintf(out, "fingerprint: %s\n", hex.EncodeToString(fp[:]))
	fmt.Fprintf(out, "nodes:       %d\n\n", ast.Count(root))
	dumpNode(out, root, 0)
	return nil
}

func dumpNode(out io.Writer, n *ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	desc := n.String()
	if n.Type != "" {
		desc += " : " + n.Type
	}
	fmt.Fprintf(out, "%s%s\n", indent, desc)
	for _, c := range n.Children {
		dumpNode(out, c, depth+1)
	}
}
