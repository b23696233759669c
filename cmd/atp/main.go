// Command atp compiles YAML flow descriptions into stored flow files and
// renders optimized flow trees for inspection.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/arkohler/atp/core/flow"
	"github.com/arkohler/atp/core/flowfmt"
	"github.com/arkohler/atp/core/passes"
	"github.com/arkohler/atp/internal/flowfile"
)

var version = "dev"

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "atp",
		Short:         "ATE test-program flow compiler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(compileCommand(), showCommand(), hashCommand())
	return root
}

// compileCommand parses a YAML flow description and stores it as a binary
// flow file.
func compileCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile <flow.yaml>",
		Short: "Compile a YAML flow description into a stored flow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flowfile.Load(args[0])
			if err != nil {
				return err
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".atpf"
			}

			var buf bytes.Buffer
			digest, err := flowfmt.Write(&buf, f)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hex.EncodeToString(digest[:]), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: input with .atpf extension)")
	return cmd
}

// showCommand loads a flow (YAML or stored binary), runs the selected
// optimization pipeline, and renders the resulting tree.
func showCommand() *cobra.Command {
	var (
		target        = env.Str("ATP_TARGET", "none")
		uniqueID      string
		raw           bool
		oneFlag       bool
		optimizeFlags bool
		noRelations   bool
	)

	cmd := &cobra.Command{
		Use:   "show <flow.yaml|flow.atpf>",
		Short: "Render a flow tree after optimization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFlow(args[0])
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprint(cmd.OutOrStdout(), f.Raw().Dump())
				return nil
			}

			opt, ok := passes.OptimizationFromName(target)
			if !ok {
				return fmt.Errorf("unknown target %q (want none, smt, igxl or flat)", target)
			}
			opts := passes.DefaultOptions()
			opts.Optimization = opt
			opts.UniqueID = uniqueID
			opts.ApplyRelationships = !noRelations
			opts.OneFlagPerTest = oneFlag
			opts.OptimizeFlags = optimizeFlags

			tree, err := f.AST(opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tree.Dump())
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", target, "optimization target: none, smt, igxl or flat (env ATP_TARGET)")
	cmd.Flags().StringVar(&uniqueID, "unique-id", "", "suffix appended to every ID for program merging")
	cmd.Flags().BoolVar(&raw, "raw", false, "show the tree as constructed, before any pass")
	cmd.Flags().BoolVar(&oneFlag, "one-flag-per-test", false, "limit each test to one outcome flag (igxl)")
	cmd.Flags().BoolVar(&optimizeFlags, "optimize-flags", false, "coalesce flags with disjoint live windows (smt)")
	cmd.Flags().BoolVar(&noRelations, "no-relationships", false, "keep relationship conditions unlowered")
	return cmd
}

// hashCommand prints the content digest of a flow.
func hashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <flow.yaml|flow.atpf>",
		Short: "Print the BLAKE2b-256 content digest of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFlow(args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			digest, err := flowfmt.Write(&buf, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", hex.EncodeToString(digest[:]))
			return nil
		},
	}
}

// loadFlow reads either a YAML description or a stored binary flow,
// selected by file extension.
func loadFlow(path string) (*flow.Flow, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return flowfile.Load(path)
	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		f, _, err := flowfmt.Read(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return f, nil
	}
}
