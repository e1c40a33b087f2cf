// Package main provides the CLI entry point for tealeaf, a converter
// between the TeaLeaf text format (.tl), the binary container (.tlbx),
// and JSON.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/krishjag/tealeaf/log"
	"github.com/krishjag/tealeaf/profile"
	"github.com/krishjag/tealeaf/tealeaf"
	"github.com/krishjag/tealeaf/tealeaf/tlschema"
	"github.com/krishjag/tealeaf/version"
)

func main() {
	logCfg := log.NewConfig()
	profCfg := profile.NewConfig()

	var profiler *profile.Profiler

	rootCmd := &cobra.Command{
		Use:     "tealeaf",
		Short:   "Schema-aware data format with human-readable text and compact binary",
		Version: version.String(),
		Long: `tealeaf converts between the TeaLeaf text format (.tl), the indexed
binary container (.tlbx), and JSON. Text parses to a schema-aware
document; the binary container supports random section access without
decoding the whole file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(handler))

			profiler = profCfg.NewProfiler()

			return profiler.Start()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return profiler.Stop()
		},
	}

	logCfg.RegisterFlags(rootCmd.PersistentFlags())
	profCfg.RegisterFlags(rootCmd.PersistentFlags())

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	rootCmd.AddCommand(
		newCompileCmd(),
		newDecompileCmd(),
		newInfoCmd(),
		newValidateCmd(),
		newToJSONCmd(),
		newFromJSONCmd(),
		newTlbxToJSONCmd(),
		newJSONToTlbxCmd(),
		newSchemaCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// writeOutput sends data to the -o file, or stdout when no output path
// was given.
func writeOutput(output string, data []byte) error {
	if output == "" || output == "-" {
		_, err := os.Stdout.Write(data)

		return err
	}

	return os.WriteFile(output, data, 0o644)
}

func newCompileCmd() *cobra.Command {
	var (
		output       string
		uncompressed bool
	)

	cmd := &cobra.Command{
		Use:   "compile <input.tl>",
		Short: "Compile text format (.tl) to binary (.tlbx)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := tealeaf.Load(args[0])
			if err != nil {
				return err
			}

			if err := doc.Compile(output, !uncompressed); err != nil {
				return err
			}

			slog.Debug("compiled", "input", args[0], "output", output,
				"sections", doc.Len())

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output .tlbx file")
	cmd.Flags().BoolVar(&uncompressed, "uncompressed", false,
		"store section payloads without compression")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newDecompileCmd() *cobra.Command {
	var (
		output        string
		compact       bool
		compactFloats bool
	)

	cmd := &cobra.Command{
		Use:   "decompile <input.tlbx>",
		Short: "Decompile binary (.tlbx) to text format (.tl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			r, err := tealeaf.Open(args[0])
			if err != nil {
				return err
			}

			doc, err := r.Document()
			if err != nil {
				return err
			}

			text := doc.Text(tealeaf.TextOptions{
				Compact:       compact,
				CompactFloats: compactFloats,
			})

			return writeOutput(output, []byte(text))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "",
		"output .tl file (stdout if omitted)")
	cmd.Flags().BoolVar(&compact, "compact", false,
		"omit insignificant whitespace for token-efficient output")
	cmd.Flags().BoolVar(&compactFloats, "compact-floats", false,
		"write whole-number floats as integers (42.0 becomes 42)")

	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <input>",
		Short: "Show file info (auto-detects text/binary format)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

func runInfo(input string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	if len(data) >= 4 && string(data[0:4]) == tealeaf.Magic {
		r, err := tealeaf.FromBytes(data)
		if err != nil {
			return err
		}

		fmt.Printf("%s: binary TeaLeaf (%d bytes)\n", input, len(data))

		if r.IsRootArray() {
			fmt.Println("root: array")
		}

		schemas := r.Schemas()

		fmt.Printf("schemas: %d\n", len(schemas))

		for _, s := range schemas {
			fmt.Printf("  %s (%d fields)\n", s.Name, len(s.Fields))
		}

		keys := r.Keys()

		fmt.Printf("sections: %d\n", len(keys))

		for _, k := range keys {
			fmt.Printf("  %s\n", k)
		}

		return nil
	}

	doc, err := tealeaf.Load(input)
	if err != nil {
		return err
	}

	fmt.Printf("%s: TeaLeaf text (%d bytes)\n", input, len(data))

	if doc.IsRootArray() {
		fmt.Println("root: array")
	}

	schemaNames := doc.SchemaNames()

	fmt.Printf("schemas: %d\n", len(schemaNames))

	for _, name := range schemaNames {
		s, _ := doc.Schema(name)
		fmt.Printf("  %s (%d fields)\n", name, len(s.Fields))
	}

	unionNames := doc.UnionNames()
	if len(unionNames) > 0 {
		fmt.Printf("unions: %d\n", len(unionNames))

		for _, name := range unionNames {
			u, _ := doc.Union(name)
			fmt.Printf("  %s (%d variants)\n", name, len(u.Variants))
		}
	}

	keys := doc.Keys()

	fmt.Printf("keys: %d\n", len(keys))

	for _, k := range keys {
		fmt.Printf("  %s\n", k)
	}

	return nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <input.tl>",
		Short: "Validate a text format (.tl) file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := tealeaf.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s: valid (%d keys, %d schemas)\n",
				args[0], doc.Len(), len(doc.SchemaNames()))

			return nil
		},
	}
}

func newToJSONCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tojson <input.tl>",
		Short: "Convert TeaLeaf text (.tl) to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := tealeaf.Load(args[0])
			if err != nil {
				return err
			}

			out, err := doc.JSON(true)
			if err != nil {
				return err
			}

			return writeOutput(output, append([]byte(out), '\n'))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "",
		"output .json file (stdout if omitted)")

	return cmd
}

func newFromJSONCmd() *cobra.Command {
	var (
		output        string
		compact       bool
		compactFloats bool
	)

	cmd := &cobra.Command{
		Use:   "fromjson <input.json>",
		Short: "Convert JSON to TeaLeaf text (.tl) with schema inference",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc, err := tealeaf.FromJSONWithSchemas(string(data))
			if err != nil {
				return err
			}

			text := doc.Text(tealeaf.TextOptions{
				Compact:       compact,
				CompactFloats: compactFloats,
			})

			return writeOutput(output, []byte(text))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "",
		"output .tl file (stdout if omitted)")
	cmd.Flags().BoolVar(&compact, "compact", false,
		"omit insignificant whitespace for token-efficient output")
	cmd.Flags().BoolVar(&compactFloats, "compact-floats", false,
		"write whole-number floats as integers (42.0 becomes 42)")

	return cmd
}

func newTlbxToJSONCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tlbx-to-json <input.tlbx>",
		Short: "Convert TeaLeaf binary (.tlbx) to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			r, err := tealeaf.Open(args[0])
			if err != nil {
				return err
			}

			doc, err := r.Document()
			if err != nil {
				return err
			}

			out, err := doc.JSON(true)
			if err != nil {
				return err
			}

			return writeOutput(output, append([]byte(out), '\n'))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "",
		"output .json file (stdout if omitted)")

	return cmd
}

func newJSONToTlbxCmd() *cobra.Command {
	var (
		output       string
		uncompressed bool
	)

	cmd := &cobra.Command{
		Use:   "json-to-tlbx <input.json>",
		Short: "Convert JSON to TeaLeaf binary (.tlbx)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc, err := tealeaf.FromJSONWithSchemas(string(data))
			if err != nil {
				return err
			}

			return doc.Compile(output, !uncompressed)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output .tlbx file")
	cmd.Flags().BoolVar(&uncompressed, "uncompressed", false,
		"store section payloads without compression")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema <input.tl>",
		Short: "Export a document's schemas and unions as JSON Schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := tealeaf.Load(args[0])
			if err != nil {
				return err
			}

			schema := tlschema.FromDocument(doc)

			out, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}

			return writeOutput(output, append(out, '\n'))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "",
		"output .json file (stdout if omitted)")

	return cmd
}
