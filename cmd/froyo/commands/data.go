package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/hostdata/pkg/data"
	"github.com/openfroyo/hostdata/pkg/ffi"
	"github.com/openfroyo/hostdata/pkg/ffi/starlarkdata"
	"github.com/openfroyo/hostdata/pkg/ffi/wasmhost"
)

func newDataCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Read documents through the data boundary",
		Long: `Open a document and query it with JSON Pointers.

Every subcommand goes through the same handle-based calls exposed to
WASM guests, Starlark scripts and C callers, so its output shows exactly
what those callers would see.`,
	}

	cmd.AddCommand(newDataTypeCommand(a))
	cmd.AddCommand(newDataKeysCommand(a))
	cmd.AddCommand(newDataGetCommand(a))
	cmd.AddCommand(newDataTreeCommand(a))
	cmd.AddCommand(newDataEvalCommand(a))
	cmd.AddCommand(newDataWasmCommand(a))
	cmd.AddCommand(newDataWatchCommand(a))

	return cmd
}

// open returns a handle for file and a func that frees it.
func (a *app) open(file string) (ffi.Handle, func(), error) {
	h := a.bridge.Open(a.ctx, file)
	if h == ffi.NullHandle {
		return ffi.NullHandle, nil, ffi.LastError()
	}
	return h, func() { a.bridge.FreeValue(h) }, nil
}

// pointerArg treats a missing argument as the absent pointer.
func pointerArg(args []string, i int) data.Pointer {
	if len(args) > i {
		return data.At(args[i])
	}
	return data.Whole
}

func newDataTypeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "type <file> [pointer]",
		Short: "Print the type of a value",
		Example: `  froyo data type config.json /server/port
  froyo data type values.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, done, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer done()

			tag, ok := a.bridge.GetValueType(&h, pointerArg(args, 1))
			if !ok {
				return ffi.LastError()
			}
			fmt.Fprintln(cmd.OutOrStdout(), tag)
			return nil
		},
	}
}

func newDataKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <file> [pointer]",
		Short: "List the keys of an object in sorted order",
		Long: `List the keys of an object in sorted order.

Prints nothing when the value is not an object or has no keys.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, done, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer done()

			keys := a.bridge.GetValueKeys(&h, pointerArg(args, 1))
			if jsonOutput {
				if keys == nil {
					keys = []string{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newDataGetCommand(a *app) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "get <file> [pointer] --type <tag>",
		Short: "Read a value as an expected type",
		Long: `Read a value as an expected type.

The read fails unless the value has exactly the requested type. Arrays and
objects are printed as trees.`,
		Example: `  froyo data get config.json /server/port --type uint
  froyo data get config.json /server --type object`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := data.ParseKind(typeName)
			if err != nil {
				return err
			}

			h, done, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer done()

			payload, ok := a.bridge.GetValue(&h, tag, pointerArg(args, 1))
			if !ok {
				return ffi.LastError()
			}

			out := cmd.OutOrStdout()
			printer := newTreePrinter(a.bridge, out)
			switch payload.Tag {
			case ffi.TagArray:
				defer printer.free(payload.Items)
				for _, item := range payload.Items {
					if err := printer.print(item, data.Whole); err != nil {
						return err
					}
				}
				return nil
			case ffi.TagObject:
				if payload.Object != h {
					defer a.bridge.FreeValue(payload.Object)
				}
				return printer.print(payload.Object, data.Whole)
			}

			if jsonOutput {
				return json.NewEncoder(out).Encode(scalarValue(payload))
			}
			fmt.Fprintln(out, scalarValue(payload))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "expected type (null, bool, int, uint, float, string, array, object)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func scalarValue(p *ffi.Payload) interface{} {
	switch p.Tag {
	case ffi.TagBool:
		return p.Bool
	case ffi.TagInt:
		return p.Int
	case ffi.TagUint:
		return p.Uint
	case ffi.TagFloat:
		return p.Float
	case ffi.TagString:
		return p.Text
	default:
		return nil
	}
}

func newDataTreeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file> [pointer]",
		Short: "Print a document as a typed tree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, done, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer done()

			return newTreePrinter(a.bridge, cmd.OutOrStdout()).print(h, pointerArg(args, 1))
		},
	}
}

func newDataEvalCommand(a *app) *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "eval <script.star>",
		Short: "Run a Starlark script against the data module",
		Long: `Run a Starlark script with the data module predeclared.

With --doc the document is opened first and its handle bound to the global
"doc". The script's public globals are printed as YAML.`,
		Example: `  froyo data eval check.star --doc config.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}

			input := map[string]interface{}{}
			if docPath != "" {
				h, done, err := a.open(docPath)
				if err != nil {
					return err
				}
				defer done()
				input["doc"] = h
			}

			evaluator := starlarkdata.NewEvaluator(a.bridge, a.cfg.Script.Timeout, a.tel.Logger)
			result, err := evaluator.Evaluate(a.ctx, filepath.Base(args[0]), string(script), input)
			if err != nil {
				return err
			}
			delete(result.Output, "doc")

			log.Debug().
				Dur("duration", result.ExecutionTime).
				Int("globals", len(result.Output)).
				Msg("Script finished")

			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result.Output)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(result.Output)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "document to open and bind as doc")

	return cmd
}

func newDataWasmCommand(a *app) *cobra.Command {
	var (
		call    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wasm <guest.wasm>",
		Short: "Run a WASM guest linked against the hostdata module",
		Long: `Instantiate a WASM guest with WASI and the hostdata host module.

A WASI command runs its _start function on instantiation. Use --call to
invoke another exported function afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read module: %w", err)
			}

			rt, err := wasmhost.NewRuntime(a.ctx, a.bridge, &wasmhost.RuntimeConfig{
				Timeout: timeout,
				Logger:  a.tel.Logger,
			})
			if err != nil {
				return err
			}
			defer rt.Close(a.ctx)

			guest, err := rt.Instantiate(a.ctx, filepath.Base(args[0]), wasm)
			if err != nil {
				return err
			}

			if call != "" {
				results, err := guest.Call(a.ctx, call)
				if err != nil {
					return err
				}
				for _, r := range results {
					fmt.Fprintln(cmd.OutOrStdout(), r)
				}
			}

			if n := a.bridge.Len(); n > 0 {
				log.Warn().Int("handles", n).Msg("Guest exited with live handles")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&call, "call", "", "exported function to call after instantiation")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for the --call function")

	return cmd
}

func newDataWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file> [pointer]",
		Short: "Reprint a document tree whenever the file changes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ptr := pointerArg(args, 1)
			printer := newTreePrinter(a.bridge, cmd.OutOrStdout())

			render := func() {
				h, done, err := a.open(file)
				if err != nil {
					log.Error().Err(err).Str("file", file).Msg("Failed to open document")
					return
				}
				defer done()
				if err := printer.print(h, ptr); err != nil {
					log.Error().Err(err).Str("file", file).Msg("Failed to read document")
				}
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			// Editors often replace files, so watch the directory.
			if err := watcher.Add(filepath.Dir(file)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", file, err)
			}

			render()
			log.Info().Str("file", file).Msg("Watching document")

			const reloadDelay = 200 * time.Millisecond
			changed := make(chan struct{}, 1)
			var reloadTimer *time.Timer

			for {
				select {
				case <-a.ctx.Done():
					if reloadTimer != nil {
						reloadTimer.Stop()
					}
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Name != file || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					log.Debug().Str("op", event.Op.String()).Msg("Document changed")

					if reloadTimer != nil {
						reloadTimer.Stop()
					}
					reloadTimer = time.AfterFunc(reloadDelay, func() {
						select {
						case changed <- struct{}{}:
						default:
						}
					})

				case <-changed:
					fmt.Fprintln(cmd.OutOrStdout(), "---")
					render()

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Error().Err(err).Msg("Watcher error")
				}
			}
		},
	}
}
