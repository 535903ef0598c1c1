// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ctfir "github.com/saferwall/ctfir"
	"github.com/spf13/cobra"
)

var (
	all          bool
	verbose      bool
	wantHeader   bool
	wantContext  bool
	wantEvents   bool
	wantSchema   bool
	maxEvents    int
)

func prettyPrint(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unmarshalable: %v>", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return pretty.String()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// fieldValueToJSON flattens a FieldValue into a plain interface{} tree for
// pretty-printing, since FieldValue carries unexported state and has no
// direct JSON marshaling of its own.
func fieldValueToJSON(fv *ctfir.FieldValue) interface{} {
	if fv == nil {
		return nil
	}
	switch fv.Kind() {
	case ctfir.KindFCInteger:
		if u, err := fv.Unsigned(); err == nil {
			return u
		}
		v, _ := fv.Signed()
		return v
	case ctfir.KindFCEnumeration:
		labels, _ := fv.Labels()
		v, _ := fv.Signed()
		return map[string]interface{}{"value": v, "labels": labels}
	case ctfir.KindFCFloat:
		v, _ := fv.Float()
		return v
	case ctfir.KindFCString:
		return fv.String()
	case ctfir.KindFCStruct:
		out := make(map[string]interface{})
		for i := 0; i < fv.FieldClass().FieldCount(); i++ {
			name, _, _ := fv.FieldClass().FieldByIndex(i)
			child, err := fv.GetFieldByIndex(i)
			if err != nil {
				continue
			}
			out[name] = fieldValueToJSON(child)
		}
		return out
	case ctfir.KindFCArray, ctfir.KindFCSequence:
		n, _ := fv.Length()
		out := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			child, err := fv.GetElementByIndex(int(i))
			if err != nil {
				break
			}
			out = append(out, fieldValueToJSON(child))
		}
		return out
	case ctfir.KindFCVariant, ctfir.KindFCUntaggedVariant:
		child, err := fv.SelectedField()
		if err != nil {
			return nil
		}
		return fieldValueToJSON(child)
	default:
		return nil
	}
}

func dumpSchema(trace *ctfir.Trace) {
	type summary struct {
		Name    string `json:"name"`
		Streams int    `json:"stream_classes"`
		Clocks  int    `json:"clock_classes"`
	}
	fmt.Println(prettyPrint(summary{
		Name:    trace.Name(),
		Streams: trace.StreamClassCount(),
		Clocks:  trace.ClockClassCount(),
	}))
}

func dumpTrace(schemaPath, dataPath string, cfg config) error {
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("reading schema %s: %w", schemaPath, err)
	}
	trace, err := ctfir.BuildFromJSON(schema)
	if err != nil {
		return fmt.Errorf("building trace from schema %s: %w", schemaPath, err)
	}

	if cfg.wantSchema {
		dumpSchema(trace)
	}

	medium, err := ctfir.NewMmapMedium(dataPath)
	if err != nil {
		return fmt.Errorf("mapping %s: %w", dataPath, err)
	}
	defer medium.Close()

	reader := ctfir.NewBinaryFilePacketReader(trace, medium, &ctfir.BTRCallbacks{})

	if err := reader.GetHeader(); err != nil {
		return fmt.Errorf("decoding packet header: %w", err)
	}
	if cfg.wantHeader {
		fmt.Println(prettyPrint(fieldValueToJSON(reader.PacketHeader())))
	}
	if cfg.wantContext {
		fmt.Println(prettyPrint(fieldValueToJSON(reader.PacketContext())))
	}

	events := 0
	for cfg.wantEvents && (cfg.maxEvents <= 0 || events < cfg.maxEvents) {
		if err := reader.GetContext(); err != nil {
			break
		}
		payload, err := reader.GetNextEvent()
		if err != nil {
			break
		}
		fmt.Println(prettyPrint(fieldValueToJSON(payload)))
		events++
	}

	return nil
}

type config struct {
	wantHeader  bool
	wantContext bool
	wantEvents  bool
	wantSchema  bool
	maxEvents   int
}

func parse(cmd *cobra.Command, args []string) {
	schemaPath := args[0]
	dataPath := args[1]

	cfg := config{
		wantHeader:  wantHeader || all,
		wantContext: wantContext || all,
		wantEvents:  wantEvents || all,
		wantSchema:  wantSchema || all,
		maxEvents:   maxEvents,
	}

	if isDirectory(dataPath) {
		err := filepath.Walk(dataPath, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if derr := dumpTrace(schemaPath, path, cfg); derr != nil {
				fmt.Fprintln(os.Stderr, derr)
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := dumpTrace(schemaPath, dataPath, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "ctfdump",
		Short: "A CTF trace reader",
		Long:  "Decodes Common Trace Format binary streams against a JSON-described schema",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.1.0")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump <schema.json> <trace-packet-file>",
		Short: "Dumps decoded packets and events from a trace",
		Args:  cobra.ExactArgs(2),
		Run:   parse,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().BoolVarP(&wantHeader, "header", "", false, "Dump packet header")
	dumpCmd.Flags().BoolVarP(&wantContext, "context", "", false, "Dump packet context")
	dumpCmd.Flags().BoolVarP(&wantEvents, "events", "", false, "Dump decoded events")
	dumpCmd.Flags().BoolVarP(&wantSchema, "schema", "", false, "Dump a summary of the trace schema")
	dumpCmd.Flags().IntVarP(&maxEvents, "max-events", "", 0, "Maximum number of events to dump (0 = unlimited)")
	dumpCmd.Flags().BoolVarP(&all, "all", "", false, "Dump everything")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
