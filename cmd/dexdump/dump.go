// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	dexparser "github.com/saferwall/dex"
)

type dumpConfig struct {
	wantHeader  bool
	wantStrings bool
	wantTypes   bool
	wantClasses bool
	fast        bool
}

func newDumpCmd() *cobra.Command {
	cfg := &dumpConfig{}
	cmd := &cobra.Command{
		Use:   "dump [file or directory]",
		Short: "Dump one or more DEX files",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			run(args[0], cfg)
		},
	}
	cmd.Flags().BoolVar(&cfg.wantHeader, "header", false, "Dump the DEX header")
	cmd.Flags().BoolVar(&cfg.wantStrings, "strings", false, "Dump the string pool")
	cmd.Flags().BoolVar(&cfg.wantTypes, "types", false, "Dump the type pool")
	cmd.Flags().BoolVar(&cfg.wantClasses, "classes", false, "Dump classes, fields and methods")
	cmd.Flags().BoolVar(&cfg.fast, "fast", false, "Skip class definitions, class-data and bytecode attachment")
	return cmd
}

// run walks path (a file or a directory) and dumps every DEX file found,
// fanning directory walks out across a small worker pool, mirroring the
// concurrency shape of a bulk malware-corpus scan.
func run(path string, cfg *dumpConfig) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot stat %s: %v\n", path, err)
		return
	}
	if !info.IsDir() {
		dumpFile(path, cfg)
		return
	}

	var files []string
	filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err == nil && !fi.IsDir() {
			files = append(files, p)
		}
		return nil
	})

	const workers = 4
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				dumpFile(f, cfg)
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
}

func dumpFile(filename string, cfg *dumpConfig) {
	logger := log.NewStdLogger(os.Stdout)
	logger = log.NewFilter(logger, log.FilterLevel(log.LevelInfo))
	helper := log.NewHelper(logger)

	helper.Infof("parsing %s", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		helper.Infof("cannot read %s: %v", filename, err)
		return
	}

	file, err := dexparser.ParseBytes(data, &dexparser.Options{
		Logger: logger,
		Fast:   cfg.fast,
	})
	if err != nil {
		helper.Infof("cannot open %s: %v", filename, err)
		return
	}
	defer file.Close()

	if err := file.Parse(); err != nil {
		helper.Infof("error parsing %s: %v", filename, err)
		return
	}

	if cfg.wantHeader {
		printHeader(file)
	}
	if cfg.wantStrings {
		printStrings(file)
	}
	if cfg.wantTypes {
		printTypes(file)
	}
	if cfg.wantClasses {
		printClasses(file)
	}
	if len(file.Anomalies) > 0 {
		fmt.Printf("\n%d anomalies recorded:\n", len(file.Anomalies))
		for _, a := range file.Anomalies {
			fmt.Printf("  - %s\n", a)
		}
	}
}

func printHeader(file *dexparser.File) {
	h := file.Header
	w := tabwriter.NewWriter(os.Stdout, 1, 1, 3, ' ', tabwriter.AlignRight)
	fmt.Print("\n\t------[ DEX Header ]------\n\n")
	fmt.Fprintf(w, "Version:\t %s\n", h.Version)
	fmt.Fprintf(w, "Checksum:\t 0x%x\n", h.Checksum)
	fmt.Fprintf(w, "File Size:\t 0x%x\n", h.FileSize)
	fmt.Fprintf(w, "String IDs:\t %d @ 0x%x\n", h.StringIDsSize, h.StringIDsOff)
	fmt.Fprintf(w, "Type IDs:\t %d @ 0x%x\n", h.TypeIDsSize, h.TypeIDsOff)
	fmt.Fprintf(w, "Proto IDs:\t %d @ 0x%x\n", h.ProtoIDsSize, h.ProtoIDsOff)
	fmt.Fprintf(w, "Field IDs:\t %d @ 0x%x\n", h.FieldIDsSize, h.FieldIDsOff)
	fmt.Fprintf(w, "Method IDs:\t %d @ 0x%x\n", h.MethodIDsSize, h.MethodIDsOff)
	fmt.Fprintf(w, "Class Defs:\t %d @ 0x%x\n", h.ClassDefsSize, h.ClassDefsOff)
	w.Flush()
}

func printStrings(file *dexparser.File) {
	fmt.Printf("\nSTRINGS (%d)\n************\n", len(file.Strings))
	for _, s := range file.Strings {
		fmt.Printf("  [%d] %q\n", s.OriginalIndex, s.String())
	}
}

func printTypes(file *dexparser.File) {
	fmt.Printf("\nTYPES (%d)\n**********\n", len(file.Types))
	for _, t := range file.Types {
		fmt.Printf("  [%d] %s (%s)\n", t.OriginalIndex, t.Descriptor, t.Kind)
	}
}

func printClasses(file *dexparser.File) {
	fmt.Printf("\nCLASSES (%d)\n************\n", len(file.Classes))
	for _, cls := range file.Classes {
		label := cls.Descriptor
		if cls.External {
			label += " (external)"
		}
		fmt.Printf("\n  %s\n", label)
		if cls.Superclass != nil {
			fmt.Printf("    extends %s\n", cls.Superclass.Descriptor)
		}
		for _, fld := range cls.Fields {
			typeDescriptor := "?"
			if fld.Type != nil {
				typeDescriptor = fld.Type.Descriptor
			}
			fmt.Printf("    field  %s %s\n", typeDescriptor, fld.Name)
		}
		for _, mth := range cls.Methods {
			kind := "virtual"
			if !mth.IsVirtual {
				kind = "direct"
			}
			fmt.Printf("    method %s (%s)\n", mth.Name, kind)
		}
	}
}
