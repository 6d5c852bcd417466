// splicecheck applies the mechanoid patch catalog to the reference host
// program and reports what each descriptor did.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/pboyd/splice"
	"github.com/pboyd/splice/colorsync"
	"github.com/pboyd/splice/mechanoids"
)

func main() {
	configPath := flag.String("config", "splice.toml", "TOML configuration file")
	hostVersion := flag.String("host-version", "", "Host version, overrides the configuration")
	verbose := flag.Int("v", -1, "Log verbosity, overrides the configuration")
	strict := flag.Bool("strict", false, "Panic on defective descriptors")
	failOnSkip := flag.Bool("fail-on-skip", false, "Exit with status 1 if any descriptor was skipped")
	colorState := flag.String("color-state", "", "Color sync state to load and report")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: splicecheck [options]\n\n")
		fmt.Fprintf(os.Stderr, "Applies the patch catalog to the reference host and prints the outcome of every descriptor.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := splice.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *hostVersion != "" {
		cfg.HostVersion = *hostVersion
	}
	if cfg.HostVersion == "" {
		cfg.HostVersion = mechanoids.ReferenceVersion
	}
	if *verbose >= 0 {
		cfg.LogVerbosity = *verbose
	}
	if *strict {
		cfg.Strict = true
	}

	commonlog.Configure(cfg.LogVerbosity, nil)

	catalog, err := mechanoids.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building catalog: %v\n", err)
		os.Exit(1)
	}

	host := mechanoids.ReferenceHost()
	driver := splice.NewDriver(splice.NewResolver(host), host)
	if err := driver.Configure(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outcomes := driver.Apply(catalog)
	fmt.Println(report(outcomes))

	if *colorState != "" {
		if err := printColorState(*colorState); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *failOnSkip {
		for _, o := range outcomes {
			if !o.Applied() && o.Reason != splice.Disabled {
				os.Exit(1)
			}
		}
	}
}

func report(outcomes []splice.Outcome) string {
	t := table.NewWriter()
	t.SetTitle("Patch outcomes")
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Descriptor", "Target", "State", "Reason", "Inserted", "Note"})

	applied := 0
	for _, o := range outcomes {
		reason, note := "", ""
		if !o.Applied() {
			reason = o.Reason.String()
			if o.Err != nil {
				note = o.Err.Error()
			}
		} else {
			applied++
		}
		if o.OutsideKnownVersions {
			note = "outside known-good host versions"
		}
		t.AppendRow(table.Row{o.Descriptor, o.Target.String(), o.State.String(), reason, o.Inserted, note})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d applied", applied, len(outcomes))})
	return t.Render()
}

func printColorState(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	state := colorsync.New(nil)
	if err := state.Load(f); err != nil {
		return err
	}
	fmt.Printf("color sync enabled: %v, building color: %s\n", state.Enabled(), state.BuildingColor().Hex())
	return nil
}
