// Command tipgen prints safety tips for a driving report read from the
// arguments or stdin.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"drivesafe/safetytips"
)

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("tipgen: %v", err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("tipgen", flag.ContinueOnError)
	maxTips := fs.Int("max", safetytips.DefaultMaxTips, "maximum number of tips")
	daily := fs.Bool("daily", false, "print a tip of the day instead")
	alert := fs.String("alert", "", "print the driver alert for a kind (speeding, sharp_turn, ...)")
	catalog := fs.String("catalog", os.Getenv("TIPS_CATALOG_PATH"), "optional YAML/JSON catalog override")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *maxTips < 0 {
		return fmt.Errorf("-max must be >= 0, got %d", *maxTips)
	}

	gen := safetytips.Default()
	if *catalog != "" {
		c, err := safetytips.LoadCatalog(*catalog)
		if err != nil {
			return err
		}
		if gen, err = safetytips.New(c); err != nil {
			return err
		}
	}

	switch {
	case *alert != "":
		_, err := fmt.Fprintln(stdout, safetytips.AlertMessage(*alert))
		return err
	case *daily:
		_, err := fmt.Fprintln(stdout, gen.TipOfTheDay(nil))
		return err
	}

	report := strings.Join(fs.Args(), " ")
	if report == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		report = string(data)
	}
	_, err := io.WriteString(stdout, safetytips.FormatTips(gen.GenerateTips(report, *maxTips)))
	return err
}
