// Package main provides a CLI tool that converts bibliographic exports
// from external sources into normalized publication records. One
// subcommand per source format:
//
//	ingest bibtex   file.bib
//	ingest scopus   file.json
//	ingest openalex file.json
//	ingest wos      file.txt
//	ingest skgif    file.json --graph-url https://graph.example.org
//	ingest scindeks file.xml
//	ingest csv      file.csv
//
// Converted records are written as JSON lines to stdout (or --out).
// Malformed entries are counted and skipped; a bad record never aborts
// the run.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/importer"
	"github.com/sci2zero/cris-exchange/pkg/skgif"
)

var outPath string

func main() {
	log.SetFlags(log.LstdFlags)

	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Convert bibliographic exports into normalized publication records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&outPath, "out", "", "output file (default stdout)")

	root.AddCommand(
		bibtexCmd(),
		scopusCmd(),
		openalexCmd(),
		wosCmd(),
		skgifCmd(),
		scindeksCmd(),
		csvCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
}

// converterFunc converts one already-parsed entry. A nil record with a
// nil error means the entry carries nothing importable.
type converterFunc[T any] func(T) (*domain.NormalizedRecord, error)

func bibtexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bibtex <file>",
		Short: "Convert a BibTeX bibliography",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], importer.ParseBibTeX, importer.ConvertBibEntry)
		},
	}
}

func scopusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scopus <file>",
		Short: "Convert a Scopus search export (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], importer.ParseScopus, importer.ConvertScopusEntry)
		},
	}
}

func openalexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openalex <file>",
		Short: "Convert an OpenAlex works export (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], importer.ParseOpenAlex, importer.ConvertOpenAlexWork)
		},
	}
}

func wosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wos <file>",
		Short: "Convert a Web of Science tagged export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], importer.ParseWOS, importer.ConvertWOSRecord)
		},
	}
}

func skgifCmd() *cobra.Command {
	var graphURL string
	cmd := &cobra.Command{
		Use:   "skgif <file>",
		Short: "Convert an SKG-IF research-product dump, resolving graph references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if graphURL == "" {
				return fmt.Errorf("--graph-url is required to resolve persons and venues")
			}
			converter := importer.NewSKGIFConverter(skgif.NewClient(graphURL))
			ctx := cmd.Context()
			return runFile(args[0], importer.ParseSKGIF, func(p importer.SKGProduct) (*domain.NormalizedRecord, error) {
				return converter.Convert(ctx, p)
			})
		},
	}
	cmd.Flags().StringVar(&graphURL, "graph-url", "", "base URL of the SKG-IF graph API")
	return cmd
}

func scindeksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scindeks <file>",
		Short: "Convert a SCIndeks article export (XML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], importer.ParseScindeks, importer.ConvertScindeksArticle)
		},
	}
}

func csvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "csv <file>",
		Short: "Convert a tabular publication export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], importer.ParseCSV, importer.ConvertCSVRow)
		},
	}
}

func runFile[T any](path string, parse func(io.Reader) ([]T, error), convert converterFunc[T]) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	entries, err := parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		outFile, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer outFile.Close()
		out = outFile
	}

	enc := json.NewEncoder(out)
	converted, skipped, failed := 0, 0, 0
	for i, entry := range entries {
		rec, err := convert(entry)
		if err != nil {
			log.Printf("entry %d: %v", i+1, err)
			failed++
			continue
		}
		if rec == nil {
			skipped++
			continue
		}
		if !rec.Valid() {
			log.Printf("entry %d: incomplete record, skipping", i+1)
			failed++
			continue
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		converted++
	}

	log.Printf("Done: %d converted, %d skipped, %d failed of %d entries",
		converted, skipped, failed, len(entries))
	return nil
}
