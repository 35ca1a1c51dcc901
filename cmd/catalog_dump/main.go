// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// catalog_dump inspects the filings corpus store.
//
// The filings service keeps structured section records in BadgerDB under
// the filing/v1/ key prefix. This tool opens the store read-only and
// prints a human-readable summary: the derived entity catalog (companies,
// years, quarters, sections) and per-company record counts. It is the
// quickest way to confirm what the analyzer will be able to ground on.
//
// Usage:
//
//	catalog_dump [--path /path/to/filings/data]
//
// If --path is not given, reads FILINGS_DATA_DIR from the environment,
// falling back to ~/.aleutian/filings/.
//
// Exit codes:
//
//	0 — success (including "empty store" which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"bytes"
	"encoding/gob"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// filingKeyPrefix must match graphstore exactly.
const filingKeyPrefix = "filing/v1/"

func main() {
	pathFlag := flag.String("path", "", "Path to filings BadgerDB directory (overrides FILINGS_DATA_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("FILINGS_DATA_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".aleutian", "filings")
	}

	fmt.Printf("Filings store path: %s\n", dbPath)

	// Check existence before trying to open — gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Store directory does not exist. No corpus has been ingested yet.")
		fmt.Println("Run filings_ingest to load section records.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	var (
		total      int
		byCompany  = map[string]int{}
		years      = map[int]struct{}{}
		quarters   = map[string]struct{}{}
		sections   = map[string]struct{}{}
		decodeErrs int
	)

	err = db.View(func(txn *dgbadger.Txn) error {
		iopts := dgbadger.DefaultIteratorOptions
		iopts.PrefetchValues = true
		it := txn.NewIterator(iopts)
		defer it.Close()

		prefix := []byte(filingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				decodeErrs++
				continue
			}
			var rec plan.SectionRecord
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
				decodeErrs++
				continue
			}
			total++
			byCompany[rec.Company]++
			years[rec.Year] = struct{}{}
			quarters[rec.Quarter] = struct{}{}
			sections[rec.Section] = struct{}{}
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if total == 0 {
		fmt.Println("\nNo filing sections found.")
		fmt.Println("Run filings_ingest to load section records.")
		os.Exit(0)
	}

	fmt.Printf("\nFound %d section record%s\n", total, plural(total, "", "s"))
	fmt.Println(strings.Repeat("─", 60))

	companies := make([]string, 0, len(byCompany))
	for c := range byCompany {
		companies = append(companies, c)
	}
	sort.Strings(companies)

	fmt.Printf("\n%-12s %s\n", "Company", "Sections stored")
	fmt.Printf("%s %s\n", strings.Repeat("─", 12), strings.Repeat("─", 15))
	for _, c := range companies {
		fmt.Printf("%-12s %d\n", c, byCompany[c])
	}

	fmt.Printf("\nYears:    %s\n", joinInts(sortedInts(years)))
	fmt.Printf("Quarters: %s\n", strings.Join(sortedStrings(quarters), ", "))
	fmt.Printf("Sections: %s\n", strings.Join(sortedStrings(sections), ", "))

	if decodeErrs > 0 {
		fmt.Printf("\nWARNING: %d record%s failed to decode\n", decodeErrs, plural(decodeErrs, "", "s"))
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 60))
	fmt.Printf("Summary: %d records, %d companies, store path: %s\n", total, len(companies), dbPath)
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "catalog_dump: "+format+"\n", args...)
	os.Exit(1)
}
