// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// filings_ingest loads parsed filing sections into the corpus stores.
//
// Input is JSON Lines: one section record per line with company, year,
// quarter, section, doc_type, filename, and text fields. Records are
// written to BadgerDB (the structured store the direct and comprehensive
// paths query) and, unless --skip-vector is set, chunked and batch-indexed
// into Weaviate for semantic search.
//
// Usage:
//
//	filings_ingest --input sections.jsonl [--data /path/to/filings/data]
//	    [--weaviate-host localhost:8081] [--skip-vector]
//
// If --data is not given, reads FILINGS_DATA_DIR from the environment,
// falling back to ~/.aleutian/filings/.
//
// Exit codes:
//
//	0 — success
//	1 — error reading input or writing to a store
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/FilingsAgent/services/filings/graphstore"
	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
	"github.com/AleutianAI/FilingsAgent/services/filings/vectorstore"
)

const (
	// chunkSize is the target chunk length in characters for vector
	// indexing. Chunks break on paragraph boundaries where possible.
	chunkSize = 1200

	// batchSize is how many chunk objects go to Weaviate per batch call.
	batchSize = 100
)

// inputRecord is the JSONL wire form of a section record.
type inputRecord struct {
	Company  string `json:"company"`
	Year     int    `json:"year"`
	Quarter  string `json:"quarter"`
	Section  string `json:"section"`
	DocType  string `json:"doc_type"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func main() {
	inputFlag := flag.String("input", "", "Path to JSONL file of section records (required)")
	dataFlag := flag.String("data", "", "Path to filings BadgerDB directory (overrides FILINGS_DATA_DIR env var)")
	weaviateScheme := flag.String("weaviate-scheme", "http", "Weaviate connection scheme")
	weaviateHost := flag.String("weaviate-host", "localhost:8081", "Weaviate host:port")
	skipVector := flag.Bool("skip-vector", false, "Only write BadgerDB, skip Weaviate chunk indexing")
	flag.Parse()

	if *inputFlag == "" {
		fmt.Fprintln(os.Stderr, "filings_ingest: --input is required")
		flag.Usage()
		os.Exit(1)
	}

	dbPath := *dataFlag
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

	logger := slog.Default()
	ctx := context.Background()

	recs, skipped, err := readInput(*inputFlag)
	if err != nil {
		fatalf("read input: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("No valid section records in input. Nothing to do.")
		os.Exit(0)
	}
	fmt.Printf("Read %d section record%s from %s", len(recs), plural(len(recs)), *inputFlag)
	if skipped > 0 {
		fmt.Printf(" (%d line%s skipped)", skipped, plural(skipped))
	}
	fmt.Println()

	graph, err := graphstore.Open(dbPath, logger)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = graph.Close() }()

	start := time.Now()
	if err := graph.PutSections(ctx, recs); err != nil {
		fatalf("write BadgerDB: %v", err)
	}
	fmt.Printf("Stored %d record%s in BadgerDB (%s)\n", len(recs), plural(len(recs)), time.Since(start).Round(time.Millisecond))

	if *skipVector {
		fmt.Println("Skipping Weaviate indexing (--skip-vector)")
		return
	}

	client, err := weaviateClient(*weaviateScheme, *weaviateHost)
	if err != nil {
		fatalf("connect Weaviate at %s: %v", *weaviateHost, err)
	}

	chunks := 0
	start = time.Now()
	batch := make([]*models.Object, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := client.Batch().ObjectsBatcher().WithObjects(batch...).Do(ctx); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, rec := range recs {
		for i, text := range splitChunks(rec.Text) {
			batch = append(batch, &models.Object{
				Class: vectorstore.ClassName,
				Properties: map[string]interface{}{
					"chunkId": chunkID(rec, i),
					"text":    text,
					"company": rec.Company,
					"year":    rec.Year,
					"quarter": rec.Quarter,
					"section": rec.Section,
				},
			})
			chunks++
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					fatalf("index chunks in Weaviate: %v", err)
				}
			}
		}
	}
	if err := flush(); err != nil {
		fatalf("index chunks in Weaviate: %v", err)
	}
	fmt.Printf("Indexed %d chunk%s in Weaviate (%s)\n", chunks, plural(chunks), time.Since(start).Round(time.Millisecond))
}

// readInput parses the JSONL file, validating each line and skipping
// blank ones. A line that is not valid JSON is an error; a record missing
// required fields is skipped with a warning so one bad record does not
// abort a large ingest.
func readInput(path string) ([]plan.SectionRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	var (
		recs    []plan.SectionRecord
		skipped int
		lineNo  int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var in inputRecord
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if in.Company == "" || in.Year == 0 || in.Quarter == "" || in.Section == "" || in.Text == "" {
			fmt.Fprintf(os.Stderr, "filings_ingest: line %d: missing required fields, skipping\n", lineNo)
			skipped++
			continue
		}
		recs = append(recs, plan.SectionRecord{
			Company:  strings.ToUpper(in.Company),
			Year:     in.Year,
			Quarter:  strings.ToUpper(in.Quarter),
			Section:  in.Section,
			DocType:  in.DocType,
			Filename: in.Filename,
			Text:     in.Text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return recs, skipped, nil
}

func weaviateClient(scheme, host string) (*weaviate.Client, error) {
	return weaviate.NewClient(weaviate.Config{Scheme: scheme, Host: host})
}

// splitChunks breaks section text into roughly chunkSize-character pieces,
// preferring paragraph boundaries so chunks stay semantically coherent.
func splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	paras := strings.Split(text, "\n\n")
	var (
		chunks  []string
		current strings.Builder
	)
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > chunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		// A single paragraph longer than chunkSize gets hard-split.
		for len(p) > chunkSize {
			chunks = append(chunks, p[:chunkSize])
			p = p[chunkSize:]
		}
		if p == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// chunkID builds a stable identifier like "bmo-2025-q1-business-0003" so
// re-ingesting the same corpus produces the same IDs.
func chunkID(rec plan.SectionRecord, i int) string {
	slug := func(s string) string {
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, " ", "-")
		s = strings.ReplaceAll(s, "&", "and")
		return s
	}
	return fmt.Sprintf("%s-%d-%s-%s-%04d", slug(rec.Company), rec.Year, slug(rec.Quarter), slug(rec.Section), i)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "filings_ingest: "+format+"\n", args...)
	os.Exit(1)
}
