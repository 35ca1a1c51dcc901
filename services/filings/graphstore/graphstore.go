// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphstore implements the structured evidence store on embedded
// BadgerDB. Filing sections are addressed by a composite key
//
//	filing/v1/{COMPANY}/{year}/{quarter}/{SECTION}
//
// with gob-encoded SectionRecord values. Keys sort lexicographically, so a
// plain prefix iteration yields a stable natural order (company, then year,
// quarter, section) without any post-sort, which is what gives equal
// queries equal result order.
package graphstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
	"github.com/AleutianAI/FilingsAgent/services/filings/retrieve"
)

// keyPrefix versions the key space so a future record-shape change can
// migrate by writing a v2 prefix alongside v1.
const keyPrefix = "filing/v1/"

// Store is the BadgerDB-backed structured store.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the store at path. An empty path opens an
// in-memory store, used by tests and throwaway environments.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("graphstore: opening badger at %q: %w", path, err)
	}
	logger.Info("graph store opened",
		slog.String("path", path),
		slog.Bool("in_memory", path == ""),
	)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sectionKey builds the composite key for one record.
func sectionKey(rec plan.SectionRecord) []byte {
	return []byte(fmt.Sprintf("%s%s/%04d/%s/%s",
		keyPrefix, rec.Company, rec.Year, rec.Quarter, rec.Section))
}

// PutSections writes a batch of filing sections in one transaction.
// Writing the same key twice overwrites; ingestion is idempotent.
func (s *Store) PutSections(ctx context.Context, recs []plan.SectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
				return fmt.Errorf("graphstore: encoding %s/%d/%s/%s: %w",
					rec.Company, rec.Year, rec.Quarter, rec.Section, err)
			}
			if err := txn.Set(sectionKey(rec), buf.Bytes()); err != nil {
				return fmt.Errorf("graphstore: writing section: %w", err)
			}
		}
		return nil
	})
}

// Query returns every stored section matching the filter, in key order.
//
// # Description
//
//	A single ascending prefix scan with in-loop filtering. Empty filter
//	fields match everything. Filter values are expected in canonical form
//	(catalog company tickers, "Q1".."Q4" quarters, canonical section
//	names); out-of-catalog values simply match nothing.
func (s *Store) Query(ctx context.Context, f retrieve.Filter) ([]plan.SectionRecord, error) {
	var out []plan.SectionRecord
	err := s.scan(ctx, func(rec plan.SectionRecord) {
		if matches(rec, f) {
			out = append(out, rec)
		}
	})
	return out, err
}

// MostRecent returns the n newest sections matching the filter, ordered
// year descending, quarter descending, then company and section ascending
// for records from the same period.
func (s *Store) MostRecent(ctx context.Context, f retrieve.Filter, n int) ([]plan.SectionRecord, error) {
	matched, err := s.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Quarter != b.Quarter {
			return a.Quarter > b.Quarter
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		return a.Section < b.Section
	})
	if n > 0 && len(matched) > n {
		matched = matched[:n]
	}
	return matched, nil
}

// Snapshot derives the entity catalog from the stored corpus: the distinct
// companies, years, quarters, and section names currently present.
func (s *Store) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	companies := map[string]struct{}{}
	years := map[int]struct{}{}
	quarters := map[string]struct{}{}
	sections := map[string]struct{}{}

	err := s.scan(ctx, func(rec plan.SectionRecord) {
		companies[rec.Company] = struct{}{}
		years[rec.Year] = struct{}{}
		quarters[rec.Quarter] = struct{}{}
		sections[rec.Section] = struct{}{}
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}

	snap := catalog.Snapshot{}
	for c := range companies {
		snap.Companies = append(snap.Companies, c)
	}
	for y := range years {
		snap.Years = append(snap.Years, y)
	}
	for q := range quarters {
		snap.Quarters = append(snap.Quarters, q)
	}
	for sec := range sections {
		snap.Sections = append(snap.Sections, sec)
	}
	s.logger.Debug("catalog snapshot derived",
		slog.Int("companies", len(snap.Companies)),
		slog.Int("years", len(snap.Years)),
		slog.Int("sections", len(snap.Sections)),
	)
	return snap, nil
}

// scan iterates every record under the key prefix in ascending key order.
func (s *Store) scan(ctx context.Context, visit func(plan.SectionRecord)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var rec plan.SectionRecord
				if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&rec); err != nil {
					return fmt.Errorf("graphstore: decoding %s: %w", it.Item().Key(), err)
				}
				visit(rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// matches applies the empty-means-unrestricted filter semantics.
func matches(rec plan.SectionRecord, f retrieve.Filter) bool {
	if len(f.Companies) > 0 && !containsFold(f.Companies, rec.Company) {
		return false
	}
	if len(f.Years) > 0 {
		found := false
		for _, y := range f.Years {
			if y == rec.Year {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Quarters) > 0 && !containsFold(f.Quarters, rec.Quarter) {
		return false
	}
	if len(f.Sections) > 0 && !containsFold(f.Sections, rec.Section) {
		return false
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
