// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hrstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Key prefixes. Ratings and eNPS responses are keyed under their employee so
// a single prefix scan retrieves one employee's history.
const (
	prefixEmployee = "emp:"
	prefixRating   = "rating:"
	prefixEnps     = "enps:"
	prefixSummary  = "summary:"
	prefixAudit    = "audit:"
	keyProfile     = "profile"
)

// Store is the typed facade over BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB provides snapshot isolation per
// transaction.
type Store struct {
	db *badger.DB
	gc *gcRunner
}

// Open opens (or creates) the store per cfg.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if cfg.GCInterval > 0 {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

// OpenInMemory opens a throwaway store for tests.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// =============================================================================
// Generic helpers
// =============================================================================

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	return s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// scanJSON prefix-scans and decodes every value under prefix into fresh T
// instances via decode.
func scanJSON(ctx context.Context, s *Store, prefix string, decode func(val []byte) error) error {
	return s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				return decode(val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Employees
// =============================================================================

// PutEmployee inserts or replaces an employee record.
func (s *Store) PutEmployee(ctx context.Context, e *datatypes.Employee) error {
	if e.ID == "" {
		return errors.New("employee ID is required")
	}
	return s.putJSON(ctx, prefixEmployee+e.ID, e)
}

// GetEmployee returns one employee by ID, or ErrNotFound.
func (s *Store) GetEmployee(ctx context.Context, id string) (*datatypes.Employee, error) {
	var e datatypes.Employee
	if err := s.getJSON(ctx, prefixEmployee+id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns every employee record, unordered.
func (s *Store) ListEmployees(ctx context.Context) ([]datatypes.Employee, error) {
	var out []datatypes.Employee
	err := scanJSON(ctx, s, prefixEmployee, func(val []byte) error {
		var e datatypes.Employee
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteEmployee removes an employee record. Ratings and eNPS history are
// intentionally retained; aggregates exclude orphaned history by joining on
// current employee records.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixEmployee + id))
	})
}

// =============================================================================
// Performance Ratings
// =============================================================================

// PutRating inserts or replaces one rating.
func (s *Store) PutRating(ctx context.Context, r *datatypes.PerformanceRating) error {
	if r.ID == "" || r.EmployeeID == "" {
		return errors.New("rating ID and employee ID are required")
	}
	return s.putJSON(ctx, prefixRating+r.EmployeeID+":"+r.ID, r)
}

// ListRatingsForEmployee returns one employee's ratings, most recent first.
func (s *Store) ListRatingsForEmployee(ctx context.Context, employeeID string) ([]datatypes.PerformanceRating, error) {
	var out []datatypes.PerformanceRating
	err := scanJSON(ctx, s, prefixRating+employeeID+":", func(val []byte) error {
		var r datatypes.PerformanceRating
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListAllRatings returns every rating in the store, unordered.
func (s *Store) ListAllRatings(ctx context.Context) ([]datatypes.PerformanceRating, error) {
	var out []datatypes.PerformanceRating
	err := scanJSON(ctx, s, prefixRating, func(val []byte) error {
		var r datatypes.PerformanceRating
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// eNPS Responses
// =============================================================================

// PutEnpsResponse inserts or replaces one survey response.
func (s *Store) PutEnpsResponse(ctx context.Context, r *datatypes.EnpsResponse) error {
	if r.ID == "" || r.EmployeeID == "" {
		return errors.New("response ID and employee ID are required")
	}
	return s.putJSON(ctx, prefixEnps+r.EmployeeID+":"+r.ID, r)
}

// ListEnpsForEmployee returns one employee's survey history, most recent first.
func (s *Store) ListEnpsForEmployee(ctx context.Context, employeeID string) ([]datatypes.EnpsResponse, error) {
	var out []datatypes.EnpsResponse
	err := scanJSON(ctx, s, prefixEnps+employeeID+":", func(val []byte) error {
		var r datatypes.EnpsResponse
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SurveyDate.After(out[j].SurveyDate) })
	return out, nil
}

// ListAllEnps returns every survey response, unordered.
func (s *Store) ListAllEnps(ctx context.Context) ([]datatypes.EnpsResponse, error) {
	var out []datatypes.EnpsResponse
	err := scanJSON(ctx, s, prefixEnps, func(val []byte) error {
		var r datatypes.EnpsResponse
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Conversation Summaries (memory)
// =============================================================================

// PutSummary inserts or replaces a conversation summary. Written by the
// summary generator; the pipeline only reads.
func (s *Store) PutSummary(ctx context.Context, sum *datatypes.ConversationSummary) error {
	if sum.ID == "" {
		return errors.New("summary ID is required")
	}
	return s.putJSON(ctx, prefixSummary+sum.ID, sum)
}

// ListSummaries returns all stored conversation summaries, most recent first.
func (s *Store) ListSummaries(ctx context.Context) ([]datatypes.ConversationSummary, error) {
	var out []datatypes.ConversationSummary
	err := scanJSON(ctx, s, prefixSummary, func(val []byte) error {
		var sum datatypes.ConversationSummary
		if err := json.Unmarshal(val, &sum); err != nil {
			return err
		}
		out = append(out, sum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteSummariesForConversation removes all summaries of one conversation,
// used when the user deletes a conversation.
func (s *Store) DeleteSummariesForConversation(ctx context.Context, conversationID string) error {
	summaries, err := s.ListSummaries(ctx)
	if err != nil {
		return err
	}
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		for _, sum := range summaries {
			if sum.ConversationID != conversationID {
				continue
			}
			if err := txn.Delete([]byte(prefixSummary + sum.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Company Profile
// =============================================================================

// PutProfile stores the single company profile.
func (s *Store) PutProfile(ctx context.Context, p *datatypes.CompanyProfile) error {
	return s.putJSON(ctx, keyProfile, p)
}

// GetProfile returns the company profile, or ErrNotFound when onboarding has
// not stored one yet.
func (s *Store) GetProfile(ctx context.Context) (*datatypes.CompanyProfile, error) {
	var p datatypes.CompanyProfile
	if err := s.getJSON(ctx, keyProfile, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// Audit Entries
// =============================================================================

// PutAuditEntry persists one audit row. Keys embed the RFC3339 timestamp so
// a prefix scan returns entries in time order.
func (s *Store) PutAuditEntry(ctx context.Context, e *datatypes.AuditEntry) error {
	if e.ID == "" {
		return errors.New("audit entry ID is required")
	}
	key := prefixAudit + e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000") + ":" + e.ID
	return s.putJSON(ctx, key, e)
}

// ListAuditEntries returns up to limit audit rows, most recent first.
// limit <= 0 returns everything.
func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]datatypes.AuditEntry, error) {
	var out []datatypes.AuditEntry
	err := scanJSON(ctx, s, prefixAudit, func(val []byte) error {
		var e datatypes.AuditEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys scan in ascending time order; callers want newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeAuditEntriesBefore deletes audit rows older than cutoff and returns
// how many were removed. The time-ordered keys make this a bounded prefix
// scan that stops at the cutoff.
func (s *Store) PurgeAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	boundary := prefixAudit + cutoff.UTC().Format("2006-01-02T15:04:05.000000000")
	var keys [][]byte
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAudit)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= boundary {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// PurgeSummariesBefore deletes conversation summaries created before cutoff
// and returns how many were removed.
func (s *Store) PurgeSummariesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	summaries, err := s.ListSummaries(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		for _, sum := range summaries {
			if !sum.CreatedAt.Before(cutoff) {
				continue
			}
			if err := txn.Delete([]byte(prefixSummary + sum.ID)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// =============================================================================
// Search helpers
// =============================================================================

// SearchEmployeesByName returns employees whose full name, last name, role,
// or department contains q (case-insensitive). Used by the admin API; the
// retriever does its own ranked mention matching.
func (s *Store) SearchEmployeesByName(ctx context.Context, q string) ([]datatypes.Employee, error) {
	all, err := s.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(q)
	var out []datatypes.Employee
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.FullName()), q) ||
			strings.Contains(strings.ToLower(e.Role), q) ||
			strings.Contains(strings.ToLower(e.Department), q) {
			out = append(out, e)
		}
	}
	return out, nil
}
