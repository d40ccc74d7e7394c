// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package history keeps a persistent record of every trouble code a vehicle
// has reported, so repeated reads only surface codes that are new.
package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/Thermoquad/obdstat/pkg/obd2"
)

const bucketName = "trouble_codes"

// openTimeout bounds the wait for the database file lock
const openTimeout = 1 * time.Second

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("history: store closed")

// Record is the stored state of one trouble code
type Record struct {
	Code      obd2.TroubleCode `cbor:"1,keyasint"`
	FirstSeen time.Time        `cbor:"2,keyasint"`
	LastSeen  time.Time        `cbor:"3,keyasint"`
	Count     uint64           `cbor:"4,keyasint"`
}

// Store is a bbolt-backed trouble code history
type Store struct {
	db  *bolt.DB
	enc cbor.EncMode
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db, enc: enc}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Observe records a read of codes at now. It returns the codes never seen
// before, in the order given. Duplicates within codes count once.
func (s *Store) Observe(codes []obd2.TroubleCode, now time.Time) ([]obd2.TroubleCode, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var fresh []obd2.TroubleCode
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		seen := make(map[obd2.TroubleCode]bool, len(codes))

		for _, code := range codes {
			if seen[code] {
				continue
			}
			seen[code] = true

			key := []byte(code)
			rec := Record{Code: code, FirstSeen: now}
			if data := b.Get(key); data != nil {
				if err := cbor.Unmarshal(data, &rec); err != nil {
					return fmt.Errorf("failed to decode %s: %w", code, err)
				}
			} else {
				fresh = append(fresh, code)
			}
			rec.LastSeen = now
			rec.Count++

			data, err := s.enc.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", code, err)
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// Get returns the record for code
func (s *Store) Get(code obd2.TroubleCode) (Record, bool, error) {
	if s.db == nil {
		return Record{}, false, ErrClosed
	}

	var rec Record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(code))
		if data == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// List returns every record, most recently seen first
func (s *Store) List() ([]Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var rec Record
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastSeen.After(records[j].LastSeen)
	})
	return records, nil
}

// Remove forgets one code
func (s *Store) Remove(code obd2.TroubleCode) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(code))
	})
}

// ClearAll forgets every code, typically after a successful clear
func (s *Store) ClearAll() error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketName)) != nil {
			if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}
