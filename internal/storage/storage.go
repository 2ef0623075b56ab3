// Package storage provides persistent storage for labeled spectra.
// It uses BoltDB as the underlying storage engine. Spectra keep the order
// they were imported in, so a store can stand in for a dataset file.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	spectraBucket = "spectra" // sequence key -> SpectrumRecord
	namesBucket   = "names"   // instance name -> sequence key
)

// ErrNotFound is returned when no spectrum is stored under a name.
var ErrNotFound = errors.New("storage: spectrum not found")

// SpectrumRecord is one stored measurement.
type SpectrumRecord struct {
	Name     string    `json:"name"`
	Spectrum []float64 `json:"spectrum"`
	StoredAt time.Time `json:"stored_at"`
}

// Store provides persistent storage for spectra using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the database file at dbPath and makes sure the
// buckets exist.
func New(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(spectraBucket)); err != nil {
			return fmt.Errorf("create spectra bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(namesBucket)); err != nil {
			return fmt.Errorf("create names bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// StoreSpectrum stores one spectrum. A name that is already stored is
// replaced in place and keeps its position.
func (s *Store) StoreSpectrum(rec SpectrumRecord) error {
	return s.StoreSpectra([]SpectrumRecord{rec})
}

// StoreSpectra stores spectra in order within a single transaction.
func (s *Store) StoreSpectra(recs []SpectrumRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		spectra := tx.Bucket([]byte(spectraBucket))
		names := tx.Bucket([]byte(namesBucket))

		for _, rec := range recs {
			if rec.StoredAt.IsZero() {
				rec.StoredAt = time.Now().UTC()
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal spectrum %q: %w", rec.Name, err)
			}

			key := names.Get([]byte(rec.Name))
			if key == nil {
				seq, err := spectra.NextSequence()
				if err != nil {
					return fmt.Errorf("next sequence: %w", err)
				}
				key = seqKey(seq)
				if err := names.Put([]byte(rec.Name), key); err != nil {
					return fmt.Errorf("index spectrum %q: %w", rec.Name, err)
				}
			}
			if err := spectra.Put(key, data); err != nil {
				return fmt.Errorf("store spectrum %q: %w", rec.Name, err)
			}
		}
		return nil
	})
}

// GetSpectrum retrieves a spectrum by instance name.
func (s *Store) GetSpectrum(name string) (SpectrumRecord, error) {
	var rec SpectrumRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(namesBucket)).Get([]byte(name))
		if key == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		data := tx.Bucket([]byte(spectraBucket)).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// GetSpectra returns every stored spectrum in import order.
func (s *Store) GetSpectra() ([]SpectrumRecord, error) {
	var recs []SpectrumRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(spectraBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec SpectrumRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal spectrum at %d: %w", binary.BigEndian.Uint64(k), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})

	return recs, err
}

// Count returns the number of stored spectra.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(spectraBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// seqKey encodes a sequence number so byte order matches numeric order.
func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
