package creds

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"plantaria/internal/errs"
)

var bucketCredentials = []byte("credentials")

// BboltStore persists the credential pair in a local bbolt file, standing in
// for the platform's secure storage.
type BboltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStore(path string) (*BboltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredentials)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BboltStore{db: db, now: time.Now}, nil
}

func (s *BboltStore) Close() error {
	return s.db.Close()
}

func (s *BboltStore) Get() (Credential, error) {
	var cred Credential
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		dbCred := &DBCredential{}
		data := b.Get(dbCred.Key())
		if data == nil {
			return errs.ErrNotFound
		}
		if err := dbCred.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("failed to unmarshal credential: %w", err)
		}
		cred = Credential{
			AccessToken:  dbCred.AccessToken,
			RefreshToken: dbCred.RefreshToken,
		}
		return nil
	})
	if err != nil {
		return Credential{}, err
	}
	if !cred.Valid() {
		return Credential{}, errs.ErrNotFound
	}
	return cred, nil
}

func (s *BboltStore) Set(c Credential) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		dbCred := &DBCredential{
			AccessToken:  c.AccessToken,
			RefreshToken: c.RefreshToken,
			UpdatedAt:    s.now().Unix(),
		}
		data, err := dbCred.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
		return b.Put(dbCred.Key(), data)
	})
}

func (s *BboltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		dbCred := &DBCredential{}
		return b.Delete(dbCred.Key())
	})
}
