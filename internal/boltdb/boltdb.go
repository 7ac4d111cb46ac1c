// Package boltdb persists session download records in a bbolt key/value file.
package boltdb

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/bulk-downloader/internal/session"
)

var Buckets = struct {
	Metadata  []byte
	Downloads []byte
}{
	Metadata:  []byte("__metadata__"),
	Downloads: []byte("downloads"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type Database interface {
	Close() error

	session.Database
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Downloads); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &database{db}, nil
}

func (d database) ListDownloads() (downloads []session.DownloadRecord, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Downloads)
		return bucket.ForEach(func(k, v []byte) error {
			var record session.DownloadRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("invalid record %q: %w", k, err)
			} else {
				downloads = append(downloads, record)
				return nil
			}
		})
	})
	if err != nil {
		return nil, err
	} else {
		return downloads, nil
	}
}

func (d database) GetDownload(postID string) (record *session.DownloadRecord, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(Buckets.Downloads).Get([]byte(postID))
		if data == nil {
			return nil
		}
		record = &session.DownloadRecord{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (d database) WriteDownload(record *session.DownloadRecord) error {
	if data, err := json.Marshal(record); err != nil {
		return err
	} else {
		err := d.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(Buckets.Downloads)
			if err := bucket.Put([]byte(record.PostID), data); err != nil {
				return err
			}
			return nil
		})
		return err
	}
}

func (d database) DeleteDownload(record *session.DownloadRecord) error {
	return d.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Downloads)
		return bucket.Delete([]byte(record.PostID))
	})
}
