package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
)

const (
	documentsBucket = "documents"
	summariesBucket = "summaries"
)

// BoltStore keeps documents in a BoltDB file. Full documents and their
// summaries live in separate buckets so listing never decodes a document.
type BoltStore struct {
	db     *bbolt.DB
	logger zerolog.Logger
}

func NewBoltStore(dbPath string, logger zerolog.Logger) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(errors.CodeIoError, "store", fmt.Sprintf("failed to create directory %s", dir), err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		if strings.Contains(err.Error(), "resource temporarily unavailable") ||
			strings.Contains(err.Error(), "timeout") {
			return nil, errors.New(errors.CodeIoError, "store",
				fmt.Sprintf("database file '%s' is already in use by another process. "+
					"Use STORE_PATH to specify a different database file", dbPath), err)
		}
		return nil, errors.New(errors.CodeIoError, "store", "failed to open bolt db", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentsBucket, summariesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.New(errors.CodeIoError, "store", "failed to create buckets", err)
	}

	logger.Debug().Str("path", dbPath).Msg("Opened bolt store")
	return &BoltStore{
		db:     db,
		logger: logger.With().Str("component", "bolt_store").Logger(),
	}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(_ context.Context, slug string, doc *scrape.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.New(errors.CodeInternalError, "store", "failed to marshal document", err)
	}
	summary, err := json.Marshal(summarize(slug, doc))
	if err != nil {
		return errors.New(errors.CodeInternalError, "store", "failed to marshal summary", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket([]byte(documentsBucket))
		if docs.Get([]byte(slug)) != nil {
			return alreadyExists(slug)
		}
		if err := docs.Put([]byte(slug), data); err != nil {
			return errors.New(errors.CodeIoError, "store", "failed to store document", err)
		}
		if err := tx.Bucket([]byte(summariesBucket)).Put([]byte(slug), summary); err != nil {
			return errors.New(errors.CodeIoError, "store", "failed to store summary", err)
		}
		return nil
	})
}

func (s *BoltStore) Get(_ context.Context, slug string) (*scrape.Document, error) {
	var doc scrape.Document

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(documentsBucket)).Get([]byte(slug))
		if data == nil {
			return notFound(slug)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.New(errors.CodeInternalError, "store", "failed to decode document", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *BoltStore) Delete(_ context.Context, slug string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket([]byte(documentsBucket))
		if docs.Get([]byte(slug)) == nil {
			return notFound(slug)
		}
		if err := docs.Delete([]byte(slug)); err != nil {
			return errors.New(errors.CodeIoError, "store", "failed to delete document", err)
		}
		return tx.Bucket([]byte(summariesBucket)).Delete([]byte(slug))
	})
}

func (s *BoltStore) List(_ context.Context) ([]Summary, error) {
	out := []Summary{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(summariesBucket)).ForEach(func(k, v []byte) error {
			var summary Summary
			if err := json.Unmarshal(v, &summary); err != nil {
				s.logger.Warn().Err(err).Str("slug", string(k)).Msg("Skipping unreadable summary")
				return nil
			}
			out = append(out, summary)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortSummaries(out)
	return out, nil
}

func (s *BoltStore) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	var removed int

	err := s.db.Update(func(tx *bbolt.Tx) error {
		summaries := tx.Bucket([]byte(summariesBucket))
		docs := tx.Bucket([]byte(documentsBucket))

		var expired []string
		err := summaries.ForEach(func(k, v []byte) error {
			var summary Summary
			if err := json.Unmarshal(v, &summary); err != nil {
				return nil
			}
			if summary.ScrapedAt.Before(cutoff) {
				expired = append(expired, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, slug := range expired {
			if err := docs.Delete([]byte(slug)); err != nil {
				continue
			}
			if err := summaries.Delete([]byte(slug)); err != nil {
				continue
			}
			removed++
		}
		return nil
	})

	return removed, err
}

// Ping verifies the database file can still be read.
func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(documentsBucket)) == nil {
			return errors.Newf(errors.CodeIoError, "store", "bucket %s missing", documentsBucket)
		}
		return nil
	})
}

// Stats reports the number of stored documents.
func (s *BoltStore) Stats() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(documentsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
