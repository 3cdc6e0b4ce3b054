package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
)

type documentRecord struct {
	Slug          string    `gorm:"column:slug;primaryKey"`
	URL           string    `gorm:"column:url"`
	Title         string    `gorm:"column:title"`
	TotalElements int       `gorm:"column:total_elements"`
	ScrapedAt     time.Time `gorm:"column:scraped_at"`
	Body          []byte    `gorm:"column:body;type:jsonb"`
}

func (documentRecord) TableName() string { return "documents" }

// PostgresStore keeps documents in PostgreSQL. The schema is owned by
// Migrate, not by gorm.
type PostgresStore struct {
	gorm   *gorm.DB
	sql    *sql.DB
	logger zerolog.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.Newf(errors.CodeConfigurationInvalid, "store", "missing database URL")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.New(errors.CodeIoError, "store", "failed to connect to postgres", err)
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, errors.New(errors.CodeIoError, "store", "failed to get sql handle", err)
	}
	sdb.SetConnMaxLifetime(30 * time.Minute)
	sdb.SetMaxOpenConns(10)
	sdb.SetMaxIdleConns(5)
	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, errors.New(errors.CodeIoError, "store", "failed to ping postgres", err)
	}

	return &PostgresStore{
		gorm:   gdb,
		sql:    sdb,
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}, nil
}

func (s *PostgresStore) Close() error { return s.sql.Close() }

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.sql.PingContext(ctx); err != nil {
		return errors.New(errors.CodeIoError, "store", "postgres unreachable", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, slug string, doc *scrape.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.New(errors.CodeInternalError, "store", "failed to marshal document", err)
	}

	rec := documentRecord{
		Slug:          slug,
		URL:           doc.Meta.URL,
		Title:         doc.Meta.Title,
		TotalElements: doc.Stats.TotalElements,
		ScrapedAt:     doc.Meta.ScrapedAt,
		Body:          body,
	}
	if err := s.gorm.WithContext(ctx).Create(&rec).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return alreadyExists(slug)
		}
		return errors.New(errors.CodeIoError, "store", "failed to insert document", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, slug string) (*scrape.Document, error) {
	var rec documentRecord
	err := s.gorm.WithContext(ctx).Where("slug = ?", slug).First(&rec).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(slug)
		}
		return nil, errors.New(errors.CodeIoError, "store", "failed to load document", err)
	}

	var doc scrape.Document
	if err := json.Unmarshal(rec.Body, &doc); err != nil {
		return nil, errors.New(errors.CodeInternalError, "store", "failed to decode document", err)
	}
	return &doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, slug string) error {
	res := s.gorm.WithContext(ctx).Where("slug = ?", slug).Delete(&documentRecord{})
	if res.Error != nil {
		return errors.New(errors.CodeIoError, "store", "failed to delete document", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(slug)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	var recs []documentRecord
	err := s.gorm.WithContext(ctx).
		Select("slug", "url", "title", "total_elements", "scraped_at").
		Order("scraped_at DESC, slug ASC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.New(errors.CodeIoError, "store", "failed to list documents", err)
	}

	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Summary{
			Slug:          rec.Slug,
			URL:           rec.URL,
			Title:         rec.Title,
			TotalElements: rec.TotalElements,
			ScrapedAt:     rec.ScrapedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.gorm.WithContext(ctx).Where("scraped_at < ?", cutoff).Delete(&documentRecord{})
	if res.Error != nil {
		return 0, errors.New(errors.CodeIoError, "store", "failed to clean up documents", res.Error)
	}
	return int(res.RowsAffected), nil
}
