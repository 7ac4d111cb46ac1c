// Package sqlite persists session download records in an SQLite database.
package sqlite

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/bulk-downloader/internal/session"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type downloadRow struct {
	PostID     string `gorm:"primaryKey"`
	DownloadID string
	URL        string
	Subreddit  string
	AddedAt    time.Time
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
	Status     string
	Error      string
	Provider   string
	Resources  int
	Files      []fileRow `gorm:"foreignKey:PostID;references:PostID"`
}

func (downloadRow) TableName() string {
	return "downloads"
}

type fileRow struct {
	PostID    string `gorm:"primaryKey"`
	Idx       int    `gorm:"primaryKey;autoIncrement:false"`
	URL       string
	Path      string
	Hash      string
	Size      int
	Duplicate bool
	Error     string
}

func (fileRow) TableName() string {
	return "files"
}

type Database struct {
	db *gorm.DB
}

// New opens (creating if necessary) the database at path and brings its schema up to date.
func New(path string) (*Database, error) {
	logger := zapgorm2.New(zap.L().Named("sqlite"))
	logger.IgnoreRecordNotFoundError = true
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Session workers write concurrently, and SQLite only allows one writer
	sqlDB.SetMaxOpenConns(1)
	d := &Database{db}
	if err := d.Migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) Migrate() error {
	log := zap.S().Named("sqlite")
	log.Debug("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	driver, err := migratesqlite3.WithInstance(sqlDB, &migratesqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch {
	case err == nil:
		log.Debug("database migration complete")
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("no database migration required")
	default:
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) ListDownloads() ([]session.DownloadRecord, error) {
	var rows []downloadRow
	if err := d.db.Preload("Files", orderFiles).Order("post_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]session.DownloadRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return records, nil
}

// GetDownload returns (nil, nil) if the error is only that no such row exists.
func (d *Database) GetDownload(postID string) (*session.DownloadRecord, error) {
	var row downloadRow
	if err := d.db.Preload("Files", orderFiles).Take(&row, "post_id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	record := row.toRecord()
	return &record, nil
}

// WriteDownload inserts or replaces the record, including its files.
func (d *Database) WriteDownload(record *session.DownloadRecord) error {
	row := fromRecord(record)
	return d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Omit(clause.Associations).Create(&row).Error
		if err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", row.PostID).Delete(&fileRow{}).Error; err != nil {
			return err
		}
		if len(row.Files) > 0 {
			return tx.Create(&row.Files).Error
		}
		return nil
	})
}

func (d *Database) DeleteDownload(record *session.DownloadRecord) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", record.PostID).Delete(&fileRow{}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", record.PostID).Delete(&downloadRow{}).Error
	})
}

// FindByHash returns the saved files with the given content hash.
func (d *Database) FindByHash(hash string) ([]session.FileRecord, error) {
	var rows []fileRow
	if err := d.db.Where("hash = ? AND path != ''", hash).Order("post_id, idx").Find(&rows).Error; err != nil {
		return nil, err
	}
	files := make([]session.FileRecord, 0, len(rows))
	for _, r := range rows {
		files = append(files, r.toRecord())
	}
	return files, nil
}

func orderFiles(db *gorm.DB) *gorm.DB {
	return db.Order("idx")
}

func fromRecord(record *session.DownloadRecord) downloadRow {
	row := downloadRow{
		PostID:     record.PostID,
		DownloadID: string(record.ID),
		URL:        record.URL,
		Subreddit:  record.Subreddit,
		AddedAt:    record.AddedAt,
		UpdatedAt:  record.UpdatedAt,
		Status:     string(record.Status),
		Error:      record.Error,
		Provider:   record.Provider,
		Resources:  record.Resources,
	}
	for i, f := range record.Files {
		row.Files = append(row.Files, fileRow{
			PostID:    record.PostID,
			Idx:       i,
			URL:       f.URL,
			Path:      f.Path,
			Hash:      f.Hash,
			Size:      f.Size,
			Duplicate: f.Duplicate,
			Error:     f.Error,
		})
	}
	return row
}

func (r *downloadRow) toRecord() session.DownloadRecord {
	record := session.DownloadRecord{
		ID:        session.DownloadID(r.DownloadID),
		PostID:    r.PostID,
		URL:       r.URL,
		Subreddit: r.Subreddit,
		AddedAt:   r.AddedAt,
		UpdatedAt: r.UpdatedAt,
		Status:    session.DownloadStatus(r.Status),
		Error:     r.Error,
		Provider:  r.Provider,
		Resources: r.Resources,
	}
	for _, f := range r.Files {
		record.Files = append(record.Files, f.toRecord())
	}
	return record
}

func (r *fileRow) toRecord() session.FileRecord {
	return session.FileRecord{
		URL:       r.URL,
		Path:      r.Path,
		Hash:      r.Hash,
		Size:      r.Size,
		Duplicate: r.Duplicate,
		Error:     r.Error,
	}
}
