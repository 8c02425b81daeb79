package catalogue

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pspoerri/geocrs/internal/wkt"
)

const importBatchSize = 500

// Record is a row of the crs_catalogue table.
type Record struct {
	Code       int    `gorm:"column:code;primaryKey;autoIncrement:false"`
	AuthName   string `gorm:"column:auth_name;index"`
	Definition string `gorm:"column:definition;not null"`
}

func (Record) TableName() string { return "crs_catalogue" }

// Store is a catalogue held in a SQLite database. It is a Source that
// yields entries ordered by code.
type Store struct {
	db   *gorm.DB
	path string
}

// OpenStore opens or creates the database at path and migrates the
// catalogue table.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Name() string { return "sqlite:" + s.path }

// Put inserts or replaces records.
func (s *Store) Put(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		UpdateAll: true,
	}).CreateInBatches(&records, importBatchSize).Error
}

// Import copies the well-formed entries of src into the store in one
// transaction, replacing existing codes. It returns the number of
// entries written.
func (s *Store) Import(src Source) (int, error) {
	n := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		batch := make([]Record, 0, importBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				UpdateAll: true,
			}).Create(&batch).Error
			n += len(batch)
			batch = batch[:0]
			return err
		}
		err := src.Each(func(e Entry) error {
			if e.Err != nil {
				return nil
			}
			batch = append(batch, Record{Code: e.Code, AuthName: authorityOf(e.WKT), Definition: e.WKT})
			if len(batch) == importBatchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
		return flush()
	})
	if err != nil {
		return 0, fmt.Errorf("import %s into %s: %w", src.Name(), s.Name(), err)
	}
	return n, nil
}

// authorityOf returns the authority named by the top-level identifier of
// a definition, or "" when there is none or the text does not parse.
func authorityOf(def string) string {
	root, err := wkt.Parse(def)
	if err != nil {
		return ""
	}
	auth, _ := root.Child("AUTHORITY", "ID").Text(0)
	return auth
}

// Get returns the definition stored for code.
func (s *Store) Get(code int) (Record, bool, error) {
	var rec Record
	res := s.db.Where("code = ?", code).Limit(1).Find(&rec)
	if res.Error != nil {
		return Record{}, false, res.Error
	}
	return rec, res.RowsAffected > 0, nil
}

// Len returns the number of stored definitions.
func (s *Store) Len() (int, error) {
	var n int64
	if err := s.db.Model(&Record{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) Each(fn func(Entry) error) error {
	rows, err := s.db.Model(&Record{}).Order("code").Rows()
	if err != nil {
		return fmt.Errorf("query %s: %w", s.Name(), err)
	}
	defer rows.Close()

	line := 0
	for rows.Next() {
		var rec Record
		if err := s.db.ScanRows(rows, &rec); err != nil {
			return fmt.Errorf("scan %s: %w", s.Name(), err)
		}
		line++
		e := Entry{Line: line, Code: rec.Code, WKT: rec.Definition}
		if rec.Definition == "" {
			e.Err = &LineError{Line: line, Text: fmt.Sprint(rec.Code), Err: ErrEmptyDefinition}
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
