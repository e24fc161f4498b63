package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// BuildRun records one build that produced the database.
type BuildRun struct {
	ID           string    `json:"id"`
	GeneratedAt  time.Time `json:"generatedAt"`
	TotalEntries int       `json:"totalEntries"`
	Partition    string    `json:"partition"`
	Locales      []string  `json:"locales"`
}

// EntrySummary is a listing row.
type EntrySummary struct {
	ID           string `json:"id"`
	Korean       string `json:"korean"`
	Romanization string `json:"romanization"`
	CategoryID   string `json:"categoryId"`
	PartitionKey string `json:"partitionKey"`
}

// ExportInput is everything written to the offline database.
type ExportInput struct {
	Entries    []entry.Entry
	Categories []entry.Category

	// KeyOf returns the partition key of an entry id.
	KeyOf func(id string) (string, bool)

	Run BuildRun
}

// Export writes a fresh database to dbPath. The file is built next to the
// destination and renamed into place, so readers never see a partial database.
func Export(ctx context.Context, dbPath string, in ExportInput) error {
	tmpPath := dbPath + ".tmp"
	_ = os.Remove(tmpPath)
	_ = os.Remove(tmpPath + "-journal")

	db, err := Init(tmpPath)
	if err != nil {
		return errors.Wrap(err, "init offline database")
	}

	if err := fill(ctx, db, in); err != nil {
		db.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.NewInternal(err)
	}

	if err := os.Rename(tmpPath, dbPath); err != nil {
		_ = os.Remove(tmpPath)
		return errors.NewInternal(fmt.Errorf("rename %s: %w", filepath.Base(dbPath), err))
	}
	return nil
}

func fill(ctx context.Context, db *sql.DB, in ExportInput) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := InsertCategories(ctx, tx, in.Categories); err != nil {
		return err
	}
	if err := InsertEntries(ctx, tx, in.Entries, in.KeyOf); err != nil {
		return err
	}
	if err := InsertBuildRun(ctx, tx, in.Run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("offline database export")
		}
		return errors.NewInternal(err)
	}
	return nil
}

// InsertCategories stores the category set.
func InsertCategories(ctx context.Context, tx *sql.Tx, categories []entry.Category) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO categories (id, name_json, description_json, icon, color, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, c := range categories {
		nameJSON, err := marshalText(c.Name)
		if err != nil {
			return err
		}
		var descJSON sql.NullString
		if len(c.Description) > 0 {
			s, err := marshalText(c.Description)
			if err != nil {
				return err
			}
			descJSON = sql.NullString{String: s, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, c.ID, nameJSON, descJSON, toNullString(c.Icon), toNullString(c.Color), c.Order); err != nil {
			if isUniqueConstraintError(err) {
				return errors.NewDataIntegrity("duplicate category id "+c.ID, c.ID)
			}
			return errors.NewInternal(err)
		}
	}
	return nil
}

// InsertEntries stores entries with their merge position and partition key.
func InsertEntries(ctx context.Context, tx *sql.Tx, entries []entry.Entry, keyOf func(string) (string, bool)) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (
			id, seq, korean, romanization, part_of_speech, category_id,
			difficulty, frequency, partition_key, pronunciation_json,
			color_code, tags_json, translations_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for i := range entries {
		if i%1000 == 0 && ctx.Err() != nil {
			return errors.NewCancelled("offline database export")
		}
		e := &entries[i]

		key, ok := keyOf(e.ID)
		if !ok {
			return errors.NewDataIntegrity("entry "+e.ID+" is not indexed", e.ID)
		}

		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := marshalText(tags)
		if err != nil {
			return err
		}
		translationsJSON, err := marshalText(e.Translations)
		if err != nil {
			return err
		}
		var pronJSON sql.NullString
		if e.Pronunciation != nil {
			s, err := marshalText(e.Pronunciation)
			if err != nil {
				return err
			}
			pronJSON = sql.NullString{String: s, Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			e.ID, i, e.Korean, e.Romanization, e.PartOfSpeech, e.CategoryID,
			e.Difficulty, toNullString(e.Frequency), key, pronJSON,
			toNullString(e.ColorCode), tagsJSON, translationsJSON,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return errors.NewDataIntegrity("duplicate entry id "+e.ID, e.ID)
			}
			return errors.NewInternal(err)
		}
	}
	return nil
}

// InsertBuildRun records the build that produced the database.
func InsertBuildRun(ctx context.Context, tx *sql.Tx, run BuildRun) error {
	localesJSON, err := marshalText(run.Locales)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO build_runs (id, generated_at, total_entries, partition, locales_json)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.GeneratedAt.Unix(), run.TotalEntries, run.Partition, localesJSON)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetByID retrieves a full entry by id.
func GetByID(ctx context.Context, db *sql.DB, id string) (*entry.Entry, error) {
	query := `
		SELECT id, korean, romanization, part_of_speech, category_id,
			difficulty, frequency, pronunciation_json, color_code,
			tags_json, translations_json
		FROM entries
		WHERE id = ?
	`

	row := db.QueryRowContext(ctx, query, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// ListByCategory lists entries of one category in merge order.
func ListByCategory(ctx context.Context, db *sql.DB, categoryID string, limit, offset int) ([]EntrySummary, error) {
	return listSummaries(ctx, db, "category_id", categoryID, limit, offset)
}

// ListByPartition lists entries of one partition key in merge order.
func ListByPartition(ctx context.Context, db *sql.DB, key string, limit, offset int) ([]EntrySummary, error) {
	return listSummaries(ctx, db, "partition_key", key, limit, offset)
}

func listSummaries(ctx context.Context, db *sql.DB, column, value string, limit, offset int) ([]EntrySummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, korean, romanization, category_id, partition_key
		FROM entries
		WHERE ` + column + ` = ?
		ORDER BY seq
		LIMIT ? OFFSET ?
	`

	rows, err := db.QueryContext(ctx, query, value, limit, offset)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []EntrySummary
	for rows.Next() {
		var s EntrySummary
		if err := rows.Scan(&s.ID, &s.Korean, &s.Romanization, &s.CategoryID, &s.PartitionKey); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// CountEntries returns the number of stored entries.
func CountEntries(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// CountByCategory returns the number of entries in one category.
func CountByCategory(ctx context.Context, db *sql.DB, categoryID string) (int, error) {
	return countBy(ctx, db, "category_id", categoryID)
}

// CountByPartition returns the number of entries with one partition key.
func CountByPartition(ctx context.Context, db *sql.DB, key string) (int, error) {
	return countBy(ctx, db, "partition_key", key)
}

func countBy(ctx context.Context, db *sql.DB, column, value string) (int, error) {
	var n int
	query := "SELECT COUNT(*) FROM entries WHERE " + column + " = ?"
	if err := db.QueryRowContext(ctx, query, value).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// LatestBuildRun returns the most recent build run.
func LatestBuildRun(ctx context.Context, db *sql.DB) (*BuildRun, error) {
	var (
		run         BuildRun
		generatedAt int64
		localesJSON string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, generated_at, total_entries, partition, locales_json
		FROM build_runs
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`).Scan(&run.ID, &generatedAt, &run.TotalEntries, &run.Partition, &localesJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("build run")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	run.GeneratedAt = time.Unix(generatedAt, 0).UTC()
	if err := json.Unmarshal([]byte(localesJSON), &run.Locales); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &run, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanEntry scans a single row into an Entry.
func scanEntry(row *sql.Row) (*entry.Entry, error) {
	var (
		e                entry.Entry
		frequency        sql.NullString
		pronJSON         sql.NullString
		colorCode        sql.NullString
		tagsJSON         string
		translationsJSON string
	)

	err := row.Scan(
		&e.ID, &e.Korean, &e.Romanization, &e.PartOfSpeech, &e.CategoryID,
		&e.Difficulty, &frequency, &pronJSON, &colorCode,
		&tagsJSON, &translationsJSON,
	)
	if err != nil {
		return nil, err
	}

	e.Frequency = frequency.String
	e.ColorCode = colorCode.String

	if pronJSON.Valid && pronJSON.String != "" {
		e.Pronunciation = &entry.Pronunciation{}
		if err := json.Unmarshal([]byte(pronJSON.String), e.Pronunciation); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(translationsJSON), &e.Translations); err != nil {
		return nil, err
	}

	return &e, nil
}

func marshalText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
