package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mchmarny/dietpulse/pkg/table"
)

const (
	insertDataset = `INSERT INTO dataset (name, source, columns, row_count, updated_at) VALUES (?, ?, ?, ?, ?)`

	insertRow = `INSERT INTO dataset_row (dataset_name, idx, cells) VALUES (?, ?, ?)`

	deleteRows = `DELETE FROM dataset_row WHERE dataset_name = ?`

	deleteDataset = `DELETE FROM dataset WHERE name = ?`

	selectDataset = `SELECT name, source, columns, row_count, updated_at FROM dataset WHERE name = ?`

	selectDatasets = `SELECT name, source, columns, row_count, updated_at FROM dataset ORDER BY name`

	selectRows = `SELECT cells FROM dataset_row WHERE dataset_name = ? ORDER BY idx`
)

// ErrDatasetNotFound is returned when no dataset has the requested name.
var ErrDatasetNotFound = errors.New("dataset not found")

// Dataset describes a stored table.
type Dataset struct {
	Name      string    `json:"name" yaml:"name"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Columns   []string  `json:"columns" yaml:"columns"`
	Rows      int       `json:"rows" yaml:"rows"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updatedAt"`
}

// SaveDataset stores t under name, replacing any dataset with that name.
func SaveDataset(ctx context.Context, db *DB, name, source string, t *table.Table) error {
	if db == nil {
		return errDBNotInitialized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("dataset name required")
	}
	if t == nil {
		return errors.New("table required")
	}

	cols, err := json.Marshal(t.Columns())
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, db.rebind(deleteRows), name); err != nil {
			return fmt.Errorf("failed to delete rows of %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, db.rebind(deleteDataset), name); err != nil {
			return fmt.Errorf("failed to delete dataset %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, db.rebind(insertDataset),
			name, source, string(cols), t.Len(), time.Now().UTC().Unix()); err != nil {
			return fmt.Errorf("failed to insert dataset %s: %w", name, err)
		}

		stmt, err := tx.PrepareContext(ctx, db.rebind(insertRow))
		if err != nil {
			return fmt.Errorf("failed to prepare row insert statement: %w", err)
		}
		defer stmt.Close()

		columns := t.Columns()
		cells := make([]table.Value, len(columns))
		for i := 0; i < t.Len(); i++ {
			for j, c := range columns {
				cells[j] = t.Get(i, c)
			}
			b, err := json.Marshal(cells)
			if err != nil {
				return fmt.Errorf("failed to marshal row %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, name, i, string(b)); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetDataset loads the table stored under name.
func GetDataset(ctx context.Context, db *DB, name string) (*table.Table, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	ds, err := GetDatasetInfo(ctx, db, name)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, db.rebind(selectRows), name)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of %s: %w", name, err)
	}
	defer rows.Close()

	t := table.New(ds.Columns...)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var cells []table.Value
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("failed to decode row of %s: %w", name, err)
		}
		if err := t.AddRow(cells...); err != nil {
			return nil, fmt.Errorf("invalid row in %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", name, err)
	}

	return t, nil
}

// GetDatasetInfo returns the description of the dataset stored under name.
func GetDatasetInfo(ctx context.Context, db *DB, name string) (*Dataset, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	ds, err := scanDataset(db.QueryRowContext(ctx, db.rebind(selectDataset), name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
		}
		return nil, fmt.Errorf("failed to get dataset %s: %w", name, err)
	}
	return ds, nil
}

// ListDatasets returns all stored datasets ordered by name.
func ListDatasets(ctx context.Context, db *DB) ([]*Dataset, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.QueryContext(ctx, selectDatasets)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	list := make([]*Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		list = append(list, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate datasets: %w", err)
	}
	return list, nil
}

// DeleteDataset removes the dataset and its rows.
func DeleteDataset(ctx context.Context, db *DB, name string) error {
	if db == nil {
		return errDBNotInitialized
	}

	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, db.rebind(deleteRows), name); err != nil {
			return fmt.Errorf("failed to delete rows of %s: %w", name, err)
		}
		res, err := tx.ExecContext(ctx, db.rebind(deleteDataset), name)
		if err != nil {
			return fmt.Errorf("failed to delete dataset %s: %w", name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check deleted dataset %s: %w", name, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
		}
		return nil
	})
}

// GetDataState returns the number of stored datasets and rows.
func GetDataState(ctx context.Context, db *DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	queries := map[string]string{
		"dataset":     "SELECT COUNT(*) FROM dataset",
		"dataset_row": "SELECT COUNT(*) FROM dataset_row",
	}

	state := make(map[string]int64, len(queries))
	for k, q := range queries {
		var n int64
		if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", k, err)
		}
		state[k] = n
	}
	return state, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(s scanner) (*Dataset, error) {
	var (
		ds      Dataset
		cols    string
		updated int64
	)
	if err := s.Scan(&ds.Name, &ds.Source, &cols, &ds.Rows, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cols), &ds.Columns); err != nil {
		return nil, fmt.Errorf("failed to decode columns of %s: %w", ds.Name, err)
	}
	ds.UpdatedAt = time.Unix(updated, 0).UTC()
	return &ds, nil
}
