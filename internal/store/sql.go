package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLStore implements Store on top of database/sql. Kind maps directly to a
// table name; every table is expected to have a text primary key column
// named id.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB returns the underlying database connection
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Find retrieves a record by its primary key
func (s *SQLStore) Find(ctx context.Context, kind, id string) (Record, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 LIMIT 1", kind)
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %s: %w", kind, id, convertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s %s: %w", kind, id, convertDBError(err))
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// FindMany retrieves the records whose primary keys appear in ids
func (s *SQLStore) FindMany(ctx context.Context, kind string, ids []string) ([]Record, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		values[i] = id
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE id IN (%s)",
		kind, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to batch fetch %s: %w", kind, convertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s batch: %w", kind, convertDBError(err))
	}
	return records, nil
}

// Save persists a record, inserting with a fresh UUID primary key when the
// record has none and updating otherwise. Nested to-one records persist as
// {field}_id foreign key columns; collection slices go through join tables
// and are skipped here.
func (s *SQLStore) Save(ctx context.Context, kind string, record Record) (Record, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	if RecordID(record) == "" {
		return s.insert(ctx, kind, record)
	}
	return s.update(ctx, kind, record)
}

func (s *SQLStore) insert(ctx context.Context, kind string, record Record) (Record, error) {
	saved := copyRecord(record)
	saved["id"] = uuid.New().String()

	fields, columns := columnValues(saved)

	placeholders := make([]string, len(fields))
	values := make([]interface{}, len(fields))
	for i, field := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		values[i] = columns[field]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		kind,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", kind, convertDBError(err))
	}
	return saved, nil
}

func (s *SQLStore) update(ctx context.Context, kind string, record Record) (Record, error) {
	saved := copyRecord(record)
	id := RecordID(saved)

	fields, columns := columnValues(saved)

	var assignments []string
	var values []interface{}
	counter := 1
	for _, field := range fields {
		if field == "id" {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", field, counter))
		values = append(values, columns[field])
		counter++
	}
	if len(assignments) == 0 {
		return saved, nil
	}
	values = append(values, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		kind, strings.Join(assignments, ", "), counter)

	result, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", kind, id, convertDBError(err))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrNotFound
	}
	return saved, nil
}

// AddToCollection inserts join rows linking targets into a parent's
// collection. The join table is named {kind}_{attr} with parent_id and
// target_id columns.
func (s *SQLStore) AddToCollection(ctx context.Context, kind, id, attr string, targetIDs []string) error {
	if kind == "" {
		return ErrMissingKind
	}
	if len(targetIDs) == 0 {
		return nil
	}

	joinTable := fmt.Sprintf("%s_%s", kind, attr)

	placeholders := make([]string, len(targetIDs))
	values := make([]interface{}, 0, len(targetIDs)+1)
	values = append(values, id)
	for i, targetID := range targetIDs {
		placeholders[i] = fmt.Sprintf("($1, $%d)", i+2)
		values = append(values, targetID)
	}

	query := fmt.Sprintf("INSERT INTO %s (parent_id, target_id) VALUES %s",
		joinTable, strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to link %s into %s: %w", attr, joinTable, convertDBError(err))
	}
	return nil
}

// CollectionIDs reads the target ids linked into a parent's collection from
// the {kind}_{attr} join table
func (s *SQLStore) CollectionIDs(ctx context.Context, kind, id, attr string) ([]string, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	joinTable := fmt.Sprintf("%s_%s", kind, attr)
	query := fmt.Sprintf("SELECT target_id FROM %s WHERE parent_id = $1", joinTable)

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s links: %w", joinTable, convertDBError(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var targetID string
		if err := rows.Scan(&targetID); err != nil {
			return nil, fmt.Errorf("failed to scan %s link: %w", joinTable, err)
		}
		ids = append(ids, targetID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s links: %w", joinTable, convertDBError(err))
	}
	return ids, nil
}

// List returns a page of records plus the total count. Sort fields become an
// ORDER BY clause applied before the page is cut; without them records come
// back in id order.
func (s *SQLStore) List(ctx context.Context, kind string, sortFields []string, limit, offset int) ([]Record, int, error) {
	if kind == "" {
		return nil, 0, ErrMissingKind
	}

	orderBy, err := orderByClause(sortFields)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", kind)
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", kind, convertDBError(err))
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT $1 OFFSET $2", kind, orderBy)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", kind, convertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan %s list: %w", kind, convertDBError(err))
	}
	return records, total, nil
}

// Delete removes a record by its primary key
func (s *SQLStore) Delete(ctx context.Context, kind, id string) error {
	if kind == "" {
		return ErrMissingKind
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", kind)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, convertDBError(err))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// columnPattern guards sort fields before they are interpolated into an
// ORDER BY clause
var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// orderByClause builds the ORDER BY body from sort fields, rejecting
// anything that is not a plain column name
func orderByClause(sortFields []string) (string, error) {
	if len(sortFields) == 0 {
		return "id", nil
	}

	clauses := make([]string, 0, len(sortFields))
	for _, field := range sortFields {
		direction := "ASC"
		if strings.HasPrefix(field, "-") {
			direction = "DESC"
			field = strings.TrimPrefix(field, "-")
		}
		if !columnPattern.MatchString(field) {
			return "", fmt.Errorf("invalid sort field %q", field)
		}
		clauses = append(clauses, field+" "+direction)
	}
	return strings.Join(clauses, ", "), nil
}

// columnValues flattens a record into its SQL columns, returning the column
// names in sorted order plus their values. Nested to-one records persist as
// {field}_id foreign key columns, overriding any stale flat {field}_id value
// read off an earlier fetch; a typed-nil nested record clears the key.
// Collection slices live in join tables, not columns.
func columnValues(record Record) ([]string, map[string]interface{}) {
	columns := make(map[string]interface{}, len(record))
	for field, value := range record {
		switch value.(type) {
		case Record, []Record, []interface{}:
			continue
		}
		columns[field] = value
	}
	for field, value := range record {
		nested, ok := value.(Record)
		if !ok {
			continue
		}
		if nested == nil {
			columns[field+"_id"] = nil
			continue
		}
		columns[field+"_id"] = RecordID(nested)
	}

	fields := make([]string, 0, len(columns))
	for field := range columns {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields, columns
}

func copyRecord(record Record) Record {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}

// scanRows scans SQL rows into record maps, converting []byte column values
// to strings
func scanRows(rows *sql.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// convertDBError converts database-specific errors to store errors
func convertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("unique constraint violation: %s", pgErr.Detail)
		case "23503":
			return fmt.Errorf("foreign key constraint violation: %s", pgErr.Detail)
		case "23502":
			return fmt.Errorf("not null constraint violation: column %s", pgErr.ColumnName)
		}
	}

	return err
}
