package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"docforge.org/internal/blob"
	"docforge.org/internal/docgen"
	"docforge.org/internal/ids"
	"docforge.org/internal/obs"
	"docforge.org/internal/template"
)

// Store is the durable metadata store: template version chains and
// generated-document rows. Template and artifact bytes live in the
// object store collaborator, only refs are recorded here.
type Store struct {
	db    *sql.DB
	blobs blob.Store
}

var _ template.Store = (*Store)(nil)
var _ docgen.DocumentStore = (*Store)(nil)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string, blobs blob.Store) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, blobs: blobs}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB, blobs blob.Store) *Store {
	return &Store{db: db, blobs: blobs}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// writeConflict maps serialization failures and head-uniqueness
// violations to the retryable sentinel.
func writeConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 23505 unique_violation.
		if pgErr.Code == "40001" || pgErr.Code == "23505" {
			return fmt.Errorf("%w: %v", template.ErrNotWritable, err)
		}
	}
	return err
}

func (s *Store) Append(ctx context.Context, name string, format template.Format, content []byte, changeLog string) (template.Version, error) {
	if name == "" {
		return template.Version{}, fmt.Errorf("%w: empty template name", template.ErrTemplateNotFound)
	}
	ref, err := s.blobs.Put(ctx, ids.Ref("tpl"), content)
	if err != nil {
		return template.Version{}, fmt.Errorf("store template content: %w", err)
	}
	v, err := s.appendRef(ctx, name, format, ref, changeLog)
	if err == nil {
		obs.VersionWrite(string(format), "append")
	}
	return v, err
}

// appendRef allocates the next version number and moves the head marker
// in one serializable transaction. Losing the race surfaces as
// ErrNotWritable for the caller to retry.
func (s *Store) appendRef(ctx context.Context, name string, format template.Format, contentRef, changeLog string) (template.Version, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return template.Version{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var max int
	if err := tx.QueryRowContext(ctx, `
		select coalesce(max(number), 0) from template_versions
		where template_name=$1 and format=$2
	`, name, format).Scan(&max); err != nil {
		return template.Version{}, writeConflict(err)
	}

	if _, err := tx.ExecContext(ctx, `
		update template_versions set is_latest=false
		where template_name=$1 and format=$2 and is_latest
	`, name, format); err != nil {
		return template.Version{}, writeConflict(err)
	}

	v := template.Version{
		TemplateName: name,
		Format:       format,
		Number:       max + 1,
		ContentRef:   contentRef,
		CreatedAt:    time.Now().UTC(),
		ChangeLog:    changeLog,
		IsLatest:     true,
	}
	if _, err := tx.ExecContext(ctx, `
		insert into template_versions(template_name, format, number, content_ref, created_at, change_log, is_latest)
		values ($1,$2,$3,$4,$5,$6,true)
	`, v.TemplateName, v.Format, v.Number, v.ContentRef, v.CreatedAt, v.ChangeLog); err != nil {
		return template.Version{}, writeConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return template.Version{}, writeConflict(err)
	}
	return v, nil
}

func (s *Store) Rollback(ctx context.Context, name string, format template.Format, target int) (template.Version, error) {
	from, err := s.Resolve(ctx, name, format, target)
	if err != nil {
		return template.Version{}, err
	}
	v, err := s.appendRef(ctx, name, format, from.ContentRef, fmt.Sprintf("rollback to v%d", target))
	if err == nil {
		obs.VersionWrite(string(format), "rollback")
	}
	return v, err
}

func (s *Store) Resolve(ctx context.Context, name string, format template.Format, number int) (template.Version, error) {
	query := `
		select template_name, format, number, content_ref, created_at, change_log, is_latest
		from template_versions
		where template_name=$1 and format=$2 and is_latest`
	args := []any{name, format}
	if number != 0 {
		query = `
		select template_name, format, number, content_ref, created_at, change_log, is_latest
		from template_versions
		where template_name=$1 and format=$2 and number=$3`
		args = append(args, number)
	}

	var v template.Version
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&v.TemplateName, &v.Format, &v.Number, &v.ContentRef, &v.CreatedAt, &v.ChangeLog, &v.IsLatest)
	if errors.Is(err, sql.ErrNoRows) {
		var n int
		if cntErr := s.db.QueryRowContext(ctx, `
			select count(*) from template_versions where template_name=$1 and format=$2
		`, name, format).Scan(&n); cntErr == nil && n > 0 {
			return template.Version{}, fmt.Errorf("%w: %s/%s v%d", template.ErrVersionNotFound, name, format, number)
		}
		return template.Version{}, fmt.Errorf("%w: %s/%s", template.ErrTemplateNotFound, name, format)
	}
	if err != nil {
		return template.Version{}, err
	}
	return v, nil
}

func (s *Store) History(ctx context.Context, name string, format template.Format) ([]template.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		select template_name, format, number, content_ref, created_at, change_log, is_latest
		from template_versions
		where template_name=$1 and format=$2
		order by number asc
	`, name, format)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chain []template.Version
	for rows.Next() {
		var v template.Version
		if err := rows.Scan(&v.TemplateName, &v.Format, &v.Number, &v.ContentRef, &v.CreatedAt, &v.ChangeLog, &v.IsLatest); err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", template.ErrTemplateNotFound, name, format)
	}
	return chain, nil
}

func (s *Store) Content(ctx context.Context, v template.Version) ([]byte, error) {
	return s.blobs.Get(ctx, v.ContentRef)
}

// SaveDocument records one generated-document row. Everything but the
// permission fields is immutable after this insert.
func (s *Store) SaveDocument(ctx context.Context, doc docgen.GeneratedDocument) error {
	users, err := json.Marshal(stringsOrEmpty(doc.BlockedUsers))
	if err != nil {
		return err
	}
	departments, err := json.Marshal(stringsOrEmpty(doc.BlockedDepartments))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into generated_documents(id, template_name, template_version, format, artifact_ref,
			is_masked, blocked_users, blocked_departments, generated_at, generated_by)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, doc.ID, doc.TemplateName, doc.TemplateVersion, doc.Format, doc.ArtifactRef,
		doc.IsMasked, users, departments, doc.GeneratedAt, doc.GeneratedBy)
	return err
}

// GetDocument loads one generated-document row.
func (s *Store) GetDocument(ctx context.Context, id string) (docgen.GeneratedDocument, error) {
	var doc docgen.GeneratedDocument
	var users, departments []byte
	err := s.db.QueryRowContext(ctx, `
		select id, template_name, template_version, format, artifact_ref,
			is_masked, blocked_users, blocked_departments, generated_at, generated_by
		from generated_documents where id=$1
	`, id).Scan(&doc.ID, &doc.TemplateName, &doc.TemplateVersion, &doc.Format, &doc.ArtifactRef,
		&doc.IsMasked, &users, &departments, &doc.GeneratedAt, &doc.GeneratedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return docgen.GeneratedDocument{}, fmt.Errorf("generated document %s not found", id)
	}
	if err != nil {
		return docgen.GeneratedDocument{}, err
	}
	if err := json.Unmarshal(users, &doc.BlockedUsers); err != nil {
		return docgen.GeneratedDocument{}, err
	}
	if err := json.Unmarshal(departments, &doc.BlockedDepartments); err != nil {
		return docgen.GeneratedDocument{}, err
	}
	return doc, nil
}

// UpdateDocumentPermissions replaces the blacklist fields of a document
// row. This is the only mutation allowed after creation.
func (s *Store) UpdateDocumentPermissions(ctx context.Context, id string, blockedUsers, blockedDepartments []string) error {
	users, err := json.Marshal(stringsOrEmpty(blockedUsers))
	if err != nil {
		return err
	}
	departments, err := json.Marshal(stringsOrEmpty(blockedDepartments))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update generated_documents
		set blocked_users=$2, blocked_departments=$3
		where id=$1
	`, id, users, departments)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("generated document %s not found", id)
	}
	return nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
