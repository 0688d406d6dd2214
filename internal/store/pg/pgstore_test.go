package pg

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"docforge.org/internal/blob"
	"docforge.org/internal/docgen"
	"docforge.org/internal/template"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, blob.NewMemory()), mock
}

func expectAppend(mock sqlmock.Sqlmock, currentMax int) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`select coalesce(max(number), 0) from template_versions`)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(currentMax))
	mock.ExpectExec(regexp.QuoteMeta(`update template_versions set is_latest=false`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into template_versions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestAppendAllocatesNextNumber(t *testing.T) {
	s, mock := newMockStore(t)
	expectAppend(mock, 2)

	v, err := s.Append(context.Background(), "invoice", template.FormatWord, []byte("content"), "tweak")
	if err != nil {
		t.Fatal(err)
	}
	if v.Number != 3 || !v.IsLatest {
		t.Fatalf("unexpected version: %+v", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendLostRaceIsRetryable(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`select coalesce(max(number), 0) from template_versions`)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`update template_versions set is_latest=false`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into template_versions`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.Append(context.Background(), "invoice", template.FormatWord, []byte("x"), "")
	if !errors.Is(err, template.ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
}

func TestAppendSerializationFailureIsRetryable(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`select coalesce(max(number), 0) from template_versions`)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`update template_versions set is_latest=false`)).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	_, err := s.Append(context.Background(), "invoice", template.FormatPDF, []byte("x"), "")
	if !errors.Is(err, template.ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
}

func versionRow(name string, format template.Format, number int, ref string, latest bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"template_name", "format", "number", "content_ref", "created_at", "change_log", "is_latest",
	}).AddRow(name, string(format), number, ref, time.Now().UTC(), "", latest)
}

func TestResolveHead(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`is_latest`).
		WillReturnRows(versionRow("invoice", template.FormatHTML, 4, "tpl/abc", true))

	v, err := s.Resolve(context.Background(), "invoice", template.FormatHTML, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Number != 4 || v.ContentRef != "tpl/abc" {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestResolveDistinguishesNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`is_latest`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	if _, err := s.Resolve(context.Background(), "ghost", template.FormatWord, 0); !errors.Is(err, template.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}

	mock.ExpectQuery(`number=\$3`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	if _, err := s.Resolve(context.Background(), "invoice", template.FormatWord, 9); !errors.Is(err, template.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestRollbackAppendsCopy(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`number=\$3`).
		WillReturnRows(versionRow("invoice", template.FormatPDF, 1, "tpl/v1", false))
	expectAppend(mock, 2)

	v, err := s.Rollback(context.Background(), "invoice", template.FormatPDF, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Number != 3 || v.ContentRef != "tpl/v1" {
		t.Fatalf("rollback must re-append target content: %+v", v)
	}
	if v.ChangeLog != "rollback to v1" {
		t.Fatalf("unexpected changelog %q", v.ChangeLog)
	}
}

func TestHistoryOrdered(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{
		"template_name", "format", "number", "content_ref", "created_at", "change_log", "is_latest",
	}).
		AddRow("invoice", "word", 1, "tpl/a", time.Now(), "", false).
		AddRow("invoice", "word", 2, "tpl/b", time.Now(), "", true)
	mock.ExpectQuery(`order by number asc`).WillReturnRows(rows)

	chain, err := s.History(context.Background(), "invoice", template.FormatWord)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[1].Number != 2 || !chain[1].IsLatest {
		t.Fatalf("unexpected chain: %+v", chain)
	}
}

func TestSaveAndUpdateDocument(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`insert into generated_documents`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := docgen.GeneratedDocument{
		ID:              "8b78f2d4-0000-0000-0000-000000000001",
		TemplateName:    "invoice",
		TemplateVersion: 2,
		Format:          template.FormatPDF,
		ArtifactRef:     "art/01X",
		IsMasked:        true,
		GeneratedAt:     time.Now().UTC(),
		GeneratedBy:     "u-7",
	}
	if err := s.SaveDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`update generated_documents`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.UpdateDocumentPermissions(context.Background(), doc.ID, []string{"u-9"}, []string{"hr"}); err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`update generated_documents`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.UpdateDocumentPermissions(context.Background(), "missing", nil, nil); err == nil {
		t.Fatal("expected error for unknown document id")
	}
}

func TestGetDocumentRoundTrip(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{
		"id", "template_name", "template_version", "format", "artifact_ref",
		"is_masked", "blocked_users", "blocked_departments", "generated_at", "generated_by",
	}).AddRow("doc-1", "invoice", 2, "pdf", "art/01X", true,
		[]byte(`["u-9"]`), []byte(`["hr"]`), time.Now().UTC(), "u-7")
	mock.ExpectQuery(regexp.QuoteMeta(`from generated_documents`)).WillReturnRows(rows)

	doc, err := s.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Format != template.FormatPDF || len(doc.BlockedUsers) != 1 || doc.BlockedUsers[0] != "u-9" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}
