package docgen

import (
	"context"
	"errors"
	"time"

	"docforge.org/internal/template"
)

// DataKind tags the raw payload encoding of a generation request.
type DataKind string

const (
	DataJSON DataKind = "json"
	DataCSV  DataKind = "csv"
)

// WatermarkConfig asks for a diagonal overlay stamped onto every artifact.
// ImageRef names an object-store blob used where the format supports a
// raster overlay.
type WatermarkConfig struct {
	Text     string
	ImageRef string
	Opacity  float64
}

// EncryptionConfig asks for format-appropriate protection: password
// container encryption where the format has one, read-only enforcement
// otherwise. HTML supports neither and fails the format.
type EncryptionConfig struct {
	Password string
	ReadOnly bool
}

// Request is the pipeline's primary input contract.
type Request struct {
	TemplateName     string
	RequestedVersion int // 0 resolves the head version
	Data             []byte
	DataKind         DataKind // defaults to DataJSON
	DataName         string   // source name, used as CSV table title
	Formats          []template.Format
	MaskingEnabled   bool
	Watermark        *WatermarkConfig
	Encryption       *EncryptionConfig
}

// Stage names one step of the per-format state machine.
type Stage string

const (
	StageResolving  Stage = "resolving"
	StageProcessing Stage = "processing"
	StageMasking    Stage = "masking"
	StageRendering  Stage = "rendering"
	StageExporting  Stage = "exporting"
	StageProtecting Stage = "protecting"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Status is a terminal per-format state.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// ErrorKind classifies a failure for callers. The set is closed; Detail
// carries the free text.
type ErrorKind string

const (
	KindMalformedInput        ErrorKind = "MalformedInput"
	KindTemplateNotFound      ErrorKind = "TemplateNotFound"
	KindVersionNotFound       ErrorKind = "VersionNotFound"
	KindTemplateNotWritable   ErrorKind = "TemplateNotWritable"
	KindTemplateSyntaxError   ErrorKind = "TemplateSyntaxError"
	KindExportError           ErrorKind = "ExportError"
	KindMaskingRuleError      ErrorKind = "MaskingRuleError"
	KindUnsupportedProtection ErrorKind = "UnsupportedProtection"
	KindProtectionFailed      ErrorKind = "ProtectionFailed"
	KindInternal              ErrorKind = "Internal"
)

// GeneratedDocument is the immutable row created for every successful
// per-format export. The permission fields are the only mutable part,
// updated later by the authorization collaborator.
type GeneratedDocument struct {
	ID                 string          `json:"id"`
	TemplateName       string          `json:"template_name"`
	TemplateVersion    int             `json:"template_version"`
	Format             template.Format `json:"format"`
	ArtifactRef        string          `json:"artifact_ref"`
	IsMasked           bool            `json:"is_masked"`
	BlockedUsers       []string        `json:"blocked_users"`
	BlockedDepartments []string        `json:"blocked_departments"`
	GeneratedAt        time.Time       `json:"generated_at"`
	GeneratedBy        string          `json:"generated_by"`
}

// FormatOutcome is one element of the pipeline's output contract. Either
// ArtifactRef (done) or ErrorKind/Detail (failed) is populated; Warnings
// may accompany both.
type FormatOutcome struct {
	Format      template.Format    `json:"format"`
	Status      Status             `json:"status"`
	ArtifactRef string             `json:"artifact_ref,omitempty"`
	Document    *GeneratedDocument `json:"document,omitempty"`
	ErrorKind   ErrorKind          `json:"error_kind,omitempty"`
	Detail      string             `json:"detail,omitempty"`
	FailedStage Stage              `json:"failed_stage,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// Result aggregates the per-format outcomes of one request. Callers must
// not assume all-or-nothing success.
type Result struct {
	Outcomes []FormatOutcome `json:"outcomes"`
}

// Done reports whether every requested format succeeded.
func (r *Result) Done() bool {
	for _, o := range r.Outcomes {
		if o.Status != StatusDone {
			return false
		}
	}
	return len(r.Outcomes) > 0
}

// DocumentStore persists generated-document metadata rows.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc GeneratedDocument) error
}

// ErrNoFormats rejects a request with an empty output format set.
var ErrNoFormats = errors.New("no output formats requested")
