package docgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docforge.org/internal/audit"
	"docforge.org/internal/auth"
	"docforge.org/internal/blob"
	"docforge.org/internal/export"
	"docforge.org/internal/ids"
	"docforge.org/internal/masking"
	"docforge.org/internal/obs"
	"docforge.org/internal/record"
	"docforge.org/internal/render"
	"docforge.org/internal/secure"
	"docforge.org/internal/template"
)

// Orchestrator drives the pipeline once per requested output format.
// Formats run sequentially; a failure in one never aborts the others.
type Orchestrator struct {
	templates template.Store
	artifacts blob.Store
	docs      DocumentStore
	processor *record.Processor
	masker    *masking.Masker
	engine    *render.Engine
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithDocumentStore wires the metadata store for generated-document rows.
func WithDocumentStore(s DocumentStore) OrchestratorOption {
	return func(o *Orchestrator) { o.docs = s }
}

// WithRenderEngine overrides the default engine, e.g. to wire an image
// store or a custom fetch limit.
func WithRenderEngine(e *render.Engine) OrchestratorOption {
	return func(o *Orchestrator) { o.engine = e }
}

// New builds an orchestrator over the given template chain store and
// artifact object store.
func New(templates template.Store, artifacts blob.Store, opts ...OrchestratorOption) (*Orchestrator, error) {
	masker, err := masking.NewMasker()
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		templates: templates,
		artifacts: artifacts,
		processor: record.NewProcessor(),
		masker:    masker,
		engine:    render.NewEngine(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Generate runs the pipeline. Request-level failures (malformed data,
// unknown template or version, empty format set) return an error with no
// outcomes; format-level failures are reported per format in the result.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Formats) == 0 {
		return nil, ErrNoFormats
	}

	// Resolve every requested format up front: an unknown template or
	// version fails the whole request before anything renders.
	versions := make(map[template.Format]template.Version, len(req.Formats))
	for _, f := range req.Formats {
		v, err := o.templates.Resolve(ctx, req.TemplateName, f, req.RequestedVersion)
		if err != nil {
			return nil, err
		}
		versions[f] = v
	}

	rec, err := o.parse(req)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, f := range req.Formats {
		outcome := o.runFormat(ctx, req, f, versions[f], rec)
		obs.DocumentGenerated(string(f), string(outcome.Status))
		ev := obs.Logger().Info()
		if outcome.Status == StatusFailed {
			ev = obs.Logger().Warn().Str("error_kind", string(outcome.ErrorKind)).Str("stage", string(outcome.FailedStage))
		}
		ev.Str("template", req.TemplateName).
			Str("format", string(f)).
			Int("warnings", len(outcome.Warnings)).
			Msg("format generation finished")
		o.auditOutcome(ctx, req, outcome)
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (o *Orchestrator) parse(req Request) (record.Record, error) {
	switch req.DataKind {
	case DataCSV:
		return o.processor.ParseCSV(req.DataName, req.Data)
	case DataJSON, "":
		return o.processor.ParseJSON(req.Data)
	default:
		return nil, fmt.Errorf("%w: unknown data kind %q", record.ErrMalformedInput, req.DataKind)
	}
}

// runFormat executes the per-format state machine to a terminal state.
// Every error is caught here and classified; nothing propagates.
func (o *Orchestrator) runFormat(ctx context.Context, req Request, f template.Format, v template.Version, rec record.Record) FormatOutcome {
	outcome := FormatOutcome{Format: f, Status: StatusFailed}

	fail := func(stage Stage, err error) FormatOutcome {
		outcome.FailedStage = stage
		outcome.ErrorKind = classify(err)
		outcome.Detail = err.Error()
		return outcome
	}

	content, err := o.stageContent(ctx, f, v)
	if err != nil {
		return fail(StageResolving, err)
	}

	if req.MaskingEnabled {
		rec, err = o.stageMask(f, rec)
		if err != nil {
			return fail(StageMasking, err)
		}
	}

	artifact, warns, err := o.stageRenderExport(ctx, f, content, rec)
	for _, w := range warns {
		outcome.Warnings = append(outcome.Warnings, w.String())
	}
	obs.RenderWarnings(string(f), len(warns))
	if err != nil {
		stage := StageExporting
		if errors.Is(err, render.ErrSyntax) {
			stage = StageRendering
		}
		return fail(stage, err)
	}

	artifact, err = o.stageProtect(ctx, f, artifact, req)
	if err != nil {
		return fail(StageProtecting, err)
	}

	doc, err := o.persist(ctx, req, f, v, artifact)
	if err != nil {
		return fail(StagePersisting, err)
	}

	outcome.Status = StatusDone
	outcome.ArtifactRef = doc.ArtifactRef
	outcome.Document = doc
	outcome.FailedStage = ""
	return outcome
}

func (o *Orchestrator) stageContent(ctx context.Context, f template.Format, v template.Version) ([]byte, error) {
	defer stageTimer(f, StageResolving)()
	return o.templates.Content(ctx, v)
}

func (o *Orchestrator) stageMask(f template.Format, rec record.Record) (record.Record, error) {
	defer stageTimer(f, StageMasking)()
	masked, stats, err := o.masker.Mask(rec)
	if err != nil {
		return nil, err
	}
	for kind, n := range stats {
		for i := 0; i < n; i++ {
			obs.MaskedValue(string(kind))
		}
	}
	return masked, nil
}

func (o *Orchestrator) stageRenderExport(ctx context.Context, f template.Format, content []byte, rec record.Record) ([]byte, []render.Warning, error) {
	done := stageTimer(f, StageRendering)
	if f == template.FormatHTML {
		body, warns, err := o.engine.RenderHTML(ctx, content, rec)
		done()
		if err != nil {
			return nil, warns, err
		}
		title, _ := rec.Title()
		defer stageTimer(f, StageExporting)()
		return export.HTML(body, title), warns, nil
	}

	doc, warns, err := o.engine.RenderTree(ctx, content, rec)
	done()
	if err != nil {
		return nil, warns, err
	}

	defer stageTimer(f, StageExporting)()
	var artifact []byte
	switch f {
	case template.FormatWord:
		artifact, err = export.Word(ctx, doc)
	case template.FormatPDF:
		artifact, err = export.PDF(ctx, doc)
	default:
		err = fmt.Errorf("no exporter for format %q", f)
	}
	return artifact, warns, err
}

func (o *Orchestrator) stageProtect(ctx context.Context, f template.Format, artifact []byte, req Request) ([]byte, error) {
	if req.Watermark == nil && req.Encryption == nil {
		return artifact, nil
	}
	defer stageTimer(f, StageProtecting)()

	if req.Watermark != nil {
		wm := secure.Watermark{Text: req.Watermark.Text, Opacity: req.Watermark.Opacity}
		if req.Watermark.ImageRef != "" {
			img, err := o.artifacts.Get(ctx, req.Watermark.ImageRef)
			if err != nil {
				return nil, fmt.Errorf("%w: load watermark image: %v", secure.ErrProtectionFailed, err)
			}
			wm.Image = img
		}
		var err error
		artifact, err = secure.ApplyWatermark(ctx, f, artifact, wm)
		if err != nil {
			if errors.Is(err, secure.ErrUnsupportedProtection) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", secure.ErrProtectionFailed, err)
		}
	}

	if req.Encryption != nil {
		p := secure.Protection{
			ReadOnly:     req.Encryption.ReadOnly || req.Encryption.Password == "",
			OpenPassword: req.Encryption.Password,
		}
		// Word has no password container; the read-only flag is its
		// protection equivalent.
		if f == template.FormatWord {
			p = secure.Protection{ReadOnly: true}
		}
		var err error
		artifact, err = secure.ApplyProtection(ctx, f, artifact, p)
		if err != nil {
			return nil, err
		}
	}
	return artifact, nil
}

// persist stores the protected artifact and its metadata row. Runs only
// after protection succeeded, never before.
func (o *Orchestrator) persist(ctx context.Context, req Request, f template.Format, v template.Version, artifact []byte) (*GeneratedDocument, error) {
	ref, err := o.artifacts.Put(ctx, ids.Ref("art")+export.FileExt(f), artifact)
	if err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	doc := &GeneratedDocument{
		ID:              uuid.NewString(),
		TemplateName:    v.TemplateName,
		TemplateVersion: v.Number,
		Format:          f,
		ArtifactRef:     ref,
		IsMasked:        req.MaskingEnabled,
		GeneratedAt:     time.Now().UTC(),
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		doc.GeneratedBy = userID
	}
	if o.docs != nil {
		if err := o.docs.SaveDocument(ctx, *doc); err != nil {
			return nil, fmt.Errorf("save document row: %w", err)
		}
	}
	return doc, nil
}

func (o *Orchestrator) auditOutcome(ctx context.Context, req Request, outcome FormatOutcome) {
	fields := map[string]any{
		"template": req.TemplateName,
		"format":   string(outcome.Format),
		"status":   string(outcome.Status),
		"masked":   req.MaskingEnabled,
	}
	event := "document.generated"
	if outcome.Status == StatusFailed {
		event = "document.generation_failed"
		fields["error_kind"] = string(outcome.ErrorKind)
		fields["stage"] = string(outcome.FailedStage)
	} else {
		fields["artifact_ref"] = outcome.ArtifactRef
	}
	_ = audit.LogEvent(ctx, event, fields)
}

// classify maps an error to the closed kind set of the output contract.
func classify(err error) ErrorKind {
	var exportErr *export.Error
	var elemErr *render.ElementError
	switch {
	case errors.Is(err, record.ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, template.ErrTemplateNotFound):
		return KindTemplateNotFound
	case errors.Is(err, template.ErrVersionNotFound):
		return KindVersionNotFound
	case errors.Is(err, template.ErrNotWritable):
		return KindTemplateNotWritable
	case errors.Is(err, render.ErrSyntax):
		return KindTemplateSyntaxError
	case errors.Is(err, masking.ErrRule):
		return KindMaskingRuleError
	case errors.Is(err, secure.ErrUnsupportedProtection):
		return KindUnsupportedProtection
	case errors.Is(err, secure.ErrProtectionFailed):
		return KindProtectionFailed
	case errors.As(err, &exportErr), errors.As(err, &elemErr):
		return KindExportError
	default:
		return KindInternal
	}
}

func stageTimer(f template.Format, s Stage) func() {
	start := time.Now()
	return func() { obs.ObserveStage(string(f), string(s), time.Since(start)) }
}
