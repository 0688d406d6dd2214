package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"docforge.org/internal/blob"
	"docforge.org/internal/docgen"
	"docforge.org/internal/obs"
	"docforge.org/internal/template"
)

const smokeData = `{
	"title": "Smoke Report",
	"owner": {"name": "Jane", "phone": "13812345678", "id_number": "110101199001011234"},
	"sales": [
		{"month": "Jan", "amount": 120},
		{"month": "Feb", "amount": 95},
		{"month": "Mar", "amount": 143}
	]
}`

func main() {
	log.SetFlags(0)
	obs.Init()
	obs.InitBuildInfo("dev", "none")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	artifacts := blob.NewMemory()
	templates := template.NewInMemory(blob.NewMemory())

	// Version chain: append twice, roll back, then check that numbers keep
	// increasing and the chain never shrinks.
	v1, err := templates.Append(ctx, "report", template.FormatHTML, []byte("<p>v1 {{title}}</p>"), "initial")
	if err != nil {
		log.Fatalf("append v1: %v", err)
	}
	if _, err = templates.Append(ctx, "report", template.FormatHTML, []byte("<p>v2 {{title}}</p>"), "rewrite"); err != nil {
		log.Fatalf("append v2: %v", err)
	}
	v3, err := templates.Rollback(ctx, "report", template.FormatHTML, v1.Number)
	if err != nil {
		log.Fatalf("rollback: %v", err)
	}
	head, err := templates.Resolve(ctx, "report", template.FormatHTML, 0)
	if err != nil {
		log.Fatalf("resolve head: %v", err)
	}
	if head.Number != v3.Number || head.Number != 3 {
		log.Fatalf("head should be the rollback version, got v%d", head.Number)
	}
	content, err := templates.Content(ctx, head)
	if err != nil || string(content) != "<p>v1 {{title}}</p>" {
		log.Fatalf("rollback head content mismatch: %q (%v)", content, err)
	}
	chain, err := templates.History(ctx, "report", template.FormatHTML)
	if err != nil || len(chain) != 3 {
		log.Fatalf("chain length after rollback: %d (%v)", len(chain), err)
	}

	for _, f := range []template.Format{template.FormatWord, template.FormatPDF} {
		tpl := "# {{title}}\nOwner: {{owner.name}} / {{owner.phone}} / {{owner.id_number}}\n{{table sales}}\n{{chart sales}}"
		if _, err := templates.Append(ctx, "report", f, []byte(tpl), "initial"); err != nil {
			log.Fatalf("append %s template: %v", f, err)
		}
	}

	orch, err := docgen.New(templates, artifacts)
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}

	// Full run: masking on, all three formats.
	res, err := orch.Generate(ctx, docgen.Request{
		TemplateName:   "report",
		Data:           []byte(smokeData),
		Formats:        []template.Format{template.FormatWord, template.FormatPDF, template.FormatHTML},
		MaskingEnabled: true,
	})
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	if !res.Done() {
		for _, o := range res.Outcomes {
			if o.Status != docgen.StatusDone {
				log.Fatalf("format %s failed at %s: %s (%s)", o.Format, o.FailedStage, o.Detail, o.ErrorKind)
			}
		}
	}
	for _, o := range res.Outcomes {
		data, err := artifacts.Get(ctx, o.ArtifactRef)
		if err != nil {
			log.Fatalf("artifact %s: %v", o.ArtifactRef, err)
		}
		if o.Format == template.FormatHTML {
			body := string(data)
			if !strings.Contains(body, "XXX10119900101XXXX") || strings.Contains(body, "110101199001011234") {
				log.Fatal("masking did not redact the id number")
			}
			if !strings.Contains(body, "XXX1234XXXX") {
				log.Fatal("masking did not redact the phone number")
			}
		}
	}

	// Partial success: break the PDF template, Word must still complete.
	if _, err := templates.Append(ctx, "report", template.FormatPDF, []byte("{{#if broken}}"), "bad edit"); err != nil {
		log.Fatalf("append broken pdf template: %v", err)
	}
	res, err = orch.Generate(ctx, docgen.Request{
		TemplateName: "report",
		Data:         []byte(smokeData),
		Formats:      []template.Format{template.FormatWord, template.FormatPDF},
	})
	if err != nil {
		log.Fatalf("generate partial: %v", err)
	}
	var wordDone, pdfFailed bool
	for _, o := range res.Outcomes {
		switch {
		case o.Format == template.FormatWord && o.Status == docgen.StatusDone:
			wordDone = true
		case o.Format == template.FormatPDF && o.Status == docgen.StatusFailed &&
			o.ErrorKind == docgen.KindTemplateSyntaxError:
			pdfFailed = true
		}
	}
	if !wordDone || !pdfFailed {
		log.Fatalf("partial-success contract violated: %+v", res.Outcomes)
	}

	// Fail-closed: HTML cannot be encrypted, so nothing may be persisted.
	before := artifacts.Len()
	res, err = orch.Generate(ctx, docgen.Request{
		TemplateName: "report",
		Data:         []byte(smokeData),
		Formats:      []template.Format{template.FormatHTML},
		Encryption:   &docgen.EncryptionConfig{Password: "x"},
	})
	if err != nil {
		log.Fatalf("generate protected html: %v", err)
	}
	o := res.Outcomes[0]
	if o.Status != docgen.StatusFailed || o.ErrorKind != docgen.KindUnsupportedProtection {
		log.Fatalf("expected UnsupportedProtection, got %+v", o)
	}
	if artifacts.Len() != before {
		log.Fatal("fail-closed violated: artifact persisted after protection failure")
	}

	fmt.Println("✅ docgen smoke test passed")
}
