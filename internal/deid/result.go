package deid

import (
	"fmt"
	"strings"
	"time"

	"github.com/ssgrummons/RedactifAI/internal/docio"
	"github.com/ssgrummons/RedactifAI/internal/match"
)

// Status is the terminal state of one de-identification request
type Status string

const (
	// StatusSuccess means a masked document was produced. Unmatched
	// entities do not demote the status; they are counted instead.
	StatusSuccess Status = "success"

	// StatusFailure means no masked document could be produced
	StatusFailure Status = "failure"
)

// Result contains the outcome of de-identifying one document
type Result struct {
	// DocumentID correlates this request across logs
	DocumentID string

	// Status is success or failure
	Status Status

	// MaskedDocument holds the masked bytes in the input format; empty on
	// failure
	MaskedDocument []byte

	// Format is the document format processed
	Format docio.Format

	// PagesProcessed counts pages in the document
	PagesProcessed int

	// EntitiesDetected counts entities the PHI provider reported
	EntitiesDetected int

	// RegionsProduced counts mask regions painted
	RegionsProduced int

	// EntitiesUnmatched counts entities that could not be located; the
	// document is still produced
	EntitiesUnmatched int

	// EntitiesFiltered counts entities dropped by the confidence threshold
	EntitiesFiltered int

	// Regions lists the produced mask regions ordered by (page, y, x)
	Regions []match.MaskRegion

	// Duration is the total processing time
	Duration time.Duration

	// Errors lists anomalies in occurrence order, including non-fatal ones
	Errors []string
}

// NewResult creates a result for the given document
func NewResult(documentID string, format docio.Format) *Result {
	return &Result{
		DocumentID: documentID,
		Format:     format,
	}
}

// AddError appends an anomaly to the ordered error list
func (r *Result) AddError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Fail marks the result as failed with the given error
func (r *Result) Fail(err error) {
	r.Status = StatusFailure
	r.MaskedDocument = nil
	r.AddError("%v", err)
}

// Summary returns a human-readable summary of the result
func (r *Result) Summary() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Document %s: %s\n", r.DocumentID, r.Status))
	sb.WriteString(fmt.Sprintf("  Pages: %d\n", r.PagesProcessed))
	sb.WriteString(fmt.Sprintf("  Entities detected: %d\n", r.EntitiesDetected))
	sb.WriteString(fmt.Sprintf("  Regions produced: %d\n", r.RegionsProduced))
	sb.WriteString(fmt.Sprintf("  Entities unmatched: %d\n", r.EntitiesUnmatched))
	sb.WriteString(fmt.Sprintf("  Entities filtered: %d\n", r.EntitiesFiltered))
	sb.WriteString(fmt.Sprintf("  Duration: %v\n", r.Duration))

	if len(r.Errors) > 0 {
		sb.WriteString("  Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("    - %s\n", e))
		}
	}

	return sb.String()
}
