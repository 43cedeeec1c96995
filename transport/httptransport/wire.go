package httptransport

import (
	"time"

	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

// JSONDocument is the wire representation of a quotation document.
type JSONDocument struct {
	ID             string                 `json:"id"`
	Number         string                 `json:"number"`
	Prefix         string                 `json:"prefix"`
	Sequential     int                    `json:"sequential"`
	YearCode       string                 `json:"yearCode"`
	TimeCode       string                 `json:"timeCode"`
	VersionOrdinal int                    `json:"versionOrdinal"`
	IsActive       bool                   `json:"isActive"`
	Status         string                 `json:"status"`
	Fields         map[string]interface{} `json:"fields,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toJSONDocument(doc *quotesync.QuotationDocument) JSONDocument {
	return JSONDocument{
		ID:             doc.ID,
		Number:         doc.Number,
		Prefix:         doc.Prefix,
		Sequential:     doc.Sequential,
		YearCode:       doc.YearCode,
		TimeCode:       doc.TimeCode,
		VersionOrdinal: doc.VersionOrdinal,
		IsActive:       doc.IsActive,
		Status:         doc.Status,
		Fields:         doc.Fields,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func fromJSONDocument(jd JSONDocument) *quotesync.QuotationDocument {
	return &quotesync.QuotationDocument{
		ID:             jd.ID,
		Number:         jd.Number,
		Prefix:         jd.Prefix,
		Sequential:     jd.Sequential,
		YearCode:       jd.YearCode,
		TimeCode:       jd.TimeCode,
		VersionOrdinal: jd.VersionOrdinal,
		IsActive:       jd.IsActive,
		Status:         jd.Status,
		Fields:         jd.Fields,
		CreatedAt:      jd.CreatedAt,
		UpdatedAt:      jd.UpdatedAt,
	}
}

// RollbackRequest is the body of a rollback POST.
type RollbackRequest struct {
	VersionToDelete   string `json:"versionToDelete" validate:"required"`
	PreviousVersionID string `json:"previousVersionId" validate:"required"`
}

// RollbackResponse reports a successful rollback. The snapshot count keeps the
// field name the consuming frontend already expects.
type RollbackResponse struct {
	Success             bool `json:"success"`
	SnapshotsEliminados int  `json:"snapshotsEliminados"`
}

// ErrorResponse is the error body for all failing endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
