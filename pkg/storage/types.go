package storage

import "time"

// Document statuses of a catch certificate.
const (
	DocumentComplete = "COMPLETE"
	DocumentDraft    = "DRAFT"
	DocumentVoid     = "VOID"
)

// CatchCertificate is an export certificate as stored.
type CatchCertificate struct {
	DocumentNumber    string    `json:"documentNumber"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	ExporterAccountID string    `json:"exporterAccountId,omitempty"`
	ExporterContactID string    `json:"exporterContactId,omitempty"`
	ResubmitToTrade   bool      `json:"resubmitToTrade,omitempty"`
	Products          []Product `json:"products"`
}

// Product is one species line of a certificate.
type Product struct {
	SpeciesCode  string       `json:"speciesCode"`
	State        string       `json:"state,omitempty"`
	Presentation string       `json:"presentation,omitempty"`
	CaughtBy     []CatchEntry `json:"caughtBy"`
}

// CatchEntry is a single landing declared against a product.
type CatchEntry struct {
	// ID identifies the landing across certificates and is what the
	// reprocessing queue stores.
	ID     string  `json:"id"`
	Vessel string  `json:"vessel,omitempty"`
	PLN    string  `json:"pln"`
	Date   string  `json:"date"`
	Weight float64 `json:"weight,omitempty"`
	Status string  `json:"status,omitempty"`

	DataEverExpected        *bool  `json:"dataEverExpected,omitempty"`
	LandingDataExpectedDate string `json:"landingDataExpectedDate,omitempty"`
	LandingDataEndDate      string `json:"landingDataEndDate,omitempty"`
}

// ExpectsData is false only when the entry was explicitly marked as never
// expecting landing data.
func (e CatchEntry) ExpectsData() bool {
	return e.DataEverExpected == nil || *e.DataEverExpected
}

// CertificateFilter selects certificates. Empty fields do not filter.
type CertificateFilter struct {
	Statuses []string
	// IDs matches certificates with at least one catch entry carrying one
	// of these identifiers.
	IDs []string
	// ResubmitOnly keeps certificates flagged for resubmission to trade.
	ResubmitOnly bool
}

// LandingItem is one species line of a landing event.
type LandingItem struct {
	Species      string  `json:"species"`
	Weight       float64 `json:"weight"`
	Factor       float64 `json:"factor"`
	State        string  `json:"state"`
	Presentation string  `json:"presentation"`
}

// Landing is a landing event as fetched from a provider or stored.
type Landing struct {
	RssNumber      string        `json:"rssNumber"`
	DateTimeLanded time.Time     `json:"dateTimeLanded"`
	Source         string        `json:"source"`
	Items          []LandingItem `json:"items"`

	// Ignore marks a fetched landing that duplicates a stored one.
	Ignore bool `json:"-"`
}

// Stats summarises the store contents.
type Stats struct {
	CertificatesByStatus map[string]int
	Landings             int
	LandingsBySource     map[string]int
	AuditPayloads        int
}
