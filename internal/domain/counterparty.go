package domain

// CounterpartyType enumerates the counterparty roles spec.md §3 names.
type CounterpartyType string

const (
	CounterpartyClient          CounterpartyType = "Client"
	CounterpartyInternalEntity  CounterpartyType = "InternalEntity"
	CounterpartyBroker          CounterpartyType = "Broker"
	CounterpartyOther           CounterpartyType = "Other"
)

// KYCStatus is the know-your-customer status of a Counterparty.
type KYCStatus string

const (
	KYCApproved KYCStatus = "Approved"
	KYCPending  KYCStatus = "Pending"
	KYCRejected KYCStatus = "Rejected"
)

// Counterparty is keyed by CounterpartyID.
type Counterparty struct {
	CounterpartyID string           `json:"counterpartyId"`
	Type           CounterpartyType `json:"type"`
	Status         KYCStatus        `json:"status"`
}

// AggregationUnit is a regulatory reporting unit with market affinity and a
// responsible officer (spec.md §3).
type AggregationUnit struct {
	AggregationUnitID  string `json:"aggregationUnitId"`
	Market             string `json:"market"`
	ResponsibleOfficer string `json:"responsibleOfficer"`
}
