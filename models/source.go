package models

// FundingSource registers an external party allowed to inject capital into
// pool escrows. Funding tickets reference it by ID.
type FundingSource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Authority string `json:"authority"`
}

// EscrowAccount is the source's custodial account that pool funding draws from.
func (s *FundingSource) EscrowAccount() string {
	return "source:" + s.ID
}
