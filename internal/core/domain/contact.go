package domain

// ContactProfile holds the CRM-relevant contact fields extracted from a webhook.
// A non-empty DealID is authoritative: no new CRM entities are created.
type ContactProfile struct {
	ContactID     string
	Name          string
	Email         string
	Phone         string
	Company       string
	CaseReference string
	Profession    string
	NationalID    string
	DealID        string
	Avatar        string
}

// DisplayName returns the contact name or the customer fallback.
func (p ContactProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}

	return DefaultCustomerName
}

// HasDeal reports whether a CRM deal is already linked.
func (p ContactProfile) HasDeal() bool {
	return p.DealID != ""
}
