package domain

// CreditPackage is a purchasable credit bundle from the static catalog.
type CreditPackage struct {
	ID      string
	Name    string
	Credits int
	PriceUS float64
	Popular bool
}

// CreditPackages is the fixed pricing catalog. Payment capture is handled
// outside this service; purchases only land here as ledger grants.
var CreditPackages = []CreditPackage{
	{ID: "starter", Name: "Starter", Credits: 10, PriceUS: 9.99},
	{ID: "professional", Name: "Professional", Credits: 50, PriceUS: 39.99, Popular: true},
	{ID: "enterprise", Name: "Enterprise", Credits: 200, PriceUS: 149.99},
}

// FindCreditPackage looks a package up by id.
func FindCreditPackage(id string) (CreditPackage, bool) {
	for _, p := range CreditPackages {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}
