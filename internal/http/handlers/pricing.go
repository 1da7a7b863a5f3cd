package handlers

import (
	"encoding/json"
	"net/http"

	"cgigen/internal/domain"
)

type pricingPackage struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Credits int     `json:"credits"`
	Price   float64 `json:"price"`
	Popular bool    `json:"popular,omitempty"`
}

// Pricing serves the static credit package catalog.
func (a *App) Pricing(w http.ResponseWriter, r *http.Request) {
	packages := make([]pricingPackage, 0, len(domain.CreditPackages))
	for _, p := range domain.CreditPackages {
		packages = append(packages, pricingPackage{
			ID:      p.ID,
			Name:    p.Name,
			Credits: p.Credits,
			Price:   p.PriceUS,
			Popular: p.Popular,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"packages": packages})
}

type purchaseRequest struct {
	Package string `json:"package"`
}

// PurchaseCredits grants a package's credits to the account. Payment
// capture happens upstream of this service; by the time this endpoint is
// called the charge has already settled.
func (a *App) PurchaseCredits(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	pkg, ok := domain.FindCreditPackage(req.Package)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown package")
		return
	}

	if err := a.Ledger.Grant(r.Context(), userID, pkg.Credits); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Str("package", pkg.ID).Msg("credits: grant failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to add credits")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"credits_added": pkg.Credits,
		"new_balance":   balance,
	})
}
