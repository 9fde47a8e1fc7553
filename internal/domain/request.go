package domain

// Category is one entry in the canonical category taxonomy.
type Category struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

// Wallet is a funding source the user can attribute transactions to.
type Wallet struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// UserPreferences carries optional per-user defaults for a parse request.
type UserPreferences struct {
	DefaultWalletID string `json:"defaultWalletId,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
	Currency        string `json:"currency,omitempty"`
}

// ParseRequest is the single inbound request type. Text is required and
// non-empty; Stream defaults to true and DisableCache to false at the
// transport layer.
type ParseRequest struct {
	Text            string           `json:"text"`
	UserPreferences *UserPreferences `json:"userPreferences,omitempty"`
	Stream          bool             `json:"stream"`
	DisableCache    bool             `json:"disableCache"`

	// UserID identifies the owning user for history lookups. Filled by
	// the transport layer from the session, not by the caller.
	UserID string `json:"-"`
}
