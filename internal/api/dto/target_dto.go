package dto

type UpsertTargetRequest struct {
	PortalURL string            `json:"portal_url" binding:"required"`
	Selectors map[string]string `json:"selectors" binding:"required"`
	Enabled   bool              `json:"enabled"`
}

type TargetView struct {
	ServiceType string            `json:"service_type"`
	PortalURL   string            `json:"portal_url"`
	Selectors   map[string]string `json:"selectors"`
	Enabled     bool              `json:"enabled"`
}
