package dto

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type AuthResponse struct {
	Token             string `json:"token"`
	User              any    `json:"user"`
	ActivationInvoice string `json:"activation_invoice,omitempty"`
}

type LiabilitiesResponse struct {
	TotalSat int64 `json:"total_sat"`
}
