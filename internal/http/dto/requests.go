package dto

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateBountyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceSat    int64  `json:"price_sat"`
}

type CreateCaseRequest struct {
	BountyID string `json:"bounty_id"`
	Quantity int64  `json:"quantity"`
	Details  string `json:"details,omitempty"`
}

type WithdrawRequest struct {
	PaymentRequest string `json:"payment_request"`
}

type DeactivateRequest struct {
	PaymentRequest string `json:"payment_request"`
}

type SetDisabledRequest struct {
	Disabled bool `json:"disabled"`
}
