package dto

type PurchasePinRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
	ExamType    string `json:"exam_type" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
}

type PurchasePinResponse struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	PinCode  string `json:"pin_code,omitempty"`
	Serial   string `json:"serial_number,omitempty"`
	Refunded bool   `json:"refunded"`
}

type CashRequestRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
	Network     string `json:"network" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
}

type CashRequestResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phone_number"`
	Network     string `json:"network"`
	Amount      int64  `json:"amount"`
}

type ConfirmTransferRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

type OperatorActionRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
	Note       string `json:"note"`
}

type CashOrderView struct {
	OrderID       string `json:"order_id"`
	RequesterID   string `json:"requester_id"`
	Network       string `json:"network"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	Refunded      bool   `json:"refunded"`
	CreatedAt     string `json:"created_at"`
}
