package inventory

// CanServe reports whether a receiving number with the given daily limit
// and usage can absorb a transfer of amount. Remaining capacity must cover
// the full amount; partial service is never offered.
func CanServe(dailyLimit, usedToday, amount int64) bool {
	return amount > 0 && dailyLimit-usedToday >= amount
}

var pinOrderTransitions = map[string][]string{
	PinOrderPaid: {PinOrderCompleted, PinOrderFailed},
}

var cashOrderTransitions = map[string][]string{
	CashOrderPending:     {CashOrderAirtimeSent, CashOrderRejected},
	CashOrderAirtimeSent: {CashOrderCompleted, CashOrderRejected},
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidPinOrderTransition reports whether a PIN order may move from one
// status to another. Completed and failed are terminal.
func ValidPinOrderTransition(from, to string) bool {
	return contains(pinOrderTransitions[from], to)
}

// ValidCashOrderTransition reports whether a cash order may move from one
// status to another. A pending order can be rejected directly when the
// user never confirms the transfer; completed and rejected are terminal.
func ValidCashOrderTransition(from, to string) bool {
	return contains(cashOrderTransitions[from], to)
}
