package domain

// FeeBreakdown is the output of the fee-calculation collaborator.
type FeeBreakdown struct {
	PlatformFee   float64 `json:"platform_fee"`
	GST           float64 `json:"gst"`
	RiderEarnings float64 `json:"rider_earnings"`
}
