package service

import "courier/internal/domain"

// FeeCalculator is the fee-breakdown collaborator consumed by dispatch.
type FeeCalculator interface {
	Calc(amount float64, class domain.VehicleClass) domain.FeeBreakdown
}

const gstRate = 0.18

// FeeService computes the platform's cut and the rider's take-home for a
// booking amount. Pricing tables themselves are maintained elsewhere; this
// service only applies the per-class commission rates.
type FeeService struct {
	rates map[domain.VehicleClass]float64
}

// NewFeeService creates a FeeService with the standard commission rates.
func NewFeeService() *FeeService {
	return &FeeService{
		rates: map[domain.VehicleClass]float64{
			domain.VehicleTwoWheeler:   0.15,
			domain.VehicleThreeWheeler: 0.18,
			domain.VehicleTruck:        0.20,
		},
	}
}

// Calc returns the fee breakdown for an amount. GST applies to the platform
// fee only.
func (s *FeeService) Calc(amount float64, class domain.VehicleClass) domain.FeeBreakdown {
	rate, ok := s.rates[class]
	if !ok {
		rate = 0.18
	}

	platformFee := amount * rate
	gst := platformFee * gstRate

	return domain.FeeBreakdown{
		PlatformFee:   platformFee,
		GST:           gst,
		RiderEarnings: amount - platformFee - gst,
	}
}

var _ FeeCalculator = (*FeeService)(nil)
