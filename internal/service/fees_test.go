package service

import (
	"math"
	"testing"

	"courier/internal/domain"
)

func TestFeeService_PerClassRates(t *testing.T) {
	svc := NewFeeService()

	cases := []struct {
		class domain.VehicleClass
		rate  float64
	}{
		{domain.VehicleTwoWheeler, 0.15},
		{domain.VehicleThreeWheeler, 0.18},
		{domain.VehicleTruck, 0.20},
	}

	const amount = 1000.0
	for _, tc := range cases {
		t.Run(string(tc.class), func(t *testing.T) {
			got := svc.Calc(amount, tc.class)

			wantPlatform := amount * tc.rate
			wantGST := wantPlatform * 0.18
			if got.PlatformFee != wantPlatform {
				t.Errorf("platform fee: got %.2f want %.2f", got.PlatformFee, wantPlatform)
			}
			if got.GST != wantGST {
				t.Errorf("gst: got %.2f want %.2f", got.GST, wantGST)
			}
			if got.RiderEarnings != amount-wantPlatform-wantGST {
				t.Errorf("rider earnings: got %.2f", got.RiderEarnings)
			}
		})
	}
}

func TestFeeService_BreakdownSumsToAmount(t *testing.T) {
	svc := NewFeeService()

	got := svc.Calc(333.33, domain.VehicleTwoWheeler)
	sum := got.PlatformFee + got.GST + got.RiderEarnings
	if math.Abs(sum-333.33) > 1e-9 {
		t.Errorf("breakdown must sum to the amount, got %.6f", sum)
	}
}

func TestFeeService_UnknownClassFallsBack(t *testing.T) {
	svc := NewFeeService()

	got := svc.Calc(100, domain.VehicleClass("HOVERCRAFT"))
	if got.PlatformFee != 18 {
		t.Errorf("expected fallback 18%% rate, got %.2f", got.PlatformFee)
	}
}
