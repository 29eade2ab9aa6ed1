package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/ParkFee-Network/parking_layer/internal/chain"
)

type stubContract struct {
	err error
}

func (s *stubContract) RegisterVehicle(ctx context.Context, vehicleNumber, userName string) (chain.TxResult, error) {
	return s.result()
}

func (s *stubContract) SetParkingHours(ctx context.Context, vehicleNumber string, hours int64) (chain.TxResult, error) {
	return s.result()
}

func (s *stubContract) PayFee(ctx context.Context, vehicleNumber string) (chain.TxResult, error) {
	return s.result()
}

func (s *stubContract) DepositBalance(ctx context.Context, amount int64) (chain.TxResult, error) {
	return s.result()
}

func (s *stubContract) GetVehicleInfo(ctx context.Context, userAddress string) ([]chain.VehicleInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

func (s *stubContract) result() (chain.TxResult, error) {
	if s.err != nil {
		return chain.TxResult{}, s.err
	}
	return chain.TxResult{TxHash: "0xdeadbeef", VMState: "HALT"}, nil
}

func TestSubmitReturnsReceipt(t *testing.T) {
	svc := New(&stubContract{}, 0, nil)

	receipt, err := svc.PayFee(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("pay fee: %v", err)
	}
	if receipt.TxHash != "0xdeadbeef" {
		t.Fatalf("tx hash = %q", receipt.TxHash)
	}
}

func TestFailuresWrapSentinel(t *testing.T) {
	svc := New(&stubContract{err: errors.New("connection refused")}, 0, nil)

	if _, err := svc.RegisterVehicle(context.Background(), "ABC123", "John Doe"); !errors.Is(err, ErrSettlementFailure) {
		t.Fatalf("register: expected ErrSettlementFailure, got %v", err)
	}
	if _, err := svc.SetParkingHours(context.Background(), "ABC123", 3); !errors.Is(err, ErrSettlementFailure) {
		t.Fatalf("set hours: expected ErrSettlementFailure, got %v", err)
	}
	if _, err := svc.GetVehicleInfo(context.Background(), "0xabc"); !errors.Is(err, ErrSettlementFailure) {
		t.Fatalf("info: expected ErrSettlementFailure, got %v", err)
	}
}

func TestUnconfiguredService(t *testing.T) {
	svc := New(nil, 0, nil)

	if svc.Configured() {
		t.Fatal("expected Configured() to be false")
	}
	if _, err := svc.PayFee(context.Background(), "ABC123"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := svc.GetVehicleInfo(context.Background(), "0xabc"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
