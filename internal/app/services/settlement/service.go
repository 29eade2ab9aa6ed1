// Package settlement relays parking fee transactions to the on-chain
// settlement layer.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ParkFee-Network/parking_layer/internal/app/metrics"
	"github.com/ParkFee-Network/parking_layer/internal/chain"
	"github.com/ParkFee-Network/parking_layer/pkg/logger"
)

// ErrSettlementFailure wraps any network, node, or contract failure from the
// settlement layer. Causes are not distinguished further at this level and no
// call is retried.
var ErrSettlementFailure = errors.New("settlement layer call failed")

// ErrNotConfigured is returned when no settlement contract was wired at
// startup.
var ErrNotConfigured = errors.New("settlement layer not configured")

// Contract is the on-chain surface the service depends on.
type Contract interface {
	RegisterVehicle(ctx context.Context, vehicleNumber, userName string) (chain.TxResult, error)
	SetParkingHours(ctx context.Context, vehicleNumber string, hours int64) (chain.TxResult, error)
	PayFee(ctx context.Context, vehicleNumber string) (chain.TxResult, error)
	DepositBalance(ctx context.Context, amount int64) (chain.TxResult, error)
	GetVehicleInfo(ctx context.Context, userAddress string) ([]chain.VehicleInfo, error)
}

// Service submits settlement transactions and relays receipts. It shares no
// state with the session manager; a vehicle registered here is not registered
// in the record store and vice versa.
type Service struct {
	contract Contract
	timeout  time.Duration
	log      *logger.Logger
}

// New constructs a settlement service. Every call is bounded by the timeout
// on top of whatever deadline the caller carries.
func New(contract Contract, timeout time.Duration, log *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Service{contract: contract, timeout: timeout, log: log}
}

// Configured reports whether a contract is wired.
func (s *Service) Configured() bool {
	return s.contract != nil
}

// RegisterVehicle registers a vehicle on the settlement layer.
func (s *Service) RegisterVehicle(ctx context.Context, vehicleNumber, userName string) (chain.TxResult, error) {
	return s.submit(ctx, "registerVehicle", func(ctx context.Context) (chain.TxResult, error) {
		return s.contract.RegisterVehicle(ctx, vehicleNumber, userName)
	})
}

// SetParkingHours sets the allotted hours for a vehicle.
func (s *Service) SetParkingHours(ctx context.Context, vehicleNumber string, hours int64) (chain.TxResult, error) {
	return s.submit(ctx, "setParkingHours", func(ctx context.Context) (chain.TxResult, error) {
		return s.contract.SetParkingHours(ctx, vehicleNumber, hours)
	})
}

// PayFee settles the accumulated fee for a vehicle.
func (s *Service) PayFee(ctx context.Context, vehicleNumber string) (chain.TxResult, error) {
	return s.submit(ctx, "payFee", func(ctx context.Context) (chain.TxResult, error) {
		return s.contract.PayFee(ctx, vehicleNumber)
	})
}

// DepositBalance tops up the contract balance.
func (s *Service) DepositBalance(ctx context.Context, amount int64) (chain.TxResult, error) {
	return s.submit(ctx, "depositBalance", func(ctx context.Context) (chain.TxResult, error) {
		return s.contract.DepositBalance(ctx, amount)
	})
}

// GetVehicleInfo returns all vehicles registered by a user address.
func (s *Service) GetVehicleInfo(ctx context.Context, userAddress string) ([]chain.VehicleInfo, error) {
	if s.contract == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	infos, err := s.contract.GetVehicleInfo(ctx, userAddress)
	metrics.RecordSettlementCall("getVehicleInfo", err)
	if err != nil {
		s.log.WithError(err).WithField("user_address", userAddress).Warn("vehicle info lookup failed")
		return nil, fmt.Errorf("%w: getVehicleInfo for %s: %v", ErrSettlementFailure, userAddress, err)
	}
	return infos, nil
}

func (s *Service) submit(ctx context.Context, operation string, call func(context.Context) (chain.TxResult, error)) (chain.TxResult, error) {
	if s.contract == nil {
		return chain.TxResult{}, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, err := call(ctx)
	metrics.RecordSettlementCall(operation, err)
	if err != nil {
		s.log.WithError(err).WithField("operation", operation).Warn("settlement call failed")
		return chain.TxResult{}, fmt.Errorf("%w: %s: %v", ErrSettlementFailure, operation, err)
	}

	s.log.WithField("operation", operation).
		WithField("tx_hash", receipt.TxHash).
		Info("settlement transaction submitted")
	return receipt, nil
}
