package chain

import (
	"context"
	"fmt"
	"math/big"
)

// VehicleInfo is one vehicle registration read back from the contract.
type VehicleInfo struct {
	VehicleNumber string `json:"vehicle_number"`
	UserName      string `json:"user_name"`
	WalletAddress string `json:"wallet_address"`
	ParkingHours  int64  `json:"parking_hours"`
	TotalFee      int64  `json:"total_fee"`
}

// ParkingContract wraps the ParkingFeeSystem contract. Vehicle registrations
// held on-chain are independent of the registry database; the two are never
// reconciled here.
type ParkingContract struct {
	client       *Client
	contractHash string
}

// NewParkingContract creates a new contract interface.
func NewParkingContract(client *Client, contractHash string) *ParkingContract {
	return &ParkingContract{client: client, contractHash: contractHash}
}

// RegisterVehicle registers a vehicle for the user on the settlement layer.
func (p *ParkingContract) RegisterVehicle(ctx context.Context, vehicleNumber, userName string) (TxResult, error) {
	return p.client.InvokeSubmit(ctx, p.contractHash, "registerVehicle",
		NewStringParam(vehicleNumber), NewStringParam(userName))
}

// SetParkingHours sets the allotted parking hours for a vehicle.
func (p *ParkingContract) SetParkingHours(ctx context.Context, vehicleNumber string, hours int64) (TxResult, error) {
	return p.client.InvokeSubmit(ctx, p.contractHash, "setParkingHours",
		NewStringParam(vehicleNumber), NewIntegerParam(big.NewInt(hours)))
}

// PayFee settles the accumulated fee for a vehicle.
func (p *ParkingContract) PayFee(ctx context.Context, vehicleNumber string) (TxResult, error) {
	return p.client.InvokeSubmit(ctx, p.contractHash, "payFee",
		NewStringParam(vehicleNumber))
}

// DepositBalance tops up the caller's balance held by the contract.
func (p *ParkingContract) DepositBalance(ctx context.Context, amount int64) (TxResult, error) {
	return p.client.InvokeSubmit(ctx, p.contractHash, "depositBalance",
		NewIntegerParam(big.NewInt(amount)))
}

// GetVehicleInfo returns all vehicles registered by a user address.
func (p *ParkingContract) GetVehicleInfo(ctx context.Context, userAddress string) ([]VehicleInfo, error) {
	stack, err := p.client.InvokeRead(ctx, p.contractHash, "getVehicleInfo",
		NewHash160Param(userAddress))
	if err != nil {
		return nil, err
	}
	if len(stack) == 0 {
		return nil, fmt.Errorf("getVehicleInfo: empty result stack")
	}

	entries, err := ParseArray(stack[0])
	if err != nil {
		return nil, fmt.Errorf("getVehicleInfo: %w", err)
	}

	infos := make([]VehicleInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := parseVehicleInfo(entry)
		if err != nil {
			return nil, fmt.Errorf("getVehicleInfo: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func parseVehicleInfo(item StackItem) (VehicleInfo, error) {
	fields, err := ParseArray(item)
	if err != nil {
		return VehicleInfo{}, err
	}
	if len(fields) < 5 {
		return VehicleInfo{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	var info VehicleInfo
	if info.VehicleNumber, err = ParseString(fields[0]); err != nil {
		return VehicleInfo{}, fmt.Errorf("vehicle number: %w", err)
	}
	if info.UserName, err = ParseString(fields[1]); err != nil {
		return VehicleInfo{}, fmt.Errorf("user name: %w", err)
	}
	if info.WalletAddress, err = ParseHash160(fields[2]); err != nil {
		return VehicleInfo{}, fmt.Errorf("wallet address: %w", err)
	}

	hours, err := ParseInteger(fields[3])
	if err != nil {
		return VehicleInfo{}, fmt.Errorf("parking hours: %w", err)
	}
	info.ParkingHours = hours.Int64()

	fee, err := ParseInteger(fields[4])
	if err != nil {
		return VehicleInfo{}, fmt.Errorf("total fee: %w", err)
	}
	info.TotalFee = fee.Int64()

	return info, nil
}
