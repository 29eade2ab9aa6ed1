package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testContractHash = "0x1234567890abcdef1234567890abcdef12345678"

// fakeNode is an httptest server impersonating a Neo N3 RPC node. The handler
// receives the decoded request and returns the raw result or an RPC error.
func fakeNode(t *testing.T, handle func(req RPCRequest) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}

		result, rpcErr := handle(req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode rpc response: %v", err)
		}
	}))
}

func newTestContract(t *testing.T, node *httptest.Server) *ParkingContract {
	t.Helper()
	client, err := NewClient(Config{RPCURL: node.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return NewParkingContract(client, testContractHash)
}

func byteStringItem(s string) map[string]interface{} {
	return map[string]interface{}{"type": "ByteString", "value": hex.EncodeToString([]byte(s))}
}

func integerItem(n int64) map[string]interface{} {
	return map[string]interface{}{"type": "Integer", "value": fmt.Sprintf("%d", n)}
}

func TestRegisterVehicleSubmitsTransaction(t *testing.T) {
	node := fakeNode(t, func(req RPCRequest) (interface{}, *RPCError) {
		if req.Method != "invokefunction" {
			t.Errorf("method = %q, want invokefunction", req.Method)
		}
		if len(req.Params) != 3 {
			t.Fatalf("expected 3 params, got %d", len(req.Params))
		}
		if req.Params[0] != testContractHash {
			t.Errorf("contract hash = %v", req.Params[0])
		}
		if req.Params[1] != "registerVehicle" {
			t.Errorf("operation = %v", req.Params[1])
		}
		return map[string]interface{}{
			"state":       "HALT",
			"gasconsumed": "997780",
			"tx":          "0xfeedface",
			"stack":       []interface{}{},
		}, nil
	})
	defer node.Close()

	receipt, err := newTestContract(t, node).RegisterVehicle(context.Background(), "ABC123", "John Doe")
	if err != nil {
		t.Fatalf("register vehicle: %v", err)
	}
	if receipt.TxHash != "0xfeedface" {
		t.Fatalf("tx hash = %q, want 0xfeedface", receipt.TxHash)
	}
	if receipt.VMState != "HALT" {
		t.Fatalf("vm state = %q, want HALT", receipt.VMState)
	}
}

func TestInvokeFaultSurfacesException(t *testing.T) {
	node := fakeNode(t, func(req RPCRequest) (interface{}, *RPCError) {
		return map[string]interface{}{
			"state":     "FAULT",
			"exception": "insufficient balance",
			"stack":     []interface{}{},
		}, nil
	})
	defer node.Close()

	_, err := newTestContract(t, node).PayFee(context.Background(), "ABC123")
	if err == nil {
		t.Fatal("expected error for FAULT state")
	}
}

func TestRPCErrorPropagates(t *testing.T) {
	node := fakeNode(t, func(req RPCRequest) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32601, Message: "method not found"}
	})
	defer node.Close()

	_, err := newTestContract(t, node).SetParkingHours(context.Background(), "ABC123", 3)
	if err == nil {
		t.Fatal("expected rpc error")
	}
}

func TestGetVehicleInfoParsesStack(t *testing.T) {
	// Raw little-endian script hash; the parser reverses it for display.
	wallet := "78563412efcdab9078563412efcdab9078563412"

	node := fakeNode(t, func(req RPCRequest) (interface{}, *RPCError) {
		entry := map[string]interface{}{
			"type": "Struct",
			"value": []interface{}{
				byteStringItem("ABC123"),
				byteStringItem("John Doe"),
				map[string]interface{}{"type": "ByteString", "value": wallet},
				integerItem(3),
				integerItem(150),
			},
		}
		return map[string]interface{}{
			"state":       "HALT",
			"gasconsumed": "202130",
			"stack": []interface{}{
				map[string]interface{}{"type": "Array", "value": []interface{}{entry}},
			},
		}, nil
	})
	defer node.Close()

	infos, err := newTestContract(t, node).GetVehicleInfo(context.Background(), "0xabcdef")
	if err != nil {
		t.Fatalf("get vehicle info: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(infos))
	}

	info := infos[0]
	if info.VehicleNumber != "ABC123" {
		t.Errorf("vehicle number = %q", info.VehicleNumber)
	}
	if info.UserName != "John Doe" {
		t.Errorf("user name = %q", info.UserName)
	}
	if info.WalletAddress != "0x1234567890abcdef1234567890abcdef12345678" {
		t.Errorf("wallet address = %q", info.WalletAddress)
	}
	if info.ParkingHours != 3 {
		t.Errorf("parking hours = %d", info.ParkingHours)
	}
	if info.TotalFee != 150 {
		t.Errorf("total fee = %d", info.TotalFee)
	}
}

func TestGetVehicleInfoEmptyArray(t *testing.T) {
	node := fakeNode(t, func(req RPCRequest) (interface{}, *RPCError) {
		return map[string]interface{}{
			"state":       "HALT",
			"gasconsumed": "202130",
			"stack": []interface{}{
				map[string]interface{}{"type": "Array", "value": []interface{}{}},
			},
		}, nil
	})
	defer node.Close()

	infos, err := newTestContract(t, node).GetVehicleInfo(context.Background(), "0xabcdef")
	if err != nil {
		t.Fatalf("get vehicle info: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected no vehicles, got %d", len(infos))
	}
}

func TestGetBlockCount(t *testing.T) {
	node := fakeNode(t, func(req RPCRequest) (interface{}, *RPCError) {
		if req.Method != "getblockcount" {
			t.Errorf("method = %q, want getblockcount", req.Method)
		}
		return 123456, nil
	})
	defer node.Close()

	client, err := NewClient(Config{RPCURL: node.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	count, err := client.GetBlockCount(context.Background())
	if err != nil {
		t.Fatalf("get block count: %v", err)
	}
	if count != 123456 {
		t.Fatalf("count = %d, want 123456", count)
	}
}
