package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// =============================================================================
// JSON-RPC Envelope
// =============================================================================

// RPCRequest is a JSON-RPC 2.0 request to the Neo node.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response from the Neo node.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// =============================================================================
// Invocation Types
// =============================================================================

// ContractParam is a typed argument for a contract invocation.
type ContractParam struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// NewStringParam creates a String contract parameter.
func NewStringParam(value string) ContractParam {
	return ContractParam{Type: "String", Value: value}
}

// NewIntegerParam creates an Integer contract parameter.
func NewIntegerParam(value *big.Int) ContractParam {
	return ContractParam{Type: "Integer", Value: value.String()}
}

// NewHash160Param creates a Hash160 contract parameter from a script hash or
// address string.
func NewHash160Param(value string) ContractParam {
	return ContractParam{Type: "Hash160", Value: value}
}

// StackItem is a single item on the VM result stack.
type StackItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// InvokeResult is the node's response to an invokefunction call.
type InvokeResult struct {
	Script      string      `json:"script"`
	State       string      `json:"state"`
	GasConsumed string      `json:"gasconsumed"`
	Exception   string      `json:"exception"`
	Tx          string      `json:"tx"`
	Stack       []StackItem `json:"stack"`
}

// TxResult is the receipt returned for a submitted settlement transaction.
type TxResult struct {
	TxHash  string `json:"tx_hash"`
	VMState string `json:"vm_state"`
}
