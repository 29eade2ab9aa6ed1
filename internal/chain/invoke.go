package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// InvokeRead invokes a contract function and returns the result stack. The
// call must HALT; a FAULT surfaces the VM exception.
func (c *Client) InvokeRead(ctx context.Context, contractHash, method string, params ...ContractParam) ([]StackItem, error) {
	result, err := c.invoke(ctx, contractHash, method, params)
	if err != nil {
		return nil, err
	}
	return result.Stack, nil
}

// InvokeSubmit invokes a state-changing contract function through the node's
// wallet and returns the transaction receipt. No retry is attempted; a
// failure is reported to the caller as-is.
func (c *Client) InvokeSubmit(ctx context.Context, contractHash, method string, params ...ContractParam) (TxResult, error) {
	result, err := c.invoke(ctx, contractHash, method, params)
	if err != nil {
		return TxResult{}, err
	}
	return TxResult{TxHash: result.Tx, VMState: result.State}, nil
}

func (c *Client) invoke(ctx context.Context, contractHash, method string, params []ContractParam) (*InvokeResult, error) {
	if params == nil {
		params = []ContractParam{}
	}
	raw, err := c.Call(ctx, "invokefunction", []interface{}{contractHash, method, params})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	var result InvokeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal invoke result: %w", err)
	}

	if result.State != "HALT" {
		return nil, fmt.Errorf("%s failed: %s", method, result.Exception)
	}
	return &result, nil
}
