package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Instruction types. The core never performs I/O itself; it hands these to
// the dispatch layer which executes and sequences them.
const (
	InstructionTransfer = "transfer"
	InstructionInvoke   = "invoke_contract"
)

// Coin is an amount in a named denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

// Instruction 出站指令。对核心而言是不透明的：转账或调用外部合约。
type Instruction struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Target string          `json:"target"`
	Msg    json.RawMessage `json:"msg,omitempty"`
	Funds  []Coin          `json:"funds,omitempty"`
}

// NewTransfer builds a plain value-transfer instruction.
func NewTransfer(to string, coin Coin) Instruction {
	return Instruction{
		ID:     uuid.New().String(),
		Type:   InstructionTransfer,
		Target: to,
		Funds:  []Coin{coin},
	}
}

// NewInvoke builds an external-contract call instruction.
func NewInvoke(contract string, msg any, funds ...Coin) (Instruction, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		ID:     uuid.New().String(),
		Type:   InstructionInvoke,
		Target: contract,
		Msg:    payload,
		Funds:  funds,
	}, nil
}

// OperationResult is what every public execute operation returns: the
// outbound instructions plus structured log attributes.
type OperationResult struct {
	Instructions []Instruction     `json:"instructions"`
	Attributes   map[string]string `json:"attributes"`
}

// NewOperationResult initializes an empty result for the given method.
func NewOperationResult(method string) *OperationResult {
	return &OperationResult{
		Instructions: make([]Instruction, 0),
		Attributes:   map[string]string{"method": method},
	}
}

// Add appends instructions to the result.
func (r *OperationResult) Add(instrs ...Instruction) {
	r.Instructions = append(r.Instructions, instrs...)
}
