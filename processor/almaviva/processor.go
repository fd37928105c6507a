// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package almaviva implements the transaction-level processor. It buys gas,
// charges the intrinsic cost, drives the outermost call frame through a
// recursive run context shared with the interpreter, and settles refunds.
package almaviva

import (
	"fmt"

	"github.com/figaro-vm/figaro"
)

const (
	TxGas                     = 21_000
	TxGasContractCreation     = 53_000
	TxDataNonZeroGasEIP2028   = 16
	TxDataZeroGasEIP2028      = 4
	TxAccessListAddressGas    = 2400
	TxAccessListStorageKeyGas = 1900
)

func init() {
	figaro.RegisterProcessorFactory("almaviva", newProcessor)
}

func newProcessor(interpreter figaro.Interpreter) figaro.Processor {
	return &processor{
		interpreter: interpreter,
	}
}

type processor struct {
	interpreter figaro.Interpreter
}

func (p *processor) Run(
	blockParams figaro.BlockParameters,
	transaction figaro.Transaction,
	context figaro.TransactionContext,
) (figaro.Receipt, error) {
	errorReceipt := figaro.Receipt{
		Success: false,
		GasUsed: transaction.GasLimit,
	}
	gas := transaction.GasLimit

	if err := buyGas(transaction, context); err != nil {
		return errorReceipt, nil
	}

	if transaction.Recipient == nil &&
		blockParams.Revision >= figaro.R12_Shanghai &&
		len(transaction.Input) > maxInitCodeSize {
		return errorReceipt, nil
	}

	intrinsicGas := calculateIntrinsicGas(transaction, blockParams.Revision)
	if gas < intrinsicGas {
		return errorReceipt, nil
	}
	gas -= intrinsicGas

	if err := checkNonce(transaction, context); err != nil {
		return errorReceipt, nil
	}

	if blockParams.Revision >= figaro.R09_Berlin {
		setUpAccessList(blockParams, transaction, context)
	}

	runContext := runContext{
		TransactionContext: context,
		interpreter:        p.interpreter,
		blockParameters:    blockParams,
		transactionParameters: figaro.TransactionParameters{
			Origin:   transaction.Sender,
			GasPrice: transaction.GasPrice,
		},
	}

	kind := figaro.Call
	callParameters := figaro.CallParameters{
		Sender: transaction.Sender,
		Value:  transaction.Value,
		Input:  transaction.Input,
		Gas:    gas,
	}
	if transaction.Recipient == nil {
		// the nested create increments the sender nonce
		kind = figaro.Create
	} else {
		callParameters.Recipient = *transaction.Recipient
		incrementNonce(context, transaction.Sender)
	}

	result, err := runContext.Call(kind, callParameters)
	if err != nil {
		return errorReceipt, err
	}

	gasLeft := calculateGasLeft(transaction, result, blockParams.Revision)
	refundGas(transaction, context, gasLeft)

	var createdAddress *figaro.Address
	if kind == figaro.Create && result.Success {
		created := result.CreatedAddress
		createdAddress = &created
	}

	var logs []figaro.Log
	if result.Success {
		logs = context.GetLogs()
	}

	return figaro.Receipt{
		Success:         result.Success,
		GasUsed:         transaction.GasLimit - gasLeft,
		ContractAddress: createdAddress,
		Output:          result.Output,
		Logs:            logs,
	}, nil
}

// calculateGasLeft applies the capped refund to the gas remaining after the
// outermost frame finished.
func calculateGasLeft(transaction figaro.Transaction, result figaro.CallResult, revision figaro.Revision) figaro.Gas {
	gasLeft := result.GasLeft
	if result.Success {
		gasUsed := transaction.GasLimit - gasLeft
		refund := gasUsed / 2
		if revision >= figaro.R10_London {
			refund = gasUsed / 5
		}
		if refund > result.GasRefund {
			refund = result.GasRefund
		}
		gasLeft += refund
	}
	return gasLeft
}

// calculateIntrinsicGas determines the up-front cost of the transaction
// before any code runs.
func calculateIntrinsicGas(transaction figaro.Transaction, revision figaro.Revision) figaro.Gas {
	var gas figaro.Gas
	if transaction.Recipient == nil {
		gas = TxGasContractCreation
		if revision >= figaro.R12_Shanghai {
			gas += figaro.Gas(figaro.SizeInWords(uint64(len(transaction.Input)))) * initCodeWordGas
		}
	} else {
		gas = TxGas
	}

	for _, inputByte := range transaction.Input {
		if inputByte == 0 {
			gas += TxDataZeroGasEIP2028
		} else {
			gas += TxDataNonZeroGasEIP2028
		}
	}

	gas += figaro.Gas(len(transaction.AccessList)) * TxAccessListAddressGas
	for _, accessTuple := range transaction.AccessList {
		gas += figaro.Gas(len(accessTuple.Keys)) * TxAccessListStorageKeyGas
	}

	return gas
}

// setUpAccessList marks the accounts and slots that are warm at the start
// of the transaction.
func setUpAccessList(blockParams figaro.BlockParameters, transaction figaro.Transaction, context figaro.TransactionContext) {
	context.AccessAccount(transaction.Sender)
	if transaction.Recipient != nil {
		context.AccessAccount(*transaction.Recipient)
	}
	for _, address := range precompiledAddresses() {
		context.AccessAccount(address)
	}
	if blockParams.Revision >= figaro.R12_Shanghai {
		context.AccessAccount(blockParams.Coinbase)
	}
	for _, accessTuple := range transaction.AccessList {
		context.AccessAccount(accessTuple.Address)
		for _, key := range accessTuple.Keys {
			context.AccessStorage(accessTuple.Address, key)
		}
	}
}

func checkNonce(transaction figaro.Transaction, context figaro.TransactionContext) error {
	stateNonce := context.GetNonce(transaction.Sender)
	if transaction.Nonce != stateNonce {
		return fmt.Errorf("nonce mismatch: %v != %v", transaction.Nonce, stateNonce)
	}
	return nil
}

func buyGas(transaction figaro.Transaction, context figaro.TransactionContext) error {
	cost := transaction.GasPrice.Scale(uint64(transaction.GasLimit))

	senderBalance := context.GetBalance(transaction.Sender)
	if senderBalance.Cmp(cost) < 0 {
		return fmt.Errorf("insufficient balance: %v < %v", senderBalance, cost)
	}

	context.SetBalance(transaction.Sender, figaro.Sub(senderBalance, cost))
	return nil
}

func refundGas(transaction figaro.Transaction, context figaro.TransactionContext, gasLeft figaro.Gas) {
	refund := transaction.GasPrice.Scale(uint64(gasLeft))
	senderBalance := context.GetBalance(transaction.Sender)
	context.SetBalance(transaction.Sender, figaro.Add(senderBalance, refund))
}
