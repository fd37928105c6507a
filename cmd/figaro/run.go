// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dsnet/golib/unitconv"
	"github.com/figaro-vm/figaro"
	_ "github.com/figaro-vm/figaro/interpreter/jtvm"
	_ "github.com/figaro-vm/figaro/processor/almaviva"
	"github.com/figaro-vm/figaro/statedb"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Run a contract byte-code as a transaction against a fresh state",
	ArgsUsage: "<code in hex>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "interpreter",
			Usage: "the interpreter implementation to use",
			Value: "jtvm",
		},
		&cli.StringFlag{
			Name:  "processor",
			Usage: "the processor implementation to use",
			Value: "almaviva",
		},
		&cli.StringFlag{
			Name:  "revision",
			Usage: "the revision to run on (istanbul, berlin, london, paris, shanghai, cancun)",
			Value: "cancun",
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "the transaction input data in hex",
		},
		&cli.Uint64Flag{
			Name:  "gas",
			Usage: "the gas limit of the transaction",
			Value: 10_000_000,
		},
		&cli.IntFlag{
			Name:  "repeat",
			Usage: "number of times the transaction is executed, for throughput measurements",
			Value: 1,
		},
	},
}

var ListCmd = cli.Command{
	Action: doList,
	Name:   "list",
	Usage:  "List the registered interpreter and processor implementations",
}

var revisions = map[string]figaro.Revision{
	"istanbul": figaro.R07_Istanbul,
	"berlin":   figaro.R09_Berlin,
	"london":   figaro.R10_London,
	"paris":    figaro.R11_Paris,
	"shanghai": figaro.R12_Shanghai,
	"cancun":   figaro.R13_Cancun,
}

func doRun(context *cli.Context) error {
	if context.Args().Len() < 1 {
		return fmt.Errorf("no contract code given")
	}
	code, err := decodeHex(context.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid contract code: %w", err)
	}
	input, err := decodeHex(context.String("input"))
	if err != nil {
		return fmt.Errorf("invalid input data: %w", err)
	}

	revision, found := revisions[strings.ToLower(context.String("revision"))]
	if !found {
		return fmt.Errorf("unknown revision, use one of: %v", maps.Keys(revisions))
	}

	interpreter, err := figaro.NewInterpreter(context.String("interpreter"))
	if err != nil {
		return err
	}
	processor := figaro.GetProcessor(context.String("processor"), interpreter)
	if processor == nil {
		return fmt.Errorf("unknown processor %q", context.String("processor"))
	}

	sender := figaro.Address{1}
	contract := figaro.Address{2}
	gasLimit := figaro.Gas(context.Uint64("gas"))
	repetitions := context.Int("repeat")
	if repetitions < 1 {
		repetitions = 1
	}

	blockParams := figaro.BlockParameters{
		BlockNumber: 1,
		Timestamp:   time.Now().Unix(),
		GasLimit:    gasLimit,
		Revision:    revision,
	}

	var receipt figaro.Receipt
	start := time.Now()
	for i := 0; i < repetitions; i++ {
		state := statedb.New()
		state.CreateAccount(sender, figaro.NewValue(1), 0, nil)
		state.CreateAccount(contract, figaro.Value{}, 1, code)

		transaction := figaro.Transaction{
			Sender:    sender,
			Recipient: &contract,
			Input:     input,
			GasLimit:  gasLimit,
			GasPrice:  figaro.NewValue(0),
		}

		receipt, err = processor.Run(blockParams, transaction, state)
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("success:  %t\n", receipt.Success)
	fmt.Printf("gas used: %d\n", receipt.GasUsed)
	if len(receipt.Output) > 0 {
		fmt.Printf("output:   0x%x\n", receipt.Output)
	}
	for _, log := range receipt.Logs {
		fmt.Printf("log:      %v %v 0x%x\n", log.Address, log.Topics, log.Data)
	}

	if repetitions > 1 {
		rate := float64(repetitions) / elapsed.Seconds()
		gasRate := float64(receipt.GasUsed) * rate
		fmt.Printf("rate:     %s transactions per second, ~%sgas per second\n",
			unitconv.FormatPrefix(rate, unitconv.SI, 1),
			unitconv.FormatPrefix(gasRate, unitconv.SI, 1),
		)
	}
	return nil
}

func doList(context *cli.Context) error {
	fmt.Println("interpreters:")
	for name := range figaro.GetAllRegisteredInterpreters() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("processors:")
	for name := range figaro.GetAllRegisteredProcessorFactories() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func decodeHex(data string) ([]byte, error) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "0x")
	return hex.DecodeString(data)
}
