// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package jtvm provides a jump-table based interpreter for contract code.
// Instructions are dispatched through a per-revision table holding the
// implementation, the static gas, and the stack requirements of every
// byte value.
package jtvm

import (
	"fmt"

	"github.com/figaro-vm/figaro"
)

func init() {
	configs := map[string]Config{
		"jtvm":              {},
		"jtvm-no-sha-cache": {WithoutShaCache: true},
		"jtvm-logging":      {runner: loggingRunner{}},
	}
	for name, config := range configs {
		config := config
		err := figaro.RegisterInterpreterFactory(
			name,
			func(any) (figaro.Interpreter, error) {
				return newVm(config)
			},
		)
		if err != nil {
			panic(fmt.Sprintf("failed to register interpreter %q: %v", name, err))
		}
	}
}

// Config covers the configuration options of a jtvm instance.
type Config struct {
	// WithoutShaCache disables the cache for SHA3 hashes of frequently
	// hashed input sizes.
	WithoutShaCache bool

	// CodeAnalysisCacheSize is the number of code analysis results to
	// retain, a non-positive value selects the default size.
	CodeAnalysisCacheSize int

	runner runner
}

const defaultCodeAnalysisCacheSize = 1 << 14

type jtvm struct {
	config   Config
	analyzer *analyzer
}

// newestSupportedRevision is the latest chain revision this interpreter
// implements.
const newestSupportedRevision = figaro.R13_Cancun

func newVm(config Config) (*jtvm, error) {
	if config.CodeAnalysisCacheSize <= 0 {
		config.CodeAnalysisCacheSize = defaultCodeAnalysisCacheSize
	}
	return &jtvm{
		config:   config,
		analyzer: newAnalyzer(config.CodeAnalysisCacheSize),
	}, nil
}

// NewInterpreter creates an instance with the given configuration without
// going through the registry.
func NewInterpreter(config Config) (figaro.Interpreter, error) {
	return newVm(config)
}

func (v *jtvm) Run(params figaro.Parameters) (figaro.Result, error) {
	if params.Revision > newestSupportedRevision {
		return figaro.Result{}, &figaro.ErrUnsupportedRevision{Revision: params.Revision}
	}
	config := runConfig{
		WithShaCache: !v.config.WithoutShaCache,
		runner:       v.config.runner,
	}
	jumpDests := v.analyzer.getJumpDests(params.Code, params.CodeHash)
	return run(config, params, jumpDests)
}
