// Copyright (c) 2025 The Figaro Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at figaro.dev/bsl11.
//
// Change Date: 2029-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package figaro

import (
	"testing"

	"go.uber.org/mock/gomock"
)

func TestProcessorRegistry_LookupIsCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)
	processor := NewMockProcessor(ctrl)

	RegisterProcessorFactory("Registry-Case-Test", func(Interpreter) Processor {
		return processor
	})

	for _, name := range []string{"registry-case-test", "REGISTRY-CASE-TEST"} {
		if got := GetProcessor(name, nil); got != processor {
			t.Errorf("unexpected processor resolved for %q", name)
		}
	}
}

func TestProcessorRegistry_UnknownNameYieldsNil(t *testing.T) {
	if got := GetProcessor("does-not-exist", nil); got != nil {
		t.Errorf("expected nil for unknown processor, got %v", got)
	}
}

func TestProcessorRegistry_InterpreterIsForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := NewMockInterpreter(ctrl)

	var received Interpreter
	RegisterProcessorFactory("forward-test", func(i Interpreter) Processor {
		received = i
		return nil
	})

	GetProcessor("forward-test", interpreter)
	if received != interpreter {
		t.Errorf("interpreter was not forwarded to the factory")
	}
}

func TestProcessorRegistry_NilFactoryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic when registering a nil factory")
		}
	}()
	RegisterProcessorFactory("nil-processor", nil)
}

func TestProcessorRegistry_DuplicateRegistrationPanics(t *testing.T) {
	factory := func(Interpreter) Processor { return nil }
	RegisterProcessorFactory("duplicate-processor", factory)

	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for duplicate registration")
		}
	}()
	RegisterProcessorFactory("Duplicate-Processor", factory)
}

func TestProcessorRegistry_RegisteredFactoriesAreListed(t *testing.T) {
	RegisterProcessorFactory("processor-list-test", func(Interpreter) Processor {
		return nil
	})

	all := GetAllRegisteredProcessorFactories()
	if _, found := all["processor-list-test"]; !found {
		t.Errorf("registered factory missing from listing")
	}
}
