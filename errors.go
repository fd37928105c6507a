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

// ConstError is an error type with the property of being a compile-time
// constant. Packages in this repository use it to declare their error
// values as constants, making accidental reassignment impossible.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}
