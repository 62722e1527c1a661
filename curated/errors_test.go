// This file is part of Ultragopher.
//
// Ultragopher is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultragopher is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Ultragopher.  If not, see <https://www.gnu.org/licenses/>.

package curated_test

import (
	"testing"

	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/test"
)

const testPattern = "test error: %v"
const otherPattern = "other error: %v"

func TestMatching(t *testing.T) {
	err := curated.Errorf(testPattern, "failure")

	test.ExpectSuccess(t, curated.IsAny(err))
	test.ExpectSuccess(t, curated.Is(err, testPattern))
	test.ExpectFailure(t, curated.Is(err, otherPattern))

	// nil errors never match
	test.ExpectFailure(t, curated.IsAny(nil))
	test.ExpectFailure(t, curated.Is(nil, testPattern))
	test.ExpectFailure(t, curated.Has(nil, testPattern))
}

func TestChaining(t *testing.T) {
	err := curated.Errorf(testPattern, "failure")
	werr := curated.Errorf(otherPattern, err)

	// Is() only matches the outermost pattern
	test.ExpectSuccess(t, curated.Is(werr, otherPattern))
	test.ExpectFailure(t, curated.Is(werr, testPattern))

	// Has() searches the chain
	test.ExpectSuccess(t, curated.Has(werr, otherPattern))
	test.ExpectSuccess(t, curated.Has(werr, testPattern))
}

func TestDeduplication(t *testing.T) {
	// adjacent duplicate message parts are removed on formatting
	err := curated.Errorf("async: %v", curated.Errorf("async: %v", "failure"))
	test.ExpectEquality(t, err.Error(), "async: failure")

	// non-adjacent duplicates are left alone
	err = curated.Errorf("async: %v", curated.Errorf("workers: %v", "failure"))
	test.ExpectEquality(t, err.Error(), "async: workers: failure")
}
