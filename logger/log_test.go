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

package logger_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/test"
)

func TestRepeatFolding(t *testing.T) {
	logger.Clear()

	logger.Log("test", "hello")
	logger.Log("test", "hello")
	logger.Log("test", "hello")
	logger.Log("test", "goodbye")

	s := &strings.Builder{}
	logger.Write(s)

	test.ExpectEquality(t, s.String(), "test: hello (repeat x3)\ntest: goodbye\n")
}

func TestTail(t *testing.T) {
	logger.Clear()

	logger.Log("test", "one")
	logger.Log("test", "two")
	logger.Log("test", "three")

	s := &strings.Builder{}
	logger.Tail(s, 2)
	test.ExpectEquality(t, s.String(), "test: two\ntest: three\n")

	// tail requests longer than the log are capped
	s.Reset()
	logger.Tail(s, 100)
	test.ExpectEquality(t, s.String(), "test: one\ntest: two\ntest: three\n")
}

// the log accepts entries from any goroutine. the race detector keeps this
// test honest.
func TestConcurrentLogging(t *testing.T) {
	logger.Clear()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				logger.Log("test", "concurrent")
			}
		}()
	}
	wg.Wait()

	logger.BorrowLog(func(entries []logger.Entry) {
		test.ExpectEquality(t, len(entries), 1)
		test.ExpectEquality(t, entries[0].Repeated, 999)
	})
}
