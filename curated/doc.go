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

// Package curated is the error mechanism used throughout the project. A
// curated error is created with the Errorf() function, which looks and
// behaves like fmt.Errorf() except that the format string is retained as a
// pattern. The pattern can later be tested for with the Is() and Has()
// functions.
//
// Patterns give us a way of categorising errors without a proliferation of
// sentinel values. For example, the Wait functions in the async package
// return an error matching the Timeout pattern when the wait period expires:
//
//	err := asy.WaitTask(id, 100*time.Millisecond)
//	if curated.Is(err, async.Timeout) {
//		// not fatal. try again next frame
//	}
//
// Error messages are normalised on formatting, meaning that duplicate
// adjacent message parts are removed. This keeps messages sane when an error
// is wrapped by several layers that all add the same prefix.
package curated
