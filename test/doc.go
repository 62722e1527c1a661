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

// Package test contains helper functions to remove common boilerplate from
// the testing of this project.
//
// The Expect functions test their arguments and report a testing error on
// failure. The Demand functions are the same but are testing fatalities on
// failure. Demand is useful when subsequent tests rely on the tested value
// being correct.
//
// ExpectCompletion and ExpectTimeout are for testing concurrent code. Both
// wait on a channel for a bounded amount of time, meaning that a test can
// assert that something does (or does not) happen without the test itself
// ever hanging.
package test
