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

// Package statsview serves live Go runtime charts over HTTP, by way of the
// go-echarts/statsview module. It is compiled in only when the statsview
// build constraint is given; without it, Launch() is a stub and Available()
// says so.
//
// With the constraint, after Launch() the charts are at:
//
//	localhost:12064/debug/statsview
//
// and the usual pprof endpoints at:
//
//	localhost:12064/debug/pprof/
//
// This is runtime profiling of the process itself. The counters the async
// core keeps about frames and audio are a different thing, available
// through the stats snapshot API.
package statsview
