// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package tyval

import (
	"log"
	"os"
)

// logger is the package-wide diagnostic sink. It defaults to stderr and
// can be redirected with SetLogger, the same injection pattern the
// teacher uses in debug.Fd(fd int, lg *log.Logger).
var logger = log.New(os.Stderr, "tyval: ", log.LstdFlags)

// SetLogger redirects package diagnostics (conversion-policy rejections
// logged at Debug level, arena exhaustion, snapshot restores) to lg.
func SetLogger(lg *log.Logger) {
	if lg != nil {
		logger = lg
	}
}

func logDebugf(format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// Debugf logs through the package-wide diagnostic sink configured by
// SetLogger. It is exported so wview, which sits in its own package, can
// feed into the same sink for its own Debug-level events (snapshot
// restores).
func Debugf(format string, args ...any) {
	logDebugf(format, args...)
}
