// SPDX-License-Identifier: MIT

package engine

import "errors"

// errFileIODisabled is returned by any Engine method that would touch
// the local filesystem while Config.AllowFileIO is false.
var errFileIODisabled = errors.New("invalid-argument: file I/O is disabled; open the engine with Config{AllowFileIO: true} to allow it")
