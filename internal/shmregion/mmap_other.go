//go:build !unix

/*
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shmregion

import (
	"errors"
	"os"
)

// ErrUnsupported is returned on platforms without a POSIX mmap(2), where
// this package cannot back a Region with a real shared mapping.
var ErrUnsupported = errors.New("shmregion: shared-memory mapping not supported on this platform")

func mapFile(file *os.File, size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func unmapFile(mem []byte) error {
	return ErrUnsupported
}
