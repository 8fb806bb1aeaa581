/*
 * Copyright 2025 Carver Automation Corporation.
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

package devices

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultSysfsRoot = "/sys/class/video4linux"
	DefaultDevRoot   = "/dev"

	videoPrefix = "video"
)

// SysfsLister lists video4linux class entries. Every entry named videoN maps
// to the device node DevRoot/videoN.
type SysfsLister struct {
	Root    string
	DevRoot string
}

// NewSysfsLister returns a lister for the standard locations.
func NewSysfsLister() *SysfsLister {
	return &SysfsLister{Root: DefaultSysfsRoot, DevRoot: DefaultDevRoot}
}

func (l *SysfsLister) List() ([]Handle, error) {
	entries, err := os.ReadDir(l.Root)
	if errors.Is(err, fs.ErrNotExist) {
		// No V4L2 driver loaded yet means no cameras, not a failure.
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.Root, err)
	}

	handles := make([]Handle, 0, len(entries))

	for _, entry := range entries {
		index, ok := parseVideoIndex(entry.Name())
		if !ok {
			continue
		}

		handles = append(handles, Handle{
			Index: index,
			Path:  filepath.Join(l.DevRoot, entry.Name()),
		})
	}

	return handles, nil
}

func parseVideoIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, videoPrefix)
	if !ok || digits == "" {
		return 0, false
	}

	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}

	return index, true
}
