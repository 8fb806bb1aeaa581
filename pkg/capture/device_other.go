//go:build !linux || !(amd64 || arm64 || riscv64 || arm)

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

package capture

import "github.com/carverauto/orbit/pkg/models"

// Device is unavailable on this platform; Open always fails.
type Device struct {
	path   string
	format Format
}

// Info is the identification the driver reports for a device.
type Info struct {
	Driver    string
	Card      string
	BusInfo   string
	Capture   bool
	Streaming bool
}

func Open(string, Format) (*Device, error) {
	return nil, ErrUnsupported
}

func (d *Device) Path() string { return d.path }

func (d *Device) Format() Format { return d.format }

func (*Device) SetFormat(Format) (Format, error) { return Format{}, ErrUnsupported }

func (*Device) Formats() ([]models.FourCC, error) { return nil, ErrUnsupported }

func (*Device) Info() (Info, error) { return Info{}, ErrUnsupported }

func (*Device) Stream(uint32, ...StreamOption) (*ActiveStream, error) { return nil, ErrUnsupported }

func (*Device) Close() error { return nil }
