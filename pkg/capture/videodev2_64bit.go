//go:build linux && (amd64 || arm64 || riscv64)

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

// struct v4l2_buffer on LP64: the timeval is 16 bytes and the m union is
// pointer sized.
type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	_         [4]byte
	timestamp v4l2Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	offset    uint32
	_         [4]byte
	length    uint32
	reserved2 uint32
	requestFD int32
	_         [4]byte
}

// struct v4l2_format: the fmt union holds pointers, so it is 8 byte aligned.
type v4l2Format struct {
	typ uint32
	_   [4]byte
	pix v4l2PixFormat
	_   [152]byte
}
