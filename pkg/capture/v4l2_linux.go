//go:build linux && (amd64 || arm64 || riscv64 || arm)

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

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/carverauto/orbit/pkg/models"
)

const (
	bufTypeVideoCapture = 1
	memoryMMAP          = 1
	fieldNone           = 1

	capVideoCapture = 0x00000001
	capStreaming    = 0x04000000
	capDeviceCaps   = 0x80000000
)

type v4l2Timeval struct {
	sec  int64
	usec int64
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2RequestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	_            [3]uint8
}

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

type v4l2FmtDesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbusCode    uint32
	_           [3]uint32
}

type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	_            [3]uint32
}

const (
	iocWrite = 1
	iocRead  = 2
)

// ioc builds an ioctl request number the way the kernel's _IOC macro does.
func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'V'<<8 | nr
}

var (
	vidiocQueryCap  = ioc(iocRead, 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocEnumFmt   = ioc(iocRead|iocWrite, 2, unsafe.Sizeof(v4l2FmtDesc{}))
	vidiocSetFmt    = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqBufs   = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQueryBuf  = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQBuf      = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDQBuf     = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamOn  = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
)

// deviceError tags ENODEV so callers can tell an unplugged camera apart.
func deviceError(op string, err error) error {
	if errors.Is(err, unix.ENODEV) {
		return fmt.Errorf("%s: %w: %w", op, ErrDeviceGone, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// v4l2Driver implements Driver with raw ioctls on an open device node.
type v4l2Driver struct {
	fd int
}

func (d *v4l2Driver) ioctl(op string, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))

		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return deviceError(op, errno)
		}
	}
}

func (d *v4l2Driver) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2RequestBuffers{count: count, typ: bufTypeVideoCapture, memory: memoryMMAP}

	if err := d.ioctl("VIDIOC_REQBUFS", vidiocReqBufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}

	return req.count, nil
}

func (d *v4l2Driver) QueryBuffer(index uint32) (BufferLocation, error) {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMMAP}

	if err := d.ioctl("VIDIOC_QUERYBUF", vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil {
		return BufferLocation{}, err
	}

	return BufferLocation{Offset: buf.offset, Length: buf.length}, nil
}

func (d *v4l2Driver) Map(loc BufferLocation) ([]byte, error) {
	data, err := unix.Mmap(d.fd, int64(loc.Offset), int(loc.Length), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, deviceError("mmap", err)
	}

	return data, nil
}

func (*v4l2Driver) Unmap(region []byte) error {
	if err := unix.Munmap(region); err != nil {
		return deviceError("munmap", err)
	}

	return nil
}

func (d *v4l2Driver) Enqueue(index uint32) error {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMMAP}

	return d.ioctl("VIDIOC_QBUF", vidiocQBuf, unsafe.Pointer(&buf))
}

func (d *v4l2Driver) Dequeue() (BufferInfo, error) {
	buf := v4l2Buffer{typ: bufTypeVideoCapture, memory: memoryMMAP}

	if err := d.ioctl("VIDIOC_DQBUF", vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}

	return BufferInfo{
		Index:     buf.index,
		BytesUsed: buf.bytesused,
		Flags:     buf.flags,
		Sequence:  buf.sequence,
		Timestamp: time.Duration(buf.timestamp.sec)*time.Second +
			time.Duration(buf.timestamp.usec)*time.Microsecond,
	}, nil
}

func (d *v4l2Driver) WaitReady(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}

	if err != nil {
		return false, deviceError("poll", err)
	}

	return n > 0, nil
}

func (d *v4l2Driver) StreamOn() error {
	typ := int32(bufTypeVideoCapture)

	return d.ioctl("VIDIOC_STREAMON", vidiocStreamOn, unsafe.Pointer(&typ))
}

func (d *v4l2Driver) StreamOff() error {
	typ := int32(bufTypeVideoCapture)

	return d.ioctl("VIDIOC_STREAMOFF", vidiocStreamOff, unsafe.Pointer(&typ))
}

// Device is an open V4L2 capture node.
type Device struct {
	path   string
	fd     int
	driver *v4l2Driver
	format Format
}

// Open opens the device node at path. A non-zero want is applied with
// SetFormat; the driver may adjust it, see Format for the result.
func Open(path string, want Format) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, deviceError("open "+path, err)
	}

	d := &Device{path: path, fd: fd, driver: &v4l2Driver{fd: fd}}

	if want != (Format{}) {
		got, err := d.SetFormat(want)
		if err != nil {
			_ = d.Close()

			return nil, err
		}

		d.format = got
	}

	return d, nil
}

// Path is the device node the device was opened from.
func (d *Device) Path() string {
	return d.path
}

// Format is the last format negotiated with SetFormat.
func (d *Device) Format() Format {
	return d.format
}

// SetFormat requests a progressive capture format and returns what the driver accepted.
func (d *Device) SetFormat(want Format) (Format, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	f.pix.width = want.Width
	f.pix.height = want.Height
	f.pix.pixelformat = want.Encoding.Uint32()
	f.pix.field = fieldNone

	if err := d.driver.ioctl("VIDIOC_S_FMT", vidiocSetFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, err
	}

	d.format = Format{
		Width:    f.pix.width,
		Height:   f.pix.height,
		Encoding: models.FourCCFromUint32(f.pix.pixelformat),
	}

	return d.format, nil
}

// Formats enumerates the pixel encodings the device can capture.
func (d *Device) Formats() ([]models.FourCC, error) {
	var formats []models.FourCC

	for index := uint32(0); ; index++ {
		desc := v4l2FmtDesc{index: index, typ: bufTypeVideoCapture}

		err := d.driver.ioctl("VIDIOC_ENUM_FMT", vidiocEnumFmt, unsafe.Pointer(&desc))
		if errors.Is(err, unix.EINVAL) {
			return formats, nil
		}

		if err != nil {
			return nil, err
		}

		formats = append(formats, models.FourCCFromUint32(desc.pixelformat))
	}
}

// Info is the identification the driver reports for a device.
type Info struct {
	Driver    string
	Card      string
	BusInfo   string
	Capture   bool
	Streaming bool
}

// Info queries the driver's capabilities.
func (d *Device) Info() (Info, error) {
	var c v4l2Capability

	if err := d.driver.ioctl("VIDIOC_QUERYCAP", vidiocQueryCap, unsafe.Pointer(&c)); err != nil {
		return Info{}, err
	}

	caps := c.capabilities
	if caps&capDeviceCaps != 0 {
		caps = c.deviceCaps
	}

	return Info{
		Driver:    unix.ByteSliceToString(c.driver[:]),
		Card:      unix.ByteSliceToString(c.card[:]),
		BusInfo:   unix.ByteSliceToString(c.busInfo[:]),
		Capture:   caps&capVideoCapture != 0,
		Streaming: caps&capStreaming != 0,
	}, nil
}

// Stream allocates buffers on the device and starts streaming.
func (d *Device) Stream(buffers uint32, opts ...StreamOption) (*ActiveStream, error) {
	s, err := WithBuffers(d.driver, buffers, opts...)
	if err != nil {
		return nil, err
	}

	return s.Start()
}

// Close closes the device node. Any stream must be closed first.
func (d *Device) Close() error {
	if err := unix.Close(d.fd); err != nil {
		return deviceError("close "+d.path, err)
	}

	return nil
}
