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

package panorama

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/orbit/pkg/calibration"
	"github.com/carverauto/orbit/pkg/coordinator"
	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

type flipSet map[models.StreamSource]bool

func (f flipSet) Flipped(src models.StreamSource) bool {
	return f[src]
}

type fixedAdjuster struct {
	adjustments map[models.StreamSource]calibration.Adjustment
	crop        float64
}

func (f fixedAdjuster) Adjustment(src models.StreamSource) calibration.Adjustment {
	return f.adjustments[src]
}

func (f fixedAdjuster) CropFactor() float64 {
	return f.crop
}

func halves(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, red)
			} else {
				img.SetRGBA(x, y, blue)
			}
		}
	}

	return img
}

func TestAlignIdentity(t *testing.T) {
	src := halves(4, 2)

	out := Align(src, Placement{}, 1)
	require.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestAlignHalfTurn(t *testing.T) {
	out := Align(halves(2, 1), Placement{Roll: math.Pi}, 1)

	assert.Equal(t, blue, out.RGBAAt(0, 0))
	assert.Equal(t, red, out.RGBAAt(1, 0))
}

func TestAlignCropSize(t *testing.T) {
	out := Align(halves(64, 36), Placement{Roll: 0.05}, 0.5)

	assert.Equal(t, image.Rect(0, 0, 32, 18), out.Bounds())
}

func TestFitScale(t *testing.T) {
	assert.InDelta(t, 1, fitScale(1280, 720, Placement{}), 1e-12)
	assert.InDelta(t, 0.9, fitScale(1280, 720, Placement{Shift: 36}), 1e-12)
	assert.InDelta(t, calibration.CropScale(720.0/1280.0, 0.1), fitScale(1280, 720, Placement{Roll: 0.1}), 1e-12)

	assert.InDelta(t, 270, boundShift(1280, 720, Placement{Shift: 1000}), 1e-9)
	assert.InDelta(t, -270, boundShift(1280, 720, Placement{Shift: -1000}), 1e-9)
	assert.InDelta(t, 10, boundShift(1280, 720, Placement{Shift: 10}), 1e-9)
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	return buf.Bytes()
}

func TestComposeWritesAlignedStills(t *testing.T) {
	root := t.TempDir()
	camera := calibration.SQ11
	target := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := models.StreamSource{Node: "10.0.0.5:2000", DeviceID: 1}
	b := models.StreamSource{Node: "10.0.0.6:2000", DeviceID: 2}
	broken := models.StreamSource{Node: "10.0.0.7:2000", DeviceID: 1}

	data := encodeJPEG(t, halves(64, 36))
	stills := []models.SourcedFrame{
		{Source: a, Frame: models.CapturedFrame{DeviceID: 1, Width: 64, Height: 36, Encoding: models.FourCCMJPG, Data: data}},
		{Source: b, Frame: models.CapturedFrame{DeviceID: 2, Width: 64, Height: 36, Encoding: models.FourCCMJPG, Data: data}},
		{Source: broken, Frame: models.CapturedFrame{DeviceID: 1, Width: 64, Height: 36, Encoding: models.FourCCMJPG, Data: []byte("junk")}},
	}

	// Pitches of +-0.1 vertical FOV shift the windows by 3.6 of 36 rows.
	pitch := 0.1 * camera.VerticalFOV()
	adj := fixedAdjuster{
		adjustments: map[models.StreamSource]calibration.Adjustment{
			a: {Pitch: pitch},
			b: {Pitch: -pitch},
		},
		crop: 1,
	}

	c := NewComposer(root, camera, coordinator.FrameDecoder{}, logger.NewTestLogger())

	res, err := c.Compose(context.Background(), 3, target, stills, adj, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "20250601T120000.000Z-r3"), res.Dir)
	assert.InDelta(t, 0.8, res.CropFactor, 1e-9)
	assert.Len(t, res.Raw, 3)
	require.Len(t, res.Images, 2)
	assert.Equal(t, filepath.Join(res.Dir, "10.0.0.5_2000-1.png"), res.Images[0])

	raw, err := os.ReadFile(filepath.Join(res.Dir, "10.0.0.7_2000-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("junk"), raw)

	f, err := os.Open(res.Images[1])
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	require.NoError(t, err)
	// Landscape stills come out turned upright.
	assert.Equal(t, image.Rect(0, 0, 29, 51), img.Bounds())
}

func TestComposeWithoutAdjustmentsKeepsSize(t *testing.T) {
	root := t.TempDir()
	src := models.StreamSource{Node: "n:2000", DeviceID: 1}

	stills := []models.SourcedFrame{{
		Source: src,
		Frame:  models.CapturedFrame{DeviceID: 1, Width: 8, Height: 4, Encoding: models.FourCCMJPG, Data: encodeJPEG(t, halves(8, 4))},
	}}

	c := NewComposer(root, calibration.SQ11, coordinator.FrameDecoder{}, logger.NewTestLogger())

	res, err := c.Compose(context.Background(), 0, time.Now(), stills, fixedAdjuster{crop: 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1, res.CropFactor, 1e-12)
	require.Len(t, res.Images, 1)
}

func TestOrientationQuarterTurns(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		flip bool
		want int
	}{
		{name: "portrait", w: 720, h: 1280, want: 0},
		{name: "landscape", w: 1280, h: 720, want: 1},
		{name: "portrait flipped", w: 720, h: 1280, flip: true, want: 2},
		{name: "landscape flipped", w: 1280, h: 720, flip: true, want: 3},
		{name: "square", w: 8, h: 8, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrientationFor(tt.w, tt.h, tt.flip).QuarterTurns())
		})
	}
}

func TestOrient(t *testing.T) {
	src := halves(2, 1)

	assert.Same(t, src, Orient(src, Orientation{}))

	// A quarter turn counter-clockwise brings the right half to the top.
	out := Orient(src, Orientation{Sideways: true})
	require.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())
	assert.Equal(t, blue, out.RGBAAt(0, 0))
	assert.Equal(t, red, out.RGBAAt(0, 1))

	out = Orient(src, Orientation{Flipped: true})
	require.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
	assert.Equal(t, blue, out.RGBAAt(0, 0))
	assert.Equal(t, red, out.RGBAAt(1, 0))

	out = Orient(src, Orientation{Sideways: true, Flipped: true})
	require.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())
	assert.Equal(t, red, out.RGBAAt(0, 0))
	assert.Equal(t, blue, out.RGBAAt(0, 1))
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	require.NoError(t, err)

	return img
}

func reddish(img image.Image, x, y int) bool {
	c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)

	return c.R > c.B
}

func TestComposeOrientsStills(t *testing.T) {
	root := t.TempDir()

	upright := models.StreamSource{Node: "n:2000", DeviceID: 1}
	flipped := models.StreamSource{Node: "n:2000", DeviceID: 2}
	sideways := models.StreamSource{Node: "n:2000", DeviceID: 3}

	portrait := encodeJPEG(t, halves(32, 64))
	landscape := encodeJPEG(t, halves(64, 32))

	stills := []models.SourcedFrame{
		{Source: upright, Frame: models.CapturedFrame{DeviceID: 1, Width: 32, Height: 64, Encoding: models.FourCCMJPG, Data: portrait}},
		{Source: flipped, Frame: models.CapturedFrame{DeviceID: 2, Width: 32, Height: 64, Encoding: models.FourCCMJPG, Data: portrait}},
		{Source: sideways, Frame: models.CapturedFrame{DeviceID: 3, Width: 64, Height: 32, Encoding: models.FourCCMJPG, Data: landscape}},
	}

	c := NewComposer(root, calibration.SQ11, coordinator.FrameDecoder{}, logger.NewTestLogger())

	res, err := c.Compose(context.Background(), 1, time.Now(), stills, fixedAdjuster{crop: 1}, flipSet{flipped: true})
	require.NoError(t, err)
	require.Len(t, res.Images, 3)

	img := readPNG(t, res.Images[0])
	assert.Equal(t, image.Rect(0, 0, 32, 64), img.Bounds())
	assert.True(t, reddish(img, 4, 32), "upright keeps red on the left")
	assert.False(t, reddish(img, 28, 32))

	img = readPNG(t, res.Images[1])
	assert.Equal(t, image.Rect(0, 0, 32, 64), img.Bounds())
	assert.False(t, reddish(img, 4, 32), "flipped puts red on the right")
	assert.True(t, reddish(img, 28, 32))

	img = readPNG(t, res.Images[2])
	assert.Equal(t, image.Rect(0, 0, 32, 64), img.Bounds())
	assert.False(t, reddish(img, 16, 4), "sideways puts the right half on top")
	assert.True(t, reddish(img, 16, 60))
}
