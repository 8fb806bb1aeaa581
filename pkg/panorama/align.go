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

// Package panorama turns a capture round into aligned stills: each camera's
// image is rotated by its roll correction, shifted by its pitch correction
// and cropped to a window shared by the whole rig.
package panorama

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// minCrop keeps a pathological pitch spread from shrinking the output to nothing.
const minCrop = 0.25

// Placement is how one still is cut out of its source image.
type Placement struct {
	// Roll rotates the crop window, in radians.
	Roll float64
	// Shift moves the crop window down by this many source pixels.
	Shift float64
}

// fitScale is the largest crop scale at which a w by h window rotated by
// roll and moved down by shift stays inside a w by h source.
func fitScale(w, h float64, p Placement) float64 {
	sin, cos := math.Abs(math.Sin(p.Roll)), math.Abs(math.Cos(p.Roll))

	sx := (w / 2) / (w/2*cos + h/2*sin)
	sy := (h/2 - math.Abs(p.Shift)) / (w/2*sin + h/2*cos)

	return min(sx, sy)
}

// boundShift limits shift so that the window still fits at minCrop.
func boundShift(w, h float64, p Placement) float64 {
	sin, cos := math.Abs(math.Sin(p.Roll)), math.Abs(math.Cos(p.Roll))
	limit := max(h/2-minCrop*(w/2*sin+h/2*cos), 0)

	return math.Copysign(min(math.Abs(p.Shift), limit), p.Shift)
}

// Align renders the crop window described by p at scale crop. The result is
// crop times the size of src.
func Align(src image.Image, p Placement, crop float64) *image.RGBA {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	dw := max(int(math.Round(w*crop)), 1)
	dh := max(int(math.Round(h*crop)), 1)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	sin, cos := math.Sin(p.Roll), math.Cos(p.Roll)

	// Source centre, with the window moved down by the shift.
	cx := float64(b.Min.X) + w/2
	cy := float64(b.Min.Y) + h/2 + p.Shift

	// Destination centre.
	dx, dy := float64(dw)/2, float64(dh)/2

	// Source to destination: rotate by -roll around the shifted source centre.
	s2d := f64.Aff3{
		cos, sin, dx - cos*cx - sin*cy,
		-sin, cos, dy + sin*cx - cos*cy,
	}

	draw.BiLinear.Transform(dst, s2d, src, b, draw.Src, nil)

	return dst
}
