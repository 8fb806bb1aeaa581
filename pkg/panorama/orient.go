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
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/carverauto/orbit/pkg/models"
)

// Flipper reports streams whose camera is mounted upside down.
type Flipper interface {
	Flipped(src models.StreamSource) bool
}

// Orientation is the cardinal turn that stands a still upright. The rig
// builds portrait panoramas, so landscape sensors are always turned
// sideways; Flipped adds a half turn on top.
type Orientation struct {
	Sideways bool `json:"sideways"`
	Flipped  bool `json:"flipped"`
}

// OrientationFor is the orientation of a w by h stream.
func OrientationFor(w, h int, flipped bool) Orientation {
	return Orientation{Sideways: w > h, Flipped: flipped}
}

// QuarterTurns is the counter-clockwise rotation in quarter turns, 0 to 3.
func (o Orientation) QuarterTurns() int {
	turns := 0
	if o.Sideways {
		turns++
	}

	if o.Flipped {
		turns += 2
	}

	return turns
}

// Orient turns img counter-clockwise by o.QuarterTurns(). A turn about the
// centre commutes with the roll of Align, so applying it to the aligned
// crop gives the same pixels as turning the source first while pitch
// shifts stay in sensor rows.
func Orient(img *image.RGBA, o Orientation) *image.RGBA {
	turns := o.QuarterTurns()
	if turns == 0 {
		return img
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	// Source to destination for each turn, in pixel-edge coordinates so the
	// nearest sample lands exactly on a source pixel.
	var s2d f64.Aff3

	switch turns {
	case 1:
		s2d = f64.Aff3{0, 1, -float64(b.Min.Y), -1, 0, w + float64(b.Min.X)}
	case 2:
		s2d = f64.Aff3{-1, 0, w + float64(b.Min.X), 0, -1, h + float64(b.Min.Y)}
	default:
		s2d = f64.Aff3{0, -1, h + float64(b.Min.Y), 1, 0, -float64(b.Min.X)}
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if turns%2 == 1 {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	}

	draw.NearestNeighbor.Transform(dst, s2d, img, b, draw.Src, nil)

	return dst
}
