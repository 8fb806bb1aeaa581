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

package calibration

import "math"

// DefaultMarkerSize is the edge length of the printed fiducial, in metres.
const DefaultMarkerSize = 0.162

// CameraParameters describe the still geometry used for pose estimation and
// for turning angles into pixel offsets.
type CameraParameters struct {
	HorizontalFOV float64 `json:"hfov"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
}

// SQ11 are the parameters of the SQ11 mini camera at 1280x720.
var SQ11 = CameraParameters{
	HorizontalFOV: 0.81425,
	Width:         1280,
	Height:        720,
}

// FocalLength is the focal length in pixels.
func (p CameraParameters) FocalLength() float64 {
	return 0.5 * p.Width / math.Tan(p.HorizontalFOV*0.5)
}

// VerticalFOV assumes square pixels.
func (p CameraParameters) VerticalFOV() float64 {
	return p.HorizontalFOV * p.Height / p.Width
}

// AspectRatio is height over width.
func (p CameraParameters) AspectRatio() float64 {
	return p.Height / p.Width
}

// VerticalPixels is the on-sensor height of something spanning angle radians.
func (p CameraParameters) VerticalPixels(angle float64) float64 {
	return p.Height * angle / p.VerticalFOV()
}

// CropScale is the largest scale at which a rectangle with the given
// height/width ratio, rotated by radians, still fits entirely inside the
// unrotated source.
func CropScale(heightOverWidth, radians float64) float64 {
	sin, cos := math.Abs(math.Sin(radians)), math.Abs(math.Cos(radians))

	if heightOverWidth < 1 {
		return heightOverWidth / (heightOverWidth*cos + sin)
	}

	return 1 / (heightOverWidth*sin + cos)
}
