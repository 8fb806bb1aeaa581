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

//go:generate mockgen -destination=mock_estimator.go -package=calibration github.com/carverauto/orbit/pkg/calibration PoseEstimator,Decoder

import (
	"context"
	"image"

	"github.com/carverauto/orbit/pkg/models"
)

// Pose is the orientation of a camera relative to a detected marker, in radians.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// DetectParams are the physical inputs a marker detector needs.
type DetectParams struct {
	MarkerSize  float64 `json:"marker_size"`
	FocalLength float64 `json:"focal_length"`
}

// PoseEstimator finds fiducial markers in a grayscale still and returns the
// camera pose for each, best detection first. No markers is not an error.
type PoseEstimator interface {
	Detect(ctx context.Context, img *image.Gray, params DetectParams) ([]Pose, error)
}

// Decoder turns an encoded still into an image.
type Decoder interface {
	Decode(frame models.CapturedFrame) (image.Image, error)
}
