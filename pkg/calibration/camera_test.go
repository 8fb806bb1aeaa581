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

import (
	"bytes"
	"context"
	"image"
	"math"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraParameters(t *testing.T) {
	assert.InDelta(t, 640/math.Tan(0.81425/2), SQ11.FocalLength(), 1e-9)
	assert.InDelta(t, 0.81425*720/1280, SQ11.VerticalFOV(), 1e-12)
	assert.InDelta(t, 720, SQ11.VerticalPixels(SQ11.VerticalFOV()), 1e-9)
	assert.InDelta(t, 720.0/1280, SQ11.AspectRatio(), 1e-12)
}

func TestCropScale(t *testing.T) {
	assert.InDelta(t, 1, CropScale(0.5625, 0), epsilon)
	assert.InDelta(t, 1, CropScale(1.5, 0), epsilon)

	// Sign of the roll does not matter.
	assert.InDelta(t, CropScale(0.5625, deg(5)), CropScale(0.5625, deg(-5)), epsilon)

	r, theta := 0.5625, deg(5)
	assert.InDelta(t, r/(r*math.Cos(theta)+math.Sin(theta)), CropScale(r, theta), epsilon)

	tall := 16.0 / 9.0
	assert.InDelta(t, 1/(tall*math.Sin(theta)+math.Cos(theta)), CropScale(tall, theta), epsilon)

	// The scaled, rotated rectangle fits inside the source.
	w, h := 1280.0, 720.0
	s := CropScale(h/w, theta)
	assert.LessOrEqual(t, s*(w*math.Cos(theta)+h*math.Sin(theta)), w+1e-9)
	assert.LessOrEqual(t, s*(w*math.Sin(theta)+h*math.Cos(theta)), h+1e-9)
}

func TestWritePGM(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(img.Pix, []byte{1, 2, 3, 4, 5, 6})

	var buf bytes.Buffer
	require.NoError(t, writePGM(&buf, img))

	assert.Equal(t, append([]byte("P5\n3 2\n255\n"), 1, 2, 3, 4, 5, 6), buf.Bytes())

	// Sub-images only write their own window.
	sub, ok := img.SubImage(image.Rect(1, 0, 3, 2)).(*image.Gray)
	require.True(t, ok)

	buf.Reset()
	require.NoError(t, writePGM(&buf, sub))
	assert.Equal(t, append([]byte("P5\n2 2\n255\n"), 2, 3, 5, 6), buf.Bytes())
}

func TestExecEstimator(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	est := &ExecEstimator{
		Command: sh,
		Args: []string{"-c", `head -c 2 | grep -q P5 && cat >/dev/null && ` +
			`printf '[{"roll":%s,"pitch":0.25}]' "$ORBIT_MARKER_SIZE"`},
		Timeout: 5 * time.Second,
	}

	poses, err := est.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), DetectParams{MarkerSize: 0.162})
	require.NoError(t, err)
	assert.Equal(t, []Pose{{Roll: 0.162, Pitch: 0.25}}, poses)

	failing := &ExecEstimator{Command: sh, Args: []string{"-c", "echo nope >&2; exit 3"}}

	_, err = failing.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)), DetectParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")

	_, err = (&ExecEstimator{}).Detect(context.Background(), nil, DetectParams{})
	require.ErrorIs(t, err, errDetectorCommand)
}
