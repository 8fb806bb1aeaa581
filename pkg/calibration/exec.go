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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"time"
)

const defaultDetectTimeout = 30 * time.Second

var errDetectorCommand = errors.New("detector command is required")

// ExecEstimator runs an external marker detector per still. The detector
// reads a binary PGM image on stdin and writes a JSON array of
// {"roll":..,"pitch":..} objects on stdout. Marker size and focal length are
// passed through the environment as ORBIT_MARKER_SIZE and ORBIT_FOCAL_LENGTH.
type ExecEstimator struct {
	Command string
	Args    []string
	Timeout time.Duration
}

func (e *ExecEstimator) Detect(ctx context.Context, img *image.Gray, params DetectParams) ([]Pose, error) {
	if e.Command == "" {
		return nil, errDetectorCommand
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultDetectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdin, stdout, stderr bytes.Buffer

	if err := writePGM(&stdin, img); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = &stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(cmd.Environ(),
		"ORBIT_MARKER_SIZE="+strconv.FormatFloat(params.MarkerSize, 'g', -1, 64),
		"ORBIT_FOCAL_LENGTH="+strconv.FormatFloat(params.FocalLength, 'g', -1, 64),
	)

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run detector: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	var poses []Pose
	if err := json.Unmarshal(stdout.Bytes(), &poses); err != nil {
		return nil, fmt.Errorf("parse detector output: %w", err)
	}

	return poses, nil
}

// writePGM encodes img as a binary (P5) 8-bit portable graymap.
func writePGM(w io.Writer, img *image.Gray) error {
	b := img.Bounds()
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return err
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		if _, err := bw.Write(img.Pix[start : start+b.Dx()]); err != nil {
			return err
		}
	}

	return bw.Flush()
}
