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
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carverauto/orbit/pkg/calibration"
	"github.com/carverauto/orbit/pkg/logger"
	"github.com/carverauto/orbit/pkg/models"
)

const dirTimeFormat = "20060102T150405.000Z"

// Adjuster supplies calibration results; calibration.Engine implements it.
type Adjuster interface {
	Adjustment(src models.StreamSource) calibration.Adjustment
	CropFactor() float64
}

// Result lists what a composition wrote.
type Result struct {
	Dir        string
	Images     []string
	Raw        []string
	CropFactor float64
}

// Composer writes aligned stills of capture rounds below a root directory.
type Composer struct {
	root    string
	camera  calibration.CameraParameters
	decoder calibration.Decoder
	logger  logger.Logger
}

// NewComposer returns a composer writing under root.
func NewComposer(root string, camera calibration.CameraParameters, decoder calibration.Decoder, log logger.Logger) *Composer {
	return &Composer{root: root, camera: camera, decoder: decoder, logger: log}
}

type decodedStill struct {
	still     models.SourcedFrame
	img       image.Image
	placement Placement
}

// Compose aligns and orients every decodable still of a round and writes one
// PNG per stream plus the untouched encoded still, in a directory named after
// the round's target time. Stills that fail to decode are skipped. flips may
// be nil when no camera is mounted upside down.
func (c *Composer) Compose(
	ctx context.Context, round uint32, target time.Time, stills []models.SourcedFrame, adj Adjuster, flips Flipper,
) (Result, error) {
	dir := filepath.Join(c.root, fmt.Sprintf("%s-r%d", target.UTC().Format(dirTimeFormat), round))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	res := Result{Dir: dir}
	decoded := make([]decodedStill, 0, len(stills))

	for _, s := range stills {
		raw := filepath.Join(dir, fileBase(s.Source)+rawExtension(s.Frame.Encoding))
		if err := os.WriteFile(raw, s.Frame.Data, 0o644); err != nil {
			return res, fmt.Errorf("write raw still: %w", err)
		}

		res.Raw = append(res.Raw, raw)

		img, err := c.decoder.Decode(s.Frame)
		if err != nil {
			c.logger.Warn().Err(err).Str("stream", s.Source.String()).Msg("Skipping undecodable still")

			continue
		}

		a := adj.Adjustment(s.Source)
		decoded = append(decoded, decodedStill{
			still: s,
			img:   img,
			placement: Placement{
				Roll:  a.Roll,
				Shift: float64(img.Bounds().Dy()) * a.Pitch / c.camera.VerticalFOV(),
			},
		})
	}

	res.CropFactor = c.layout(decoded, adj.CropFactor())

	for _, d := range decoded {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		b := d.img.Bounds()
		o := OrientationFor(b.Dx(), b.Dy(), flips != nil && flips.Flipped(d.still.Source))

		out := filepath.Join(dir, fileBase(d.still.Source)+".png")
		if err := writePNG(out, Orient(Align(d.img, d.placement, res.CropFactor), o)); err != nil {
			return res, err
		}

		res.Images = append(res.Images, out)
	}

	c.logger.Info().
		Uint32("round", round).
		Str("dir", dir).
		Int("images", len(res.Images)).
		Float64("crop_factor", res.CropFactor).
		Msg("Panorama stills written")

	return res, nil
}

// layout re-centres the pitch shifts on the middle of their range, bounds
// them, and returns the crop every still can share.
func (c *Composer) layout(stills []decodedStill, crop float64) float64 {
	if len(stills) == 0 {
		return crop
	}

	lo, hi := stills[0].placement.Shift, stills[0].placement.Shift
	for _, s := range stills[1:] {
		lo = min(lo, s.placement.Shift)
		hi = max(hi, s.placement.Shift)
	}

	centre := (lo + hi) / 2

	for i := range stills {
		b := stills[i].img.Bounds()
		w, h := float64(b.Dx()), float64(b.Dy())

		p := &stills[i].placement
		p.Shift = boundShift(w, h, Placement{Roll: p.Roll, Shift: p.Shift - centre})

		crop = min(crop, fitScale(w, h, *p))
	}

	return max(crop, minCrop)
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return nil
}

func fileBase(src models.StreamSource) string {
	node := strings.NewReplacer(":", "_", "/", "_", "[", "", "]", "").Replace(src.Node)

	return fmt.Sprintf("%s-%d", node, src.DeviceID)
}

func rawExtension(enc models.FourCC) string {
	switch enc {
	case models.FourCCMJPG, models.FourCCJPEG:
		return ".jpg"
	default:
		return "." + strings.ToLower(strings.TrimSpace(enc.String()))
	}
}
