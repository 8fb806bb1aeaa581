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

package coordinator

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/carverauto/orbit/pkg/models"
)

// Decoder turns an encoded frame into an image.
type Decoder interface {
	Decode(frame models.CapturedFrame) (image.Image, error)
}

// FrameDecoder handles the encodings nodes are configured with: MJPG/JPEG
// and packed YUYV 4:2:2.
type FrameDecoder struct{}

func (FrameDecoder) Decode(frame models.CapturedFrame) (image.Image, error) {
	switch frame.Encoding {
	case models.FourCCMJPG, models.FourCCJPEG:
		img, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", frame.Encoding, err)
		}

		return img, nil
	case models.FourCCYUYV:
		return decodeYUYV(frame)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, frame.Encoding)
	}
}

// decodeYUYV unpacks Y0 U Y1 V macropixels into a 4:2:2 YCbCr image without
// converting colour space.
func decodeYUYV(frame models.CapturedFrame) (image.Image, error) {
	w, h := int(frame.Width), int(frame.Height)
	if w%2 != 0 || len(frame.Data) < w*h*2 {
		return nil, fmt.Errorf("%w: %dx%d YUYV with %d bytes", ErrShortFrame, w, h, len(frame.Data))
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)

	for y := 0; y < h; y++ {
		row := frame.Data[y*w*2 : (y+1)*w*2]

		for x := 0; x < w; x += 2 {
			px := row[x*2 : x*2+4]
			img.Y[y*img.YStride+x] = px[0]
			img.Y[y*img.YStride+x+1] = px[2]

			c := y*img.CStride + x/2
			img.Cb[c] = px[1]
			img.Cr[c] = px[3]
		}
	}

	return img, nil
}
