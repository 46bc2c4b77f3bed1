package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// UploadQuality is the JPEG quality used for images sent for analysis.
	UploadQuality = 70
	// HistoryQuality is the JPEG quality used for images kept in history.
	HistoryQuality = 80

	maxParallelEncodes = 4
)

// ErrNoImages is returned when there is nothing usable to encode.
var ErrNoImages = errors.New("no images could be encoded")

// Encoder re-encodes raw images (jpeg, png or gif) as JPEG at a fixed quality.
type Encoder struct {
	quality int
}

func NewEncoder(quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Encoder{quality: quality}
}

// EncodeJPEG converts every image to JPEG. Images that fail to decode are
// skipped; ErrNoImages is returned when none succeed.
func (e *Encoder) EncodeJPEG(raw [][]byte) ([][]byte, error) {
	if len(raw) == 0 {
		return nil, ErrNoImages
	}

	out := make([][]byte, len(raw))
	g := new(errgroup.Group)
	g.SetLimit(maxParallelEncodes)
	for i, data := range raw {
		g.Go(func() error {
			encoded, err := e.encodeOne(data)
			if err != nil {
				log.Warn().Err(err).Int("index", i).Msg("skipping image that failed to encode")
				return nil
			}
			out[i] = encoded
			return nil
		})
	}
	_ = g.Wait()

	result := make([][]byte, 0, len(out))
	for _, b := range out {
		if b != nil {
			result = append(result, b)
		}
	}
	if len(result) == 0 {
		return nil, ErrNoImages
	}
	return result, nil
}

// EncodeBase64 converts every image to a base64-encoded JPEG string.
func (e *Encoder) EncodeBase64(raw [][]byte) ([]string, error) {
	jpegs, err := e.EncodeJPEG(raw)
	if err != nil {
		return nil, err
	}
	encoded := make([]string, len(jpegs))
	for i, b := range jpegs {
		encoded[i] = base64.StdEncoding.EncodeToString(b)
	}
	return encoded, nil
}

func (e *Encoder) encodeOne(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}
