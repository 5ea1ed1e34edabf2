package generation

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Reference image defaults applied when the caller leaves a field out
const (
	DefaultStrength           = 0.75
	DefaultDenoisingStrength  = 0.7
	DefaultResizeMode         = "crop"
	DefaultControlNetStrength = 1.0
)

// ReferenceImage is the decoded reference_image parameter
type ReferenceImage struct {
	MIMEType string
	// Data is the base64 payload without the data: prefix
	Data string
}

// Bytes decodes the payload
func (r ReferenceImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Data)
}

// ReferenceParams tunes how a reference image steers the generation
type ReferenceParams struct {
	Strength           float64
	DenoisingStrength  float64
	ResizeMode         string
	ControlNetType     string
	ControlNetStrength float64
}

// ParseDataURL splits data:<mime>;base64,<payload> into its MIME type and payload
func ParseDataURL(dataURL string) (mimeType, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", errors.New("invalid data URL: must start with 'data:'")
	}

	meta, data, ok := strings.Cut(dataURL, ",")
	if !ok {
		return "", "", errors.New("invalid data URL format: missing comma separator")
	}
	if !strings.Contains(meta, "base64") {
		return "", "", errors.New("data URL is not base64 encoded")
	}

	mimeType, _, _ = strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return mimeType, data, nil
}

// ExtractReferenceImage reads params["reference_image"]["data"], or a bare
// data URL in params["reference_image"]. A missing or malformed image yields false.
func ExtractReferenceImage(params map[string]any) (ReferenceImage, bool) {
	var dataURL string
	switch ref := params["reference_image"].(type) {
	case string:
		dataURL = ref
	case map[string]any:
		dataURL, _ = ref["data"].(string)
	}
	if dataURL == "" {
		return ReferenceImage{}, false
	}
	mimeType, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return ReferenceImage{}, false
	}
	return ReferenceImage{MIMEType: mimeType, Data: payload}, true
}

// GetReferenceParams reads the tuning fields of reference_image with defaults
func GetReferenceParams(params map[string]any) ReferenceParams {
	out := ReferenceParams{
		Strength:           DefaultStrength,
		DenoisingStrength:  DefaultDenoisingStrength,
		ResizeMode:         DefaultResizeMode,
		ControlNetStrength: DefaultControlNetStrength,
	}

	ref, ok := params["reference_image"].(map[string]any)
	if !ok {
		return out
	}

	out.Strength = Float(ref, "strength", DefaultStrength)
	out.DenoisingStrength = Float(ref, "denoisingStrength", DefaultDenoisingStrength)
	out.ResizeMode = String(ref, "resizeMode", DefaultResizeMode)
	out.ControlNetType = String(ref, "controlnetType", "")
	out.ControlNetStrength = Float(ref, "controlnetStrength", DefaultControlNetStrength)
	return out
}
