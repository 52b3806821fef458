package models

type ProcessRequest struct {
	// Formats to export. Defaults to the configured export formats when
	// empty.
	Formats []string `json:"formats,omitempty" example:"obj,stl"`

	// Reference measurement for pixel-to-meter scaling. Overrides any
	// reference embedded in the extracted geometry.
	ReferencePixelLength float64 `json:"reference_pixel_length,omitempty" example:"120"`
	ReferenceRealLength  float64 `json:"reference_real_length,omitempty" example:"3.0"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
