package model

import "fmt"

// Dimensions is a pixel size resolved from an aspect-ratio label.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// aspectRatios maps the labels the front-end offers to base pixel sizes.
var aspectRatios = map[string]Dimensions{
	"1:1":  {Width: 1024, Height: 1024},
	"16:9": {Width: 1024, Height: 576},
	"9:16": {Width: 576, Height: 1024},
	"4:3":  {Width: 1024, Height: 768},
	"3:4":  {Width: 768, Height: 1024},
	"3:2":  {Width: 1024, Height: 683},
	"2:3":  {Width: 683, Height: 1024},
}

// ResolveDimensions looks up the base size for an aspect-ratio label and
// doubles both axes when HD is enabled.
func ResolveDimensions(aspectRatio string, enableHD bool) (Dimensions, error) {
	dims, ok := aspectRatios[aspectRatio]
	if !ok {
		return Dimensions{}, fmt.Errorf("unknown aspect ratio %q", aspectRatio)
	}
	if enableHD {
		dims.Width *= 2
		dims.Height *= 2
	}
	return dims, nil
}

// AspectRatios lists the supported labels, for request validation.
func AspectRatios() []string {
	labels := make([]string, 0, len(aspectRatios))
	for label := range aspectRatios {
		labels = append(labels, label)
	}
	return labels
}
