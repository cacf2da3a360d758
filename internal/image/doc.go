// Package image implements the image generation flow, which posts a list of
// text prompts as {"data": [...]}.
package image
