//go:build gosseract

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract recognizes through libtesseract. A client is created per call
// because gosseract clients are not safe for concurrent use.
type Gosseract struct {
	clientFactory func() *gosseract.Client
}

func NewGosseract() (Engine, error) {
	return &Gosseract{clientFactory: gosseract.NewClient}, nil
}

func (g *Gosseract) Recognize(ctx context.Context, imagePath string, languages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := g.clientFactory()
	defer c.Close()

	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}

	return text, nil
}
