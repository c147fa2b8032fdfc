package render

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// keep pdfcpu from creating a config dir in the user's home
	api.DisableConfigDir()
}

type Info struct {
	Pages int
}

// Inspect validates a rendered document and counts its pages.
func Inspect(data []byte) (info Info, resErr error) {
	defer func() {
		if r := recover(); r != nil {
			resErr = fmt.Errorf("inspect pdf: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	err := api.Validate(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("validate pdf: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("count pages: %w", err)
	}

	return Info{Pages: pages}, nil
}
