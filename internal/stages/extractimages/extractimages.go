// Package extractimages implements the page rendering stage. Every page of
// the PDF is rendered and saved as a JPG so readers can skim figures without
// opening the source document.
package extractimages

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/pipeline"
)

// Handle is the stage implementation.
type Handle struct {
	quality int
}

// New creates the image extraction handle. quality is the JPEG encoding
// quality, 1-100.
func New(quality int) *Handle {
	return &Handle{quality: quality}
}

// Invoke renders each page to page_NNN.jpg in the stage output directory.
func (h *Handle) Invoke(ctx context.Context, inv pipeline.Invocation) (pipeline.Result, error) {
	doc, err := fitz.New(inv.RawPath)
	if err != nil {
		return pipeline.Result{}, domain.StageExecError(fmt.Sprintf("open pdf %s", inv.RawPath), err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return pipeline.Result{}, domain.StageExecError("pdf has no pages", nil)
	}

	files := make([]string, 0, pageCount)
	for page := 0; page < pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return pipeline.Result{}, err
		}

		img, err := doc.Image(page)
		if err != nil {
			return pipeline.Result{}, domain.StageExecError(fmt.Sprintf("render page %d", page+1), err)
		}

		name := fmt.Sprintf("page_%03d.jpg", page+1)
		out, err := os.Create(filepath.Join(inv.OutputDir, name))
		if err != nil {
			return pipeline.Result{}, domain.StageExecError(fmt.Sprintf("create image file for page %d", page+1), err)
		}

		err = jpeg.Encode(out, img, &jpeg.Options{Quality: h.quality})
		out.Close()
		if err != nil {
			return pipeline.Result{}, domain.StageExecError(fmt.Sprintf("encode page %d", page+1), err)
		}
		files = append(files, name)
	}

	inv.Logger.Debug().Int("pages", pageCount).Msg("Pages rendered")
	return pipeline.SuccessResult(fmt.Sprintf("rendered %d pages", pageCount), files...), nil
}
