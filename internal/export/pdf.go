/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"

	"photomark/internal/version"
)

// PDFDPI maps bitmap pixels to page points. At 96 dpi one pixel is 0.75pt,
// which is how browsers and most viewers size screen images.
const PDFDPI = 96.0

// WritePDF embeds img as the only content of a single page sized to the
// bitmap. The image goes in losslessly as PNG.
func WritePDF(w io.Writer, img image.Image, opt Options) error {
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("pdf: empty image")
	}
	wPt := float64(b.Dx()) * 72 / PDFDPI
	hPt := float64(b.Dy()) * 72 / PDFDPI

	var raw bytes.Buffer
	if err := png.Encode(&raw, img); err != nil {
		return fmt.Errorf("pdf: encode page image: %w", err)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	if opt.Description != "" {
		pdf.SetSubject(opt.Description, true)
	}
	author := opt.Author
	if author == "" {
		author = "photomark"
	}
	pdf.SetAuthor(author, true)
	pdf.SetCreator("photomark "+version.Version, true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: wPt, Ht: hPt})

	imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("annotated", imgOpt, &raw)
	pdf.ImageOptions("annotated", 0, 0, wPt, hPt, false, imgOpt, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
