/*
Copyright © 2025 Ken'ichiro Oyama <k1lowxb@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/k1LoW/scenery"
	"github.com/spf13/cobra"
)

var (
	exportScene   int
	exportPage    int
	exportOut     string
	exportPNG     bool
	exportTimeout time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export COLLECTION_DIR",
	Short: "export the high resolution image of a page",
	Long:  `export the high resolution image of a page to a file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger, closeLog, err := newLogger(true)
		if err != nil {
			return err
		}
		defer closeLog()
		v, _, err := newViewer(logger, scenery.WithPrefetchCount(0))
		if err != nil {
			return err
		}
		if _, err := v.LoadCollection(ctx, args[0]); err != nil {
			return err
		}
		data, err := v.GetImage(ctx, &exportScene, exportPage)
		if err != nil {
			return err
		}
		var b []byte
		if exportPNG {
			b, err = exportAsPNG(data.ImagePath)
		} else {
			b, err = exportAsJPEG(ctx, v, data)
		}
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, b, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOut, err)
		}
		logger.Info("export completed", slog.String("out", exportOut))
		v.Wait()
		cmd.Println(exportOut)
		return nil
	},
}

// exportAsJPEG returns the high resolution JPEG of data, waiting for its upgrade when a preview was served.
func exportAsJPEG(ctx context.Context, v *scenery.Viewer, data *scenery.ImageData) ([]byte, error) {
	payload := data.MainImage
	if data.IsPreview {
		ctx, cancel := context.WithTimeout(ctx, exportTimeout)
		defer cancel()
		payload = ""
		for payload == "" {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("timed out waiting for high resolution image of %s: %w", data.ImagePath, ctx.Err())
			case u := <-v.Upgrades():
				if u.SceneIndex == data.SceneIndex && u.PageIndex == data.PageIndex && u.Path == data.ImagePath {
					payload = u.Image
				}
			}
		}
	}
	_, b, err := scenery.DecodeDataURI(payload)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func exportAsPNG(path string) ([]byte, error) {
	img, err := scenery.Load(path)
	if err != nil {
		return nil, err
	}
	img = scenery.Constrain(img, scenery.DefaultMaxDimension, scenery.DefaultMaxDimension)
	payload, err := scenery.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	_, b, err := scenery.DecodeDataURI(payload)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntVarP(&exportScene, "scene", "s", 0, "scene index")
	exportCmd.Flags().IntVarP(&exportPage, "page", "p", 0, "page index")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "page.jpg", "output file")
	exportCmd.Flags().BoolVarP(&exportPNG, "png", "", false, "export as PNG")
	exportCmd.Flags().DurationVarP(&exportTimeout, "timeout", "", 30*time.Second, "time to wait for the high resolution image")
}
