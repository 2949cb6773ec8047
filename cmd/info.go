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
	"encoding/json"

	"github.com/fatih/color"
	"github.com/k1LoW/scenery"
	"github.com/spf13/cobra"
)

var infoJSON bool

type sceneSummary struct {
	Index     int                   `json:"index"`
	File      string                `json:"file"`
	Metadata  scenery.SceneMetadata `json:"metadata"`
	PageCount int                   `json:"page_count"`
	Error     string                `json:"error,omitempty"`
}

var infoCmd = &cobra.Command{
	Use:   "info COLLECTION_DIR",
	Short: "show scenes of a collection",
	Long:  `show scenes of a collection.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scenery.NewFileSceneStore()
		c, err := store.LoadCollection(args[0])
		if err != nil {
			return err
		}
		summaries := make([]*sceneSummary, 0, c.SceneCount())
		for i, f := range c.SceneFiles {
			s := &sceneSummary{Index: i, File: f}
			scene, err := store.LoadScene(c, i)
			if err != nil {
				s.Error = err.Error()
			} else {
				s.Metadata = scene.Metadata
				s.PageCount = scene.PageCount()
			}
			summaries = append(summaries, s)
		}
		if infoJSON {
			b, err := json.MarshalIndent(summaries, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(b))
			return nil
		}
		bold := color.New(color.Bold)
		for _, s := range summaries {
			if s.Error != "" {
				cmd.Printf("%d\t%s\t%s\n", s.Index, s.File, color.RedString(s.Error))
				continue
			}
			cmd.Printf("%d\t%s\t%d pages\t%dx%d\n", s.Index, bold.Sprint(s.Metadata.SceneName), s.PageCount, s.Metadata.ImageSize.Width, s.Metadata.ImageSize.Height)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVarP(&infoJSON, "json", "", false, "output in JSON")
}
