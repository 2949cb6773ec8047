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
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [PARENT_DIR]",
	Short: "list scene collections",
	Long:  `list scene collections (scenes-* directories) in PARENT_DIR.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()
		v, cfg, err := newViewer(logger)
		if err != nil {
			return err
		}
		parent := "."
		if cfg.ScenesDir != "" {
			parent = cfg.ScenesDir
		}
		if len(args) == 1 {
			parent = args[0]
		}
		items, err := v.ListCollections(parent)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			cmd.PrintErrln(color.YellowString("no scene collections found in %s", parent))
			return nil
		}
		for _, item := range items {
			cmd.Printf("%s\t%s\n", item.Name, item.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
