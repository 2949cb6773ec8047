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
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/k1LoW/scenery"
	"github.com/spf13/cobra"
)

var watch bool

type viewAction int

const (
	actionNextPage viewAction = iota
	actionPrevPage
	actionNextScene
	actionPrevScene
	actionGoto
	actionLoop
	actionInfo
	actionQuit
	actionHelp
)

type viewCommand struct {
	action viewAction
	scene  *int
	page   int
	loop   *bool // nil toggles
}

const viewHelp = `n: next page, p: previous page, N: next scene, P: previous scene
g PAGE: go to page, s SCENE PAGE: go to page of scene
l [on|off]: toggle scene loop, i: scene info, q: quit`

var viewCmd = &cobra.Command{
	Use:   "view COLLECTION_DIR",
	Short: "step through the scenes of a collection",
	Long: `step through the scenes of a collection.

Commands are read line by line from stdin:
` + viewHelp,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		logger, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()
		v, _, err := newViewer(logger)
		if err != nil {
			return err
		}
		n, err := v.LoadCollection(ctx, args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no scenes found in %s", args[0])
		}
		if watch {
			go func() {
				if err := v.Watch(ctx, args[0]); err != nil {
					cmd.PrintErrln(color.RedString("watch stopped: %v", err))
				}
			}()
		}

		p := &pagePrinter{cmd: cmd}
		go p.follow(ctx, v.Upgrades())

		data, err := v.GetImage(ctx, nil, 0)
		if err != nil {
			return err
		}
		p.printImage(data)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			c, err := parseViewCommand(line)
			if err != nil {
				p.printError(err)
				continue
			}
			if c.action == actionQuit {
				break
			}
			if err := runViewCommand(ctx, v, p, c); err != nil {
				p.printError(err)
			}
		}
		return scanner.Err()
	},
}

func runViewCommand(ctx context.Context, v *scenery.Viewer, p *pagePrinter, c *viewCommand) error {
	var (
		data *scenery.ImageData
		info *scenery.SceneInfo
		err  error
	)
	switch c.action {
	case actionNextPage:
		data, err = v.NextPage(ctx)
	case actionPrevPage:
		data, err = v.PrevPage(ctx)
	case actionNextScene:
		if info, err = v.NextScene(ctx); err == nil {
			data, err = v.GetImage(ctx, nil, 0)
		}
	case actionPrevScene:
		if info, err = v.PrevScene(ctx); err == nil {
			data, err = v.GetImage(ctx, nil, 0)
		}
	case actionGoto:
		data, err = v.GetImage(ctx, c.scene, c.page)
	case actionLoop:
		enabled := !v.LoopEnabled()
		if c.loop != nil {
			enabled = *c.loop
		}
		v.SetLoopEnabled(enabled)
		p.printf("scene loop: %v\n", enabled)
		return nil
	case actionInfo:
		info, err = v.SceneInfo()
	case actionHelp:
		p.printf("%s\n", viewHelp)
		return nil
	}
	if err != nil {
		return err
	}
	if info != nil {
		p.printInfo(info)
	}
	if data != nil {
		p.printImage(data)
	}
	return nil
}

func parseViewCommand(line string) (*viewCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	switch fields[0] {
	case "n":
		return &viewCommand{action: actionNextPage}, nil
	case "p":
		return &viewCommand{action: actionPrevPage}, nil
	case "N":
		return &viewCommand{action: actionNextScene}, nil
	case "P":
		return &viewCommand{action: actionPrevScene}, nil
	case "i":
		return &viewCommand{action: actionInfo}, nil
	case "q":
		return &viewCommand{action: actionQuit}, nil
	case "h", "?":
		return &viewCommand{action: actionHelp}, nil
	case "l":
		c := &viewCommand{action: actionLoop}
		if len(fields) > 1 {
			switch fields[1] {
			case "on":
				c.loop = boolPtr(true)
			case "off":
				c.loop = boolPtr(false)
			default:
				return nil, fmt.Errorf("invalid loop mode: %s", fields[1])
			}
		}
		return c, nil
	case "g":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: g PAGE")
		}
		page, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", fields[1])
		}
		return &viewCommand{action: actionGoto, page: page}, nil
	case "s":
		if len(fields) != 3 {
			return nil, fmt.Errorf("usage: s SCENE PAGE")
		}
		scene, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid scene number: %s", fields[1])
		}
		page, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", fields[2])
		}
		return &viewCommand{action: actionGoto, scene: &scene, page: page}, nil
	}
	return nil, fmt.Errorf("unknown command: %s (h for help)", fields[0])
}

// pagePrinter serializes output of the command loop and the upgrade follower.
type pagePrinter struct {
	cmd     *cobra.Command
	mu      sync.Mutex
	current scenery.ImageData
}

func (p *pagePrinter) printf(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd.Printf(format, a...)
}

func (p *pagePrinter) printError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd.PrintErrln(color.RedString("%v", err))
}

func (p *pagePrinter) printImage(data *scenery.ImageData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = *data
	variant := color.GreenString("high-res")
	if data.IsPreview {
		variant = color.YellowString("preview")
	}
	thumb := "no"
	if data.ThumbnailImage != "" {
		thumb = "yes"
	}
	p.cmd.Printf("[scene %d page %d] %s (%s, %s) thumbnail: %s\n", data.SceneIndex, data.PageIndex, data.ImagePath, variant, payloadSize(data.MainImage), thumb)
}

func (p *pagePrinter) printInfo(info *scenery.SceneInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd.Printf("%s (scene %d/%d, %d pages)\n", color.New(color.Bold).Sprint(info.SceneName), info.SceneIndex+1, info.SceneCount, info.TotalPages)
}

// follow prints upgrades for the page currently shown and ignores stale ones.
func (p *pagePrinter) follow(ctx context.Context, upgrades <-chan scenery.Upgrade) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-upgrades:
			p.mu.Lock()
			if p.current.IsPreview && u.SceneIndex == p.current.SceneIndex && u.PageIndex == p.current.PageIndex && u.Path == p.current.ImagePath {
				p.current.MainImage = u.Image
				p.current.IsPreview = false
				p.cmd.Printf("[scene %d page %d] %s (%s, %s)\n", u.SceneIndex, u.PageIndex, u.Path, color.GreenString("upgraded"), payloadSize(u.Image))
			}
			p.mu.Unlock()
		}
	}
}

// payloadSize returns the decoded size of a base64 data URI in a human readable form.
func payloadSize(dataURI string) string {
	_, b, found := strings.Cut(dataURI, ";base64,")
	if !found {
		return "0B"
	}
	n := len(b) / 4 * 3
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%dB", n)
}

func boolPtr(b bool) *bool {
	return &b
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().BoolVarP(&watch, "watch", "w", false, "drop cached images of files that change")
}
