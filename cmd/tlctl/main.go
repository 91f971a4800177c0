// Package main provides tlctl, a command line front end to the timelapse editor.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/maauso/timelapse-editor/internal/bootstrap"
	"github.com/maauso/timelapse-editor/internal/config"
	"github.com/maauso/timelapse-editor/internal/media"
	"github.com/maauso/timelapse-editor/internal/sequence"
	"github.com/maauso/timelapse-editor/internal/storage"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tlctl"
	app.Usage = "Inspect, edit and assemble timelapse sequences"
	app.UsageText = "tlctl [global options] command [command options] sequence_dir"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose, v", Usage: "log at debug level"},
	}
	app.Commands = []cli.Command{
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "List sequence directories, newest first",
			ArgsUsage: "[root]",
			Action:    listAction,
		},
		{
			Name:      "info",
			Aliases:   []string{"i"},
			Usage:     "Print sequence metadata",
			ArgsUsage: "sequence_dir",
			Action:    infoAction,
		},
		{
			Name:      "previews",
			Aliases:   []string{"p"},
			Usage:     "Generate preview thumbnails",
			ArgsUsage: "sequence_dir",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "interval", Value: 10, Usage: "take every Nth frame"},
				cli.IntFlag{Name: "max-size", Value: 300, Usage: "longest thumbnail side in pixels"},
				cli.StringFlag{Name: "out, o", Usage: "output directory (default <sequence>_previews)"},
			},
			Action: previewsAction,
		},
		{
			Name:      "extract",
			Aliases:   []string{"x"},
			Usage:     "Extract one frame",
			ArgsUsage: "sequence_dir index",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "output file (default <sequence>_extracted/frame_<index>)"},
			},
			Action: extractAction,
		},
		{
			Name:      "batch-edit",
			Aliases:   []string{"b"},
			Usage:     "Apply an edit to a range of frames",
			ArgsUsage: "sequence_dir",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "crop", Usage: "left,top,right,bottom"},
				cli.Float64Flag{Name: "brightness", Usage: "enhancement factor, 1.0 unchanged"},
				cli.Float64Flag{Name: "contrast", Usage: "enhancement factor, 1.0 unchanged"},
				cli.Float64Flag{Name: "saturation", Usage: "enhancement factor, 1.0 unchanged"},
				cli.Float64Flag{Name: "rotate", Usage: "degrees counter-clockwise"},
				cli.StringFlag{Name: "resize", Usage: "WIDTHxHEIGHT bounding box"},
				cli.StringFlag{Name: "filter", Usage: "blur, sharpen, contour, edge_enhance, emboss, smooth or detail"},
				cli.IntFlag{Name: "start", Usage: "first frame index"},
				cli.IntFlag{Name: "end", Value: -1, Usage: "last frame index, inclusive (default last frame)"},
				cli.IntFlag{Name: "interval", Value: 1, Usage: "take every Nth frame"},
				cli.StringFlag{Name: "out, o", Usage: "output directory (default <sequence>_edited)"},
			},
			Action: batchEditAction,
		},
		{
			Name:      "assemble",
			Aliases:   []string{"a"},
			Usage:     "Encode the sequence into a video",
			ArgsUsage: "sequence_dir",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "output video (default <output_dir>/processed_videos/<sequence>_video.<format>)"},
				cli.IntFlag{Name: "fps", Value: 24},
				cli.StringFlag{Name: "format", Value: "mp4"},
				cli.StringFlag{Name: "quality", Value: "high", Usage: "high, medium or low"},
				cli.BoolTFlag{Name: "use-edited", Usage: "encode the edited frames when present"},
				cli.StringFlag{Name: "edited", Usage: "edited frames directory (default <sequence>_edited)"},
				cli.StringFlag{Name: "crop", Usage: "left,top,right,bottom"},
				cli.StringFlag{Name: "resize", Usage: "WIDTHxHEIGHT"},
			},
			Action: assembleAction,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is the wiring shared by every command.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.LocalStorage
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.LogLevel = "warn"
	if c.GlobalBool("verbose") {
		cfg.LogLevel = "debug"
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	store, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) editor(dir string, opts ...sequence.Option) (*sequence.Editor, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", sequence.ErrSequenceNotFound, dir)
	}
	all := append(bootstrap.EditorOptions(e.cfg, e.logger, e.store), opts...)
	return sequence.NewEditor(dir, all...), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func sequenceArg(c *cli.Context) (string, error) {
	dir := c.Args().Get(0)
	if dir == "" {
		return "", fmt.Errorf("sequence directory is required")
	}
	return filepath.Clean(dir), nil
}

func listAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	root := c.Args().Get(0)
	if root == "" {
		root = e.cfg.TimelapseDir
	}

	summaries, err := sequence.ListSequences(root)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fmt.Printf("%-40s %-20s %s\n", s.Name, s.DateCaptured, s.Modified.Format(time.DateTime))
	}
	return nil
}

func infoAction(c *cli.Context) error {
	dir, err := sequenceArg(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ed, err := e.editor(dir)
	if err != nil {
		return err
	}

	m := ed.Metadata()
	fmt.Printf("name:          %s\n", m.Name)
	fmt.Printf("path:          %s\n", m.Path)
	fmt.Printf("frames:        %d\n", m.FrameCount)
	if m.DateCaptured != "" {
		fmt.Printf("date captured: %s\n", m.DateCaptured)
	}
	if m.FrameCount > 0 {
		fmt.Printf("first frame:   %s\n", m.FirstFrame)
		fmt.Printf("last frame:    %s\n", m.LastFrame)
	}
	return nil
}

func previewsAction(c *cli.Context) error {
	dir, err := sequenceArg(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	bar := newProgress("previews")
	ed, err := e.editor(dir, sequence.WithProgress(bar.update))
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = filepath.Join(filepath.Dir(dir), filepath.Base(dir)+"_previews")
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := ed.GenerateSequencePreview(ctx, out, c.Int("interval"), c.Int("max-size"))
	bar.finish()
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d previews to %s\n", len(res.Paths), res.OutputDir)
	printSkipped(res.Skipped)
	return nil
}

func extractAction(c *cli.Context) error {
	dir, err := sequenceArg(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("frame index is required: %w", err)
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	ed, err := e.editor(dir)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	path, err := ed.ExtractFrame(ctx, index, c.String("out"))
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func batchEditAction(c *cli.Context) error {
	dir, err := sequenceArg(c)
	if err != nil {
		return err
	}
	spec, err := editSpecFromFlags(c)
	if err != nil {
		return err
	}
	if spec.IsEmpty() {
		return fmt.Errorf("at least one edit flag is required")
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	bar := newProgress("editing")
	ed, err := e.editor(dir, sequence.WithProgress(bar.update))
	if err != nil {
		return err
	}

	opts := sequence.BatchOptions{
		OutputDir: c.String("out"),
		Start:     c.Int("start"),
		Interval:  c.Int("interval"),
	}
	if end := c.Int("end"); end >= 0 {
		opts.End = &end
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := ed.BatchEdit(ctx, spec, opts)
	bar.finish()
	if err != nil {
		return err
	}

	fmt.Printf("edited %d frames into %s\n", res.ProcessedCount(), res.OutputDir)
	printSkipped(res.Skipped)
	return nil
}

func assembleAction(c *cli.Context) error {
	dir, err := sequenceArg(c)
	if err != nil {
		return err
	}
	req := sequence.AssembleRequest{
		OutputPath: c.String("out"),
		FPS:        c.Int("fps"),
		Format:     c.String("format"),
		Quality:    media.ParseQuality(c.String("quality")),
		UseEdited:  c.BoolT("use-edited"),
	}
	if s := c.String("crop"); s != "" {
		r, err := parseRect(s)
		if err != nil {
			return err
		}
		req.Crop = &r
	}
	if s := c.String("resize"); s != "" {
		size, err := parseSize(s)
		if err != nil {
			return err
		}
		req.Resize = &size
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	var opts []sequence.Option
	if req.UseEdited {
		if edited := editedFramesDir(dir, c.String("edited")); edited != "" {
			opts = append(opts, sequence.WithEditedFramesPath(edited))
		}
	}
	ed, err := e.editor(dir, opts...)
	if err != nil {
		return err
	}
	if req.OutputPath == "" {
		req.OutputPath = filepath.Join(e.cfg.OutputDir, "processed_videos",
			fmt.Sprintf("%s_video.%s", filepath.Base(dir), req.Format))
	}

	ctx, cancel := signalContext()
	defer cancel()

	spin := spinner("assembling")
	out, err := ed.AssembleVideo(ctx, req)
	spin()
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func printSkipped(skipped []sequence.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "skipped frame %d (%s): %s\n", s.Index, filepath.Base(s.Path), s.Reason)
	}
}

// progress renders editor progress callbacks as a bar sized on first use.
type progress struct {
	desc string
	bar  *progressbar.ProgressBar
}

func newProgress(desc string) *progress {
	return &progress{desc: desc}
}

func (p *progress) update(done, total int) {
	if p.bar == nil {
		p.bar = newBar(total, p.desc)
	}
	_ = p.bar.Set(done)
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

// spinner animates until the returned stop function is called.
func spinner(desc string) (stop func()) {
	bar := newBar(-1, desc)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

func newBar(n int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
