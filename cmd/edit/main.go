package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/config"
	"github.com/wippyai/editor-runtime/loader"
	"github.com/wippyai/editor-runtime/styles"
	"github.com/wippyai/editor-runtime/termengine"
	"github.com/wippyai/editor-runtime/wasmengine"
	"github.com/wippyai/editor-runtime/widget"
)

func main() {
	var (
		engineURL   = flag.String("engine", "", "URL or path of a wasm engine asset (default: built-in terminal engine)")
		file        = flag.String("file", "", "File to load into the editor")
		configPath  = flag.String("config", "", "Path to config file")
		stylesDir   = flag.String("styles", "", "Directory of .css style artifacts to watch")
		mode        = flag.String("mode", "", "Editor mode (language)")
		theme       = flag.String("theme", "", "Editor theme")
		readonly    = flag.Bool("readonly", false, "Open the editor read-only")
		evalFlag    = flag.Bool("eval", false, "Evaluate the loaded content in the engine once it is ready")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Editor.Mode = *mode
	}
	if *theme != "" {
		cfg.Editor.Theme = *theme
	}
	if *readonly {
		cfg.Editor.ReadOnly = true
	}
	if *engineURL != "" {
		cfg.Engine.URL = *engineURL
	}
	if *stylesDir != "" {
		cfg.Styles.Dir = *stylesDir
	}

	log := zap.NewNop()
	if *verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, *file, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *file, *evalFlag, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLoader builds the loader for cfg: the wasm engine when an asset URL is
// configured, the in-process terminal engine otherwise.
func newLoader(cfg *config.Config, log *zap.Logger) *loader.Loader {
	common := []loader.Option{
		loader.WithPollInterval(cfg.Engine.PollInterval()),
		loader.WithLoadTimeout(cfg.Engine.LoadTimeout()),
		loader.WithLogger(log),
	}
	if cfg.Engine.URL != "" {
		return loader.New(append(common,
			loader.WithURL(cfg.Engine.URL),
			loader.WithBootstrapper(wasmengine.Bootstrap(wasmengine.WithLogger(log))),
		)...)
	}
	return termengine.Loader(common...)
}

// newStyles builds the style registry, watching cfg.Styles.Dir when set.
// The returned cleanup stops the watcher.
func newStyles(cfg *config.Config, log *zap.Logger) (*styles.Registry, func(), error) {
	reg := styles.NewRegistry()
	if cfg.Styles.Dir == "" {
		return reg, func() {}, nil
	}
	w, err := styles.Watch(cfg.Styles.Dir, reg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("watch styles: %w", err)
	}
	return reg, func() { w.Close() }, nil
}

// widgetOptions assembles the widget configuration shared by both modes.
// With eval set, the widget evaluates its resolved content once it is ready.
func widgetOptions(cfg *config.Config, file string, eval bool, ld *loader.Loader, styleReg *styles.Registry, log *zap.Logger) ([]widget.Option, error) {
	attrs := map[string]string{}
	if cfg.Editor.Mode != "" {
		attrs[widget.AttrLang] = cfg.Editor.Mode
	}
	if cfg.Editor.Theme != "" {
		attrs[widget.AttrTheme] = cfg.Editor.Theme
	}
	if cfg.Editor.ReadOnly {
		attrs[widget.AttrReadOnly] = "true"
	}
	if cfg.Editor.TabSize > 0 {
		attrs[widget.AttrTabSize] = fmt.Sprint(cfg.Editor.TabSize)
	}
	if cfg.Editor.MinHeightPx > 0 {
		attrs[widget.AttrMinHeightPx] = fmt.Sprint(cfg.Editor.MinHeightPx)
	}
	if cfg.Editor.MinHeightLines > 0 {
		attrs[widget.AttrMinHeightLines] = fmt.Sprint(cfg.Editor.MinHeightLines)
	}
	if eval {
		attrs[widget.AttrEval] = ""
	}

	opts := []widget.Option{
		widget.WithLoader(ld),
		widget.WithStyles(styleReg),
		widget.WithLogger(log),
		widget.WithAttributes(attrs),
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		// File content is verbatim; skip entity decoding and dedent.
		opts = append(opts,
			widget.WithAttributes(map[string]string{
				widget.AttrNoDecode: "",
				widget.AttrNoDedent: "",
			}),
			widget.WithText(string(data)),
		)
	}
	return opts, nil
}

// stdioSurface is the non-interactive container: lifecycle output goes to
// stderr, leaving stdout for the content dump.
type stdioSurface struct {
	errCh  chan string
	height int
}

func (s *stdioSurface) ShowLoading() {
	fmt.Fprintln(os.Stderr, "loading engine...")
}

func (s *stdioSurface) ShowError(msg string) {
	select {
	case s.errCh <- msg:
	default:
	}
}

func (s *stdioSurface) SetHeight(px int) { s.height = px }

func (s *stdioSurface) AdoptStyle(id, css string) {
	fmt.Fprintf(os.Stderr, "adopted style %s (%d bytes)\n", id, len(css))
}

func (s *stdioSurface) HasElement(string) bool { return false }

func run(cfg *config.Config, file string, eval bool, log *zap.Logger) error {
	ctx := context.Background()

	ld := newLoader(cfg, log)
	styleReg, stopStyles, err := newStyles(cfg, log)
	if err != nil {
		return err
	}
	defer stopStyles()

	opts, err := widgetOptions(cfg, file, eval, ld, styleReg, log)
	if err != nil {
		return err
	}

	surface := &stdioSurface{errCh: make(chan string, 1)}
	w := widget.New(surface, opts...)

	readyCh := make(chan editorruntime.Ready, 1)
	w.OnReady(func(r editorruntime.Ready) { readyCh <- r })

	if err := w.Attach(ctx); err != nil {
		return err
	}
	defer w.Detach()

	var ready editorruntime.Ready
	select {
	case ready = <-readyCh:
	case msg := <-surface.errCh:
		return fmt.Errorf("%s", msg)
	}

	fmt.Fprintf(os.Stderr, "Loader:  %s\n", ld.State())
	fmt.Fprintf(os.Stderr, "Widget:  %s\n", ready.ID)
	fmt.Fprintf(os.Stderr, "Mode:    %s\n", ready.Editor.Mode())
	fmt.Fprintf(os.Stderr, "Theme:   %s\n", ready.Editor.Theme())
	fmt.Fprintf(os.Stderr, "Lines:   %d\n", ready.Editor.LineCount())
	fmt.Fprintf(os.Stderr, "Height:  %d\n", surface.height)

	fmt.Print(w.Value())
	return nil
}
