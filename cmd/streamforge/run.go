package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/streamforge/dispatcher"
	"github.com/Carmen-Shannon/streamforge/engine/profiler"
	"github.com/Carmen-Shannon/streamforge/engine/window"
	"github.com/Carmen-Shannon/streamforge/gpu"
	"github.com/Carmen-Shannon/streamforge/internal/rawframe"
	"github.com/Carmen-Shannon/streamforge/present"
	"github.com/Carmen-Shannon/streamforge/stagebody"
	"github.com/Carmen-Shannon/streamforge/token"
)

func runRender(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("source.dir"); dir != "" {
		cfg.Source.Dir = dir
	}
	if pattern, _ := cmd.Flags().GetString("source.pattern"); pattern != "" {
		cfg.Source.Pattern = pattern
	}
	if loops, _ := cmd.Flags().GetInt("source.loop_count"); loops != 0 {
		cfg.Source.LoopCount = loops
	}
	if preview, _ := cmd.Flags().GetBool("preview.enabled"); preview {
		cfg.Preview.Enabled = true
	}
	if fallback, _ := cmd.Flags().GetBool("gpu.force_fallback_adapter"); fallback {
		cfg.Gpu.ForceFallbackAdapter = true
	}
	if cfg.Source.Dir == "" {
		return fmt.Errorf("streamforge: --source.dir is required")
	}

	sourcePixelFormat, err := parsePixelFormat(cfg.Source.PixelFormat)
	if err != nil {
		return err
	}
	renderPixelFormat, err := parsePixelFormat(cfg.Render.PixelFormat)
	if err != nil {
		return err
	}
	originFormat := token.ImageFormat{Width: cfg.Source.Width, Height: cfg.Source.Height, PixelFormat: sourcePixelFormat}
	renderFormat := token.ImageFormat{Width: cfg.Source.Width, Height: cfg.Source.Height, PixelFormat: renderPixelFormat}

	seq, err := rawframe.NewSequence(cfg.Source.Dir, cfg.Source.Pattern, originFormat,
		token.Rational{Num: cfg.Source.FrameNum, Den: cfg.Source.FrameDen}, cfg.Source.LoopCount)
	if err != nil {
		return err
	}

	gpuCtx, err := gpu.NewWGPUContext(cfg.Gpu.ForceFallbackAdapter)
	if err != nil {
		return fmt.Errorf("streamforge: create gpu context: %w", err)
	}

	dp, ok := gpuCtx.(stagebody.DeviceProvider)
	if !ok {
		return fmt.Errorf("streamforge: gpu context does not expose a device/queue")
	}

	persistentMapping := cfg.Pipeline.PersistentMapping
	bodies := dispatcher.StageBodies{
		CopyHostToStaging:    stagebody.NewCopyHostToStaging(dp, persistentMapping),
		UnmapStaging:         stagebody.NewUnmapStaging(dp, persistentMapping),
		UnpackStagingToImage: stagebody.NewUnpackStagingToImage(dp),
		ConvertFormatIn:      stagebody.NewConvertFormatIn(dp, renderFormat),
		ConvertFormatOut:     stagebody.NewConvertFormatOut(dp, originFormat),
		PackImageToStaging:   stagebody.NewPackImageToStaging(dp),
		MapStaging:           stagebody.NewMapStaging(dp, persistentMapping),
		CopyStagingToHost:    stagebody.NewCopyStagingToHost(dp, persistentMapping),
	}

	var outputCallback gpu.OutputCallback
	var closePreview func() error
	if cfg.Preview.Enabled {
		win := window.NewWindow(
			window.WithTitle(cfg.Preview.Title),
			window.WithWidth(cfg.Preview.Width),
			window.WithHeight(cfg.Preview.Height),
		)
		sp, ok := gpuCtx.(present.SurfaceProvider)
		if !ok {
			return fmt.Errorf("streamforge: gpu context does not support windowed preview")
		}
		sink, err := present.NewWindowSink(sp, win, originFormat)
		if err != nil {
			return fmt.Errorf("streamforge: configure preview window: %w", err)
		}
		outputCallback = sink.Callback()
		closePreview = func() error {
			if err := sink.Close(); err != nil {
				return err
			}
			return win.Close()
		}

		// ProcessMessages blocks pumping GLFW events until the window
		// closes; run it on its own goroutine so it doesn't stall the
		// dispatcher below.
		go win.ProcessMessages()
	} else {
		outputCallback = func(*gpu.Frame) {}
	}

	prof := profiler.NewProfiler()
	deliver := outputCallback
	outputCallback = func(f *gpu.Frame) {
		deliver(f)
		prof.Tick()
	}

	d, err := dispatcher.New("streamforge", gpuCtx, originFormat, renderFormat,
		true, true, true, cfg.flagSet(), bodies, dispatcher.WithSampling(true, false))
	if err != nil {
		return fmt.Errorf("streamforge: configure dispatcher: %w", err)
	}
	if err := d.Start(); err != nil {
		return fmt.Errorf("streamforge: start dispatcher: %w", err)
	}

	done := make(chan struct{})
	id := d.CreateComposition(cfg.Source.Dir, seq, nil, outputCallback)
	if err := d.StartComposition(id, func() { close(done) }); err != nil {
		return fmt.Errorf("streamforge: start composition: %w", err)
	}

	<-done
	d.Wait()

	if trace := d.Shutdown(nil); trace != nil {
		log.Printf("[streamforge] processed %d total frames", trace.Session.TotalFrames)
	}

	if closePreview != nil {
		return closePreview()
	}
	return nil
}
