// llmlab is the terminal client: it creates or attaches to a training run
// and renders the live event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"llmlab/internal/client"
	"llmlab/internal/packs"
	"llmlab/internal/run"
	"llmlab/internal/ui/live"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	server := flag.String("server", "http://localhost:8000", "base URL of llmlabd")
	pack := flag.String("pack", "regex", "builtin pack id to train on")
	uploadPath := flag.String("upload", "", "corpus .txt to upload and train on instead of a builtin pack")
	attach := flag.String("attach", "", "attach to an existing run id instead of creating one")
	cancelID := flag.String("cancel", "", "request cancellation of a run id and exit")
	listPacks := flag.Bool("packs", false, "list builtin packs and exit")
	steps := flag.Int("steps", 0, "override num_steps")
	seed := flag.Int64("seed", 0, "override seed")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*server)

	if *listPacks {
		descriptors, err := c.ListPacks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list packs: %v\n", err)
			return 1
		}
		for _, d := range descriptors {
			fmt.Printf("%-14s %-28s %d docs, %d chars\n", d.PackID, d.Title, d.DocumentCount, d.CharacterCount)
		}
		return 0
	}

	if *cancelID != "" {
		status, err := c.CancelRun(ctx, *cancelID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cancel: %v\n", err)
			return 1
		}
		fmt.Printf("run %s: %s\n", *cancelID, status)
		return 0
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal; the live view needs one")
		return 1
	}

	runID := *attach
	packID := *pack
	if runID == "" {
		if *uploadPath != "" {
			content, err := os.ReadFile(*uploadPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read upload: %v\n", err)
				return 1
			}
			up, err := c.Upload(ctx, filepath.Base(*uploadPath), content)
			if err != nil {
				fmt.Fprintf(os.Stderr, "upload: %v\n", err)
				return 1
			}
			packID = packs.UploadPrefix + up.UploadID
		}

		cfg := run.DefaultConfig()
		if *steps > 0 {
			cfg.NumSteps = *steps
		}
		if *seed != 0 {
			cfg.Seed = *seed
		}
		summary, err := c.CreateRun(ctx, packID, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create run: %v\n", err)
			return 1
		}
		runID = summary.RunID
	} else {
		summary, err := c.GetRun(ctx, runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "attach: %v\n", err)
			return 1
		}
		packID = summary.PackID
	}

	controller := live.Start(os.Stdout, live.Options{
		RunID:   runID,
		PackID:  packID,
		NoColor: *noColor,
	})
	go func() {
		if err := c.StreamEvents(ctx, runID, 0, controller.Events()); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "stream: %v\n", err)
		}
		controller.Close()
	}()
	controller.Wait()
	return 0
}
