package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weedbot/console/internal/config"
	"github.com/weedbot/console/internal/gallery"
	"github.com/weedbot/console/internal/models"
)

const usage = `Usage: galleryctl [flags] <command> [filenames...]

Commands:
  list       print the gallery, optionally filtered
  watch      mirror the gallery continuously and print changes
  delete     delete the selected images
  tag        tag the selected images (requires -tag)
  download   download the selected images as a zip (see -out)
  clear      delete every image in the gallery

Selection flags (for delete/tag/download):
  -all -today -week -large   or explicit filenames as arguments

Filter flags (for list/watch):
  -date all|today|week|month
  -size all|small|medium|large
`

type options struct {
	url      string
	interval time.Duration
	date     string
	size     string
	tag      string
	out      string
	all      bool
	today    bool
	week     bool
	large    bool
}

func main() {
	var opts options

	flag.StringVar(&opts.url, "url", "", "gallery server base URL (default from config)")
	flag.DurationVar(&opts.interval, "interval", 0, "refresh interval for watch (default from config)")
	flag.StringVar(&opts.date, "date", "all", "date filter: all, today, week, month")
	flag.StringVar(&opts.size, "size", "all", "size filter: all, small, medium, large")
	flag.StringVar(&opts.tag, "tag", "", "tag to apply with the tag command")
	flag.StringVar(&opts.out, "out", "", "output path for download (default weedbot_images_<date>.zip)")
	flag.BoolVar(&opts.all, "all", false, "select all images")
	flag.BoolVar(&opts.today, "today", false, "select images captured today")
	flag.BoolVar(&opts.week, "week", false, "select images captured this week")
	flag.BoolVar(&opts.large, "large", false, "select images of 2MB or more")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)
	filenames := flag.Args()[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.url == "" {
		opts.url = cfg.GalleryURL
	}
	if opts.interval == 0 {
		opts.interval = time.Duration(cfg.Gallery.RefreshIntervalSeconds) * time.Second
	}

	client := gallery.NewHTTPClient(opts.url,
		gallery.WithAPIKey(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	port := &consolePort{}
	sync := gallery.NewSynchronizer(client, port, gallery.WithInterval(opts.interval))
	defer sync.Close()
	sync.SetCriteria(criteriaFromFlags(opts))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, command, filenames, opts, client, sync, port); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, filenames []string, opts options,
	client *gallery.HTTPClient, sync *gallery.Synchronizer, port *consolePort) error {

	executor := gallery.NewExecutor(client, sync, port)

	switch command {
	case "list":
		port.verbose = true
		return sync.Refresh(ctx)

	case "watch":
		port.verbose = true
		sync.Start(ctx)
		watcher := gallery.NewWatcher(opts.url, sync)
		go watcher.Run(ctx)
		<-ctx.Done()
		return nil

	case "delete":
		if err := selectImages(ctx, sync, opts, filenames); err != nil {
			return err
		}
		_, err := executor.DeleteSelected(ctx)
		return err

	case "tag":
		if err := selectImages(ctx, sync, opts, filenames); err != nil {
			return err
		}
		_, err := executor.TagSelected(ctx, opts.tag)
		return err

	case "download":
		if err := selectImages(ctx, sync, opts, filenames); err != nil {
			return err
		}
		outcome, err := executor.DownloadSelected(ctx)
		if err != nil {
			return err
		}
		return writeArchive(opts.out, outcome.Archive)

	case "clear":
		result, err := client.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d images deleted\n", result.Deleted)
		return nil

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// selectImages fetches the mirror once and builds the selection from
// the flags and any explicit filenames.
func selectImages(ctx context.Context, sync *gallery.Synchronizer, opts options, filenames []string) error {
	if err := sync.Refresh(ctx); err != nil {
		return err
	}

	now := time.Now()
	switch {
	case opts.all:
		sync.SelectAllVisible()
	case opts.today:
		sync.SelectWhere(gallery.CapturedToday(now))
	case opts.week:
		sync.SelectWhere(gallery.CapturedThisWeek(now))
	case opts.large:
		sync.SelectWhere(gallery.LargeFiles())
	}
	for _, f := range filenames {
		sync.Toggle(f)
	}
	return nil
}

func criteriaFromFlags(opts options) gallery.Criteria {
	return gallery.Criteria{
		Date: gallery.DateRange(opts.date),
		Size: gallery.SizeRange(opts.size),
	}
}

func writeArchive(path string, data []byte) error {
	if path == "" {
		path = fmt.Sprintf("weedbot_images_%s.zip", time.Now().Format("2006-01-02"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Printf("archive written to %s\n", path)
	return nil
}

// consolePort renders the gallery onto stdout.
type consolePort struct {
	verbose bool
	lost    bool
}

func (p *consolePort) RenderList(visible []models.ImageRecord) {
	if !p.verbose {
		return
	}
	if len(visible) == 0 {
		fmt.Println("no images found")
		return
	}
	for _, img := range visible {
		tags := ""
		if len(img.Tags) > 0 {
			tags = fmt.Sprintf("  [%v]", img.Tags)
		}
		fmt.Printf("%-32s %10s  %s%s\n",
			img.Filename,
			formatSize(img.SizeBytes),
			img.CreatedAt().Format("2006-01-02 15:04:05"),
			tags)
	}
}

func (p *consolePort) RenderSelectionBar(count int, totalBytes int64) {
	if p.verbose && count > 0 {
		fmt.Printf("-- %d selected (%s)\n", count, formatSize(totalBytes))
	}
}

func (p *consolePort) Notify(level gallery.NotifyLevel, message string) {
	fmt.Printf("[%s] %s\n", level, message)
}

func (p *consolePort) ConnectionLost(lost bool) {
	if lost == p.lost {
		return
	}
	p.lost = lost
	if lost {
		fmt.Println("!! connection to gallery server lost")
	} else {
		fmt.Println("connection to gallery server restored")
	}
}

func formatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
