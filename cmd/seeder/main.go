package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
)

// Built-in sample documents used when no source directory is given.
var samples = map[string]string{
	"lighthouse.txt": "The Point Harrow lighthouse was built in 1872 on a granite outcrop. " +
		"Its beam reaches twenty nautical miles and it still broadcasts a fog warning every third Tuesday.",
	"orchard.txt": "The orchard on the east slope grows three varieties of apple. " +
		"Harvest begins in late September and the fruit is pressed into cider within a week of picking.",
	"observatory.txt": "The hilltop observatory houses a sixty-centimeter reflector telescope. " +
		"Public viewing nights run from April through October, weather permitting.",
	"railway.txt": "The narrow-gauge railway once carried slate from the quarry to the coast. " +
		"Two of its original locomotives are preserved in working order.",
	"library.txt": "The reading room of the old library keeps its card catalog intact. " +
		"The earliest volume in the collection is a 1641 herbal with hand-colored plates.",
	"mill.txt": "The water mill ground flour for the valley until 1923. " +
		"Its oak wheel was restored by volunteers and turns again on open days.",
	"bridge.txt": "The stone bridge over the Aldern has seven arches and predates the town charter. " +
		"Floods in 1956 washed out the western approach, since rebuilt in the original style.",
	"glasshouse.txt": "The Victorian glasshouse shelters citrus trees through the winter. " +
		"Its cast-iron frame was manufactured locally and assembled on site in 1888.",
}

var (
	srcDir  = flag.String("src", "", "directory of seed documents")
	timeout = flag.Duration("timeout", 2*time.Minute, "how long to wait for the queue to drain")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// seedFromDir ingests every regular file in a directory.
func seedFromDir(ctx context.Context, system *docqa.System, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return count, err
		}
		_, err = system.Ingester().Ingest(ctx, entry.Name(), f)
		f.Close()
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// seedSamples ingests the built-in documents.
func seedSamples(ctx context.Context, system *docqa.System) (int, error) {
	for name, content := range samples {
		if _, err := system.Ingester().Ingest(ctx, name, strings.NewReader(content)); err != nil {
			return 0, err
		}
	}
	return len(samples), nil
}

// waitForDrain polls the queue until every job is settled or the deadline
// passes.
func waitForDrain(ctx context.Context, system *docqa.System, deadline time.Duration) error {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf("queue did not drain within %s", deadline)
		case <-ticker.C:
			pending, err := system.Broker().Pending(ctx)
			if err != nil {
				return err
			}
			if pending == 0 {
				return nil
			}
		}
	}
}

func main() {
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	system, err := docqa.NewSystem(cfg)
	if err != nil {
		panic(err)
	}
	defer system.Close()

	ctx := context.Background()
	system.StartConsumer(ctx)

	var count int
	if *srcDir != "" {
		count, err = seedFromDir(ctx, system, *srcDir)
	} else {
		count, err = seedSamples(ctx, system)
	}
	if err != nil {
		panic(err)
	}

	slog.Info("seeded documents, waiting for embedding", "count", count)
	if err := waitForDrain(ctx, system, *timeout); err != nil {
		panic(err)
	}
	slog.Info("done")
}
