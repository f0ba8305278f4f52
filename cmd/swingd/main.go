// Command swingd analyzes recorded pose tracks: it imports extractor
// posetrack files, counts exercise repetitions, and manages the local
// track store.
//
// Usage:
//
//	swingd [flags] analyze <posetrack.json>   import, count reps, optionally save
//	swingd [flags] replay <track-id>          recount a stored track
//	swingd [flags] list                       list stored tracks
//	swingd [flags] delete <track-id>          delete a stored track
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/idvorkin/swing-analyzer-sub004/internal/config"
	"github.com/idvorkin/swing-analyzer-sub004/internal/emitter"
	"github.com/idvorkin/swing-analyzer-sub004/internal/rep"
	"github.com/idvorkin/swing-analyzer-sub004/internal/session"
	"github.com/idvorkin/swing-analyzer-sub004/internal/store"
	"github.com/idvorkin/swing-analyzer-sub004/internal/supply"
	"github.com/idvorkin/swing-analyzer-sub004/internal/track"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	debug := flag.Bool("debug", false, "enable debug logging")
	save := flag.Bool("save", false, "save the analyzed track to the store (analyze mode)")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	var err error
	switch args[0] {
	case "analyze":
		if len(args) != 2 {
			err = fmt.Errorf("usage: swingd analyze <posetrack.json>")
		} else {
			err = runAnalyze(ctx, cfg, args[1], *save)
		}
	case "replay":
		if len(args) != 2 {
			err = fmt.Errorf("usage: swingd replay <track-id>")
		} else {
			err = runReplay(ctx, cfg, args[1])
		}
	case "list":
		err = runList(ctx, cfg)
	case "delete":
		if len(args) != 2 {
			err = fmt.Errorf("usage: swingd delete <track-id>")
		} else {
			err = runDelete(ctx, cfg, args[1])
		}
	default:
		err = fmt.Errorf("unknown mode %q", args[0])
	}
	if err != nil {
		slog.Error("command failed", "mode", args[0], "error", err)
		os.Exit(1)
	}
}

// runAnalyze imports a posetrack file and counts reps through the live
// cache, the same path a live extraction takes: a producer task pumps
// frames in while the session drains them concurrently.
func runAnalyze(ctx context.Context, cfg *config.Config, path string, save bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	t, err := track.DecodeJSON(data)
	if err != nil {
		return err
	}
	meta := t.Meta()
	slog.Info("posetrack imported",
		"track_id", meta.TrackID,
		"source", meta.SourceVideoName,
		"frames", t.Len(),
		"fps", meta.FPS,
		"scheme", meta.KeypointScheme,
	)

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}

	src, err := supply.NewSealedSource(t, nil)
	if err != nil {
		return err
	}
	cache := supply.NewLiveCache(src.Identity())
	go supply.Pump(ctx, src, cache)

	sess.Attach(cache, session.ModeLiveCache)
	if err := sess.Run(ctx); err != nil {
		return err
	}
	printReps(sess)

	if save {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Save(ctx, t); err != nil {
			return err
		}
		slog.Info("track saved", "track_id", meta.TrackID, "store", cfg.Store.Path)
	}
	return nil
}

// runReplay recounts a previously saved track from the store.
func runReplay(ctx context.Context, cfg *config.Config, trackID string) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	t, err := st.Load(ctx, trackID)
	if err != nil {
		return err
	}
	src, err := supply.NewSealedSource(t, nil)
	if err != nil {
		return err
	}

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	sess.Attach(src, session.ModeSealed)
	if err := sess.Run(ctx); err != nil {
		return err
	}
	printReps(sess)
	return nil
}

func runList(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no tracks stored")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%s  %8d bytes  %6.1fs  %5d frames  %s\n",
			info.TrackID, info.Size, info.Duration, info.FrameCount, info.SourceVideoName)
	}
	return nil
}

func runDelete(ctx context.Context, cfg *config.Config, trackID string) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Delete(ctx, trackID); err != nil {
		return err
	}
	slog.Info("track deleted", "track_id", trackID)
	return nil
}

// newSession builds a session, wiring the MQTT emitter when enabled.
func newSession(cfg *config.Config) (*session.Session, error) {
	if !cfg.MQTT.Enabled {
		return session.New(cfg)
	}
	em := emitter.New(emitter.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
	})
	if err := em.Connect(); err != nil {
		return nil, err
	}
	var sess *session.Session
	s, err := session.New(cfg, session.WithSealedHook(func(r *rep.Rep) {
		em.PublishRep(sess.ID(), cfg.Exercise, r)
	}))
	if err != nil {
		em.Close()
		return nil, err
	}
	sess = s
	return sess, nil
}

func printReps(sess *session.Session) {
	reps := sess.SealedReps()
	fmt.Printf("sealed reps: %d\n", len(reps))
	for _, r := range reps {
		fmt.Printf("  rep %d: %.2fs, phases %v, checkpoints %d\n",
			r.Number, r.Duration().Seconds(), r.History(), len(r.Checkpoints()))
	}
	if cur, ok := sess.InProgress(); ok {
		fmt.Printf("in progress (not counted): rep %d, phases %v\n",
			cur.Number, cur.History())
	}
}
