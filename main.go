// main.go - Main entry point for the NetAudio traffic sonification engine

/*
███╗   ██╗███████╗████████╗ █████╗ ██╗   ██╗██████╗ ██╗ ██████╗
████╗  ██║██╔════╝╚══██╔══╝██╔══██╗██║   ██║██╔══██╗██║██╔═══██╗
██╔██╗ ██║█████╗     ██║   ███████║██║   ██║██║  ██║██║██║   ██║
██║╚██╗██║██╔══╝     ██║   ██╔══██║██║   ██║██║  ██║██║██║   ██║
██║ ╚████║███████╗   ██║   ██║  ██║╚██████╔╝██████╔╝██║╚██████╔╝
╚═╝  ╚═══╝╚══════╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝ ╚═════╝

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;20;255;147m███╗   ██╗███████╗████████╗ █████╗ ██╗   ██╗██████╗ ██╗ ██████╗ \033[0m\n\033[38;2;50;255;147m████╗  ██║██╔════╝╚══██╔══╝██╔══██╗██║   ██║██╔══██╗██║██╔═══██╗\033[0m\n\033[38;2;80;255;147m██╔██╗ ██║█████╗     ██║   ███████║██║   ██║██║  ██║██║██║   ██║\033[0m\n\033[38;2;110;255;147m██║╚██╗██║██╔══╝     ██║   ██╔══██║██║   ██║██║  ██║██║██║   ██║\033[0m\n\033[38;2;140;255;147m██║ ╚████║███████╗   ██║   ██║  ██║╚██████╔╝██████╔╝██║╚██████╔╝\033[0m\n\033[38;2;170;255;147m╚═╝  ╚═══╝╚══════╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝ ╚═════╝ \033[0m")
	fmt.Println("\nListen to your network: packets in, music out.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/NetAudio")
	fmt.Println("Buy me a coffee: https://ko-fi.com/intuition/tip")
	fmt.Println("License: GPLv3 or later")
}

// profileOrder fixes the 1-5 key bindings in the live monitor.
var profileOrder = []string{
	PROFILE_AMBIENT,
	PROFILE_MUSICAL,
	PROFILE_NATURE,
	PROFILE_ABSTRACT,
	PROFILE_ALERT,
}

func main() {
	boilerPlate()

	var (
		pcapPath   string
		ifaceName  string
		bpfFilter  string
		demoMode   bool
		demoCount  int
		demoSeed   int64
		outPath    string
		profName   string
		luaPath    string
		configPath string
		headless   bool
		noPace     bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&pcapPath, "pcap", "", "Sonify a pcap capture file")
	flagSet.StringVar(&ifaceName, "iface", "", "Sonify live traffic on a network interface")
	flagSet.StringVar(&bpfFilter, "bpf", "", "BPF capture filter (live mode)")
	flagSet.BoolVar(&demoMode, "demo", false, "Sonify synthetic demo traffic")
	flagSet.IntVar(&demoCount, "count", 200, "Number of synthetic events in demo mode")
	flagSet.Int64Var(&demoSeed, "seed", 1, "Random seed for demo traffic")
	flagSet.StringVar(&outPath, "out", "", "Render to a WAV file instead of the audio device")
	flagSet.StringVar(&profName, "profile", "", "Sonification profile: ambient, musical, nature, abstract, alert")
	flagSet.StringVar(&luaPath, "lua", "", "Load a custom profile from a Lua script")
	flagSet.StringVar(&configPath, "config", "", "YAML configuration file")
	flagSet.BoolVar(&headless, "headless", false, "Run the live pipeline without an audio device")
	flagSet.BoolVar(&noPace, "no-pace", false, "Replay pcap events as fast as possible (live mode)")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./netaudio -pcap file|-iface name|-demo [-out file.wav] [-profile name|-lua script] [-config file.yaml]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	sourceCount := 0
	if pcapPath != "" {
		sourceCount++
	}
	if ifaceName != "" {
		sourceCount++
	}
	if demoMode {
		sourceCount++
	}
	if sourceCount == 0 {
		demoMode = true
		sourceCount = 1
	}
	if sourceCount != 1 {
		fmt.Println("Error: select exactly one event source: -pcap, -iface, or -demo")
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if profName == "" {
		profName = cfg.Profile
	}

	extractor := NewFeatureExtractor()
	normalizer := NewNormalizer(cfg.NormalizerRanges())

	var profile *Profile
	if luaPath != "" {
		profile, err = LoadLuaProfile(luaPath, extractor.FeatureNames())
	} else {
		profile, err = LoadProfile(profName, extractor.FeatureNames())
	}
	if err != nil {
		fmt.Printf("Error loading profile: %v\n", err)
		os.Exit(1)
	}

	source, err := openSource(pcapPath, ifaceName, bpfFilter, demoSeed, demoCount, outPath == "" && !noPace)
	if err != nil {
		fmt.Printf("Error opening event source: %v\n", err)
		os.Exit(1)
	}
	defer source.Close()

	if outPath != "" {
		err = runBatch(cfg, profile, extractor, normalizer, source, outPath, log)
	} else {
		err = runLive(cfg, profile, extractor, normalizer, source, headless, log)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func openSource(pcapPath, ifaceName, bpf string, seed int64, count int, pace bool) (EventSource, error) {
	switch {
	case pcapPath != "":
		return NewPcapSource(pcapPath, pace)
	case ifaceName != "":
		return NewLiveSource(ifaceName, bpf)
	default:
		gen := NewTrafficGenerator(seed, count)
		gen.Pace = pace
		return gen, nil
	}
}

// runBatch drains the whole source into windowed buffers and writes one
// WAV file. Pure function of the event list: same capture, same bytes out.
func runBatch(cfg Config, profile *Profile, extractor *FeatureExtractor, normalizer *Normalizer, source EventSource, outPath string, log *slog.Logger) error {
	mapper := NewParamMapper(profile, float32(cfg.SmoothingMS))
	agg := NewWindowAggregator(profile,
		time.Duration(cfg.WindowSize*float64(time.Second)),
		cfg.SampleRate, cfg.Polyphony)

	events := 0
	for {
		ev, err := source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("event source: %w", err)
		}
		fv := normalizer.Normalize(extractor.Extract(ev))
		agg.Add(mapper.Map(fv))
		events++
	}

	log.Info("batch render",
		"events", events,
		"windows", agg.WindowCount(),
		"late", agg.Late(),
		"profile", profile.Name)

	samples := agg.Flush()
	if len(samples) == 0 {
		return fmt.Errorf("no events to render")
	}
	if err := WriteWAV(outPath, cfg.SampleRate, samples); err != nil {
		return err
	}

	dur := float64(len(samples)) / float64(cfg.SampleRate)
	fmt.Printf("Wrote %s: %.1fs of audio from %d events\n", outPath, dur, events)
	return nil
}

// runLive streams the source through the real-time scheduler into the
// audio device. The producer goroutine owns the only blocking call
// (source.Next); the audio callback pulls blocks and never waits on it.
func runLive(cfg Config, profile *Profile, extractor *FeatureExtractor, normalizer *Normalizer, source EventSource, headless bool, log *slog.Logger) error {
	engine := NewSynthEngine(cfg.SampleRate, cfg.Polyphony, profile)
	sched := NewScheduler(engine, cfg.QueueSize)

	backend := AUDIO_SINK_OTO
	if headless {
		backend = AUDIO_SINK_HEADLESS
	}
	sink, err := NewAudioSink(backend, cfg.SampleRate, sched)
	if err != nil {
		return fmt.Errorf("audio sink: %w", err)
	}
	defer sink.Close()

	if err := sink.Start(); err != nil {
		return fmt.Errorf("audio sink: %w", err)
	}
	defer sink.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Profile switches land here; the producer swaps them into its mapper
	// at event boundaries while the scheduler applies them at the next
	// block boundary.
	var mapperProfile atomic.Pointer[Profile]

	g, ctx := errgroup.WithContext(ctx)

	// A quit request must also unblock the producer, which may be parked
	// inside a capture read. Closing the source is the only way out.
	go func() {
		<-ctx.Done()
		source.Close()
	}()

	g.Go(func() error {
		mapper := NewParamMapper(profile, float32(cfg.SmoothingMS))
		for {
			if p := mapperProfile.Swap(nil); p != nil {
				mapper.SetProfile(p)
			}
			ev, err := source.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					// Finite source exhausted: let the queue and voices
					// drain, then end the session.
					for !sched.Drained() && ctx.Err() == nil {
						time.Sleep(20 * time.Millisecond)
					}
					cancel()
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("event source: %w", err)
			}
			if ctx.Err() != nil {
				return nil
			}
			fv := normalizer.Normalize(extractor.Extract(ev))
			pe := mapper.Map(fv)
			pe.When = time.Now()
			sched.Push(pe)
		}
	})

	g.Go(func() error {
		return watchKeys(ctx, cancel, sched, &mapperProfile, extractor.FeatureNames(), log)
	})

	fmt.Printf("Listening with the %q profile. Keys 1-5 switch profiles, q quits.\n", profile.Name)

	err = g.Wait()

	// Fade out rather than cutting mid-sample. The sink keeps pulling
	// while the forced release tails off.
	sched.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for !sched.Drained() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	log.Info("session finished",
		"dropped", sched.Dropped(),
		"stolen", engine.StolenVoices())
	return err
}

// watchKeys runs the interactive monitor: raw-mode stdin, number keys for
// profile switching, q to quit. Without a terminal (piped stdin, service
// mode) it just waits for the context.
func watchKeys(ctx context.Context, cancel context.CancelFunc, sched *Scheduler, mapperProfile *atomic.Pointer[Profile], features []string, log *slog.Logger) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		<-ctx.Done()
		return nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		<-ctx.Done()
		return nil
	}
	defer term.Restore(fd, oldState)

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				close(keys)
				return
			}
			keys <- buf[0]
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			switch {
			case key == 'q' || key == 3: // q or Ctrl-C in raw mode
				cancel()
				return nil
			case key >= '1' && key <= '5':
				name := profileOrder[key-'1']
				p, err := LoadProfile(name, features)
				if err != nil {
					log.Error("profile switch failed", "profile", name, "error", err)
					continue
				}
				mapperProfile.Store(p)
				sched.SwitchProfile(p)
				fmt.Printf("\r\nSwitched to the %q profile.\r\n", name)
			}
		}
	}
}
