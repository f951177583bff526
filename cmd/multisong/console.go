package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/cmd"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/preset"
	"github.com/whiteroom/multisong/transport"
	"github.com/whiteroom/multisong/wavinfo"
)

type (
	console struct {
		ctrl    *transport.Controller
		presets preset.Repository
		out     io.Writer
		logger  *log.Logger
		verbs   []verb
	}

	verb struct {
		name  string
		args  string
		usage string
		min   int
		run   func(ctx context.Context, args []string) error
	}
)

var errQuit = errors.New("quit")

func consoleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "console",
		Usage:     "Start the engine with an interactive console (the default command)",
		ArgsUsage: "[song.wav ...]",
		Flags:     consoleFlags(),
		Action:    r.Console,
	}
}

func consoleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the clock without opening the audio device",
		},
		&cli.StringFlag{
			Name:  "midi-input",
			Usage: "Connect the MIDI input whose name contains this string",
		},
		&cli.StringFlag{
			Name:  "preset",
			Usage: "Restore a preset (id or name) on start",
		},
	}
}

// Console runs the engine until the user quits.
func (r *Runner) Console(ctx context.Context, c *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	config := *r.config
	if c.Bool("headless") {
		config.Audio.Enabled = false
	}
	if in := c.String("midi-input"); in != "" {
		config.MIDI.Input = in
	}

	engine, err := cmd.StartEngine(ctx, &config, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			r.logger.Error("failed to stop engine", "error", err)
		}
	}()

	repo, closer, err := cmd.OpenPresets(&config)
	if err != nil {
		return fmt.Errorf("failed to open preset store: %w", err)
	}
	defer closer.Close()

	con := newConsole(engine.Controller, repo, r.output, shared.WithLogger(r.logger, "component", "console"))
	go con.observe(ctx)

	if fr, ok := repo.(*preset.FileRepository); ok {
		if w, err := preset.NewWatcher(fr.Dir()); err != nil {
			r.logger.Warn("cannot watch preset directory", "dir", fr.Dir(), "error", err)
		} else {
			defer w.Close()
			go con.watchPresets(w)
		}
	}

	for _, path := range c.Args().Slice() {
		if err := con.addFile(path); err != nil {
			r.logger.Error("cannot load song", "path", path, "error", err)
		}
	}
	if key := c.String("preset"); key != "" {
		if err := con.load(ctx, []string{key}); err != nil {
			return err
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "multisong> ",
		AutoComplete:    con.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           r.input,
		Stdout:          r.output,
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	if engine.Headless() {
		con.println(styles.warn.Render("no audio output, the clock runs headless"))
	}
	con.println(styles.help.Render("type `help` for a list of commands"))
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		err = con.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			con.println(styles.err.Render(err.Error()))
		}
	}
}

func newConsole(ctrl *transport.Controller, presets preset.Repository, out io.Writer, logger *log.Logger) *console {
	c := &console{ctrl: ctrl, presets: presets, out: out, logger: logger}
	c.verbs = []verb{
		{"add", "<file.wav> | <name> <seconds> [tempo]", "load a song into the next free slot", 1, c.add},
		{"remove", "<song>", "unload a song", 1, c.song(func(id string, _ []string) bool { return c.ctrl.RemoveSong(id) })},
		{"clear", "", "unload every song", 0, func(context.Context, []string) error { c.ctrl.ClearSongs(); return nil }},
		{"play", "[song]", "start all songs, or one song", 0, c.play},
		{"pause", "[song]", "pause all songs, or one song", 0, c.pause},
		{"toggle", "[song]", "toggle all songs, or one song", 0, c.toggle},
		{"stop", "", "stop all songs and rewind", 0, func(context.Context, []string) error { c.ctrl.StopAll(); return nil }},
		{"panic", "", "emergency stop: silence everything at once", 0, func(context.Context, []string) error { c.ctrl.EmergencyStop(); return nil }},
		{"mode", "<independent|locked|ratio>", "set the sync mode", 1, c.mode},
		{"solo-policy", "<additive|exclusive>", "set how solos combine", 1, c.soloPolicy},
		{"master", "<tempo>", "set the master tempo, 0.5-2", 1, c.master},
		{"mvol", "<volume>", "set the master volume, 0-1", 1, c.masterVolume},
		{"tempo", "<song> <tempo>", "set the tempo of a song", 2, c.songValue(c.ctrl.SetTempo)},
		{"volume", "<song> <volume>", "set the volume of a song", 2, c.songValue(c.ctrl.SetVolume)},
		{"mute", "<song>", "toggle mute", 1, c.song(func(id string, _ []string) bool { return c.ctrl.ToggleMute(id) })},
		{"solo", "<song>", "toggle solo", 1, c.song(func(id string, _ []string) bool { return c.ctrl.ToggleSolo(id) })},
		{"seek", "<song> <position>", "jump to a normalized position, 0-1", 2, c.songValue(c.ctrl.Seek)},
		{"loop", "<song> <start> <end>", "set the loop bounds, 0-1", 3, c.loop},
		{"status", "", "show the engine state", 0, c.status},
		{"stats", "", "show the engine statistics", 0, c.stats},
		{"save", "<name>", "save the current state as a preset", 1, c.save},
		{"load", "<preset>", "restore a preset by id or name", 1, c.load},
		{"presets", "", "list the saved presets", 0, c.list},
		{"delete", "<preset>", "delete a preset", 1, c.delete},
		{"help", "", "show this help", 0, c.help},
		{"quit", "", "stop the engine and exit", 0, func(context.Context, []string) error { return errQuit }},
	}
	return c
}

// exec runs one console line. Empty lines and lines starting with # are
// ignored.
func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "exit" {
		name = "quit"
	}
	for _, v := range c.verbs {
		if v.name != name {
			continue
		}
		if len(args) < v.min {
			return fmt.Errorf("%w: usage: %s %s", shared.ErrMissingArgument, v.name, v.args)
		}
		return v.run(ctx, args)
	}
	return fmt.Errorf("%w: unknown command %q", shared.ErrInvalidArgument, name)
}

func (c *console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *console) completer(ctx context.Context) *readline.PrefixCompleter {
	songs := readline.PcItemDynamic(func(string) []string {
		st := c.ctrl.State()
		names := make([]string, len(st.Songs))
		for i, s := range st.Songs {
			names[i] = strconv.Itoa(i + 1)
			if s.Name != "" && !strings.ContainsAny(s.Name, " \t") {
				names[i] = s.Name
			}
		}
		return names
	})
	presets := readline.PcItemDynamic(func(string) []string {
		infos, err := c.presets.List(ctx)
		if err != nil {
			return nil
		}
		names := make([]string, len(infos))
		for i, info := range infos {
			names[i] = shortID(info.ID)
		}
		return names
	})
	items := make([]readline.PrefixCompleterInterface, 0, len(c.verbs))
	for _, v := range c.verbs {
		switch {
		case v.name == "mode":
			items = append(items, readline.PcItem(v.name, readline.PcItem("independent"), readline.PcItem("locked"), readline.PcItem("ratio")))
		case v.name == "solo-policy":
			items = append(items, readline.PcItem(v.name, readline.PcItem("additive"), readline.PcItem("exclusive")))
		case v.name == "load" || v.name == "delete":
			items = append(items, readline.PcItem(v.name, presets))
		case strings.HasPrefix(v.args, "<song>") || strings.HasPrefix(v.args, "[song]"):
			items = append(items, readline.PcItem(v.name, songs))
		default:
			items = append(items, readline.PcItem(v.name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

// observe logs the change notifications of the controller until ctx is done.
func (c *console) observe(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-c.ctrl.Changes():
			c.logger.Debug("state changed", "kind", ch.Kind, "song", ch.SongID, "generation", ch.Generation)
		}
	}
}

func (c *console) watchPresets(w *preset.Watcher) {
	for {
		select {
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			c.logger.Info("preset file changed", "path", path)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("preset watcher error", "error", err)
		}
	}
}

// resolve finds a song by slot number (1-based), id, unique id prefix or
// name, ignoring case.
func (c *console) resolve(ref string) (string, error) {
	st := c.ctrl.State()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(st.Songs) {
			return "", fmt.Errorf("%w: no song in slot %d", shared.ErrInvalidArgument, n)
		}
		return st.Songs[n-1].ID, nil
	}
	var matches []string
	for _, s := range st.Songs {
		switch {
		case s.ID == ref:
			return s.ID, nil
		case strings.EqualFold(s.Name, ref), strings.HasPrefix(s.ID, ref):
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no song %q", shared.ErrInvalidArgument, ref)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %q matches %d songs", shared.ErrInvalidArgument, ref, len(matches))
}

func (c *console) song(f func(id string, args []string) bool) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		id, err := c.resolve(args[0])
		if err != nil {
			return err
		}
		if !f(id, args[1:]) {
			return fmt.Errorf("%w: song %q is gone", shared.ErrInvalidArgument, args[0])
		}
		return nil
	}
}

func (c *console) songValue(set func(id string, v float64) bool) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		v, err := parseValue(args[1])
		if err != nil {
			return err
		}
		return c.song(func(id string, _ []string) bool { return set(id, v) })(ctx, args)
	}
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "x"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", shared.ErrInvalidArgument, s)
	}
	return v, nil
}

func (c *console) add(_ context.Context, args []string) error {
	if len(args) == 1 || strings.HasSuffix(strings.ToLower(args[0]), ".wav") {
		return c.addFile(strings.Join(args, " "))
	}
	info := multisong.SongInfo{Name: args[0]}
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: add <name> <seconds> [tempo]", shared.ErrMissingArgument)
	}
	var err error
	if info.DurationSeconds, err = parseValue(args[1]); err != nil {
		return err
	}
	if len(args) > 2 {
		if info.Tempo, err = parseValue(args[2]); err != nil {
			return err
		}
	}
	return c.addSong(info)
}

func (c *console) addFile(path string) error {
	info, err := wavinfo.SongInfo(path)
	if err != nil {
		return err
	}
	return c.addSong(info)
}

func (c *console) addSong(info multisong.SongInfo) error {
	id, err := c.ctrl.AddSong(info)
	if err != nil {
		return err
	}
	c.println(styles.ok.Render("added"), info.Name, styles.help.Render(shortID(id)))
	return nil
}

func (c *console) play(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.ctrl.PlayAll()
		return nil
	}
	return c.song(func(id string, _ []string) bool { return c.ctrl.SetPlaying(id, true) })(ctx, args)
}

func (c *console) pause(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.ctrl.PauseAll()
		return nil
	}
	return c.song(func(id string, _ []string) bool { return c.ctrl.SetPlaying(id, false) })(ctx, args)
}

func (c *console) toggle(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.ctrl.TogglePlayAll()
		return nil
	}
	return c.song(func(id string, _ []string) bool { return c.ctrl.TogglePlaying(id) })(ctx, args)
}

func (c *console) mode(_ context.Context, args []string) error {
	mode, err := multisong.ParseSyncMode(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	c.ctrl.SetSyncMode(mode)
	return nil
}

func (c *console) soloPolicy(_ context.Context, args []string) error {
	switch strings.ToLower(args[0]) {
	case "additive":
		c.ctrl.SetSoloPolicy(multisong.SoloAdditive)
	case "exclusive":
		c.ctrl.SetSoloPolicy(multisong.SoloExclusive)
	default:
		return fmt.Errorf("%w: unknown solo policy %q", shared.ErrInvalidArgument, args[0])
	}
	return nil
}

func (c *console) master(_ context.Context, args []string) error {
	v, err := parseValue(args[0])
	if err != nil {
		return err
	}
	c.ctrl.SetMasterTempo(v)
	return nil
}

func (c *console) masterVolume(_ context.Context, args []string) error {
	v, err := parseValue(args[0])
	if err != nil {
		return err
	}
	c.ctrl.SetMasterVolume(v)
	return nil
}

func (c *console) loop(ctx context.Context, args []string) error {
	start, err := parseValue(args[1])
	if err != nil {
		return err
	}
	end, err := parseValue(args[2])
	if err != nil {
		return err
	}
	return c.song(func(id string, _ []string) bool { return c.ctrl.SetLoopBounds(id, start, end) })(ctx, args)
}

func (c *console) status(context.Context, []string) error {
	c.ctrl.MarkFrame()
	c.println(renderState(c.ctrl.State()))
	return nil
}

func (c *console) stats(context.Context, []string) error {
	c.println(renderStatistics(c.ctrl.Statistics()))
	return nil
}

func (c *console) save(ctx context.Context, args []string) error {
	p := c.ctrl.CapturePreset(strings.Join(args, " "))
	if err := c.presets.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}
	c.println(styles.ok.Render("saved"), p.Name(), styles.help.Render(shortID(p.ID())))
	return nil
}

func (c *console) load(ctx context.Context, args []string) error {
	p, err := preset.Find(ctx, c.presets, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := c.ctrl.RestorePreset(p); err != nil {
		return err
	}
	c.println(styles.ok.Render("restored"), p.Name())
	return nil
}

func (c *console) list(ctx context.Context, _ []string) error {
	infos, err := c.presets.List(ctx)
	if err != nil {
		return err
	}
	c.println(renderPresets(infos))
	return nil
}

func (c *console) delete(ctx context.Context, args []string) error {
	p, err := preset.Find(ctx, c.presets, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := c.presets.Delete(ctx, p.ID()); err != nil {
		return err
	}
	c.println(styles.ok.Render("deleted"), p.Name())
	return nil
}

func (c *console) help(context.Context, []string) error {
	t := newTable("command", "arguments", "")
	for _, v := range c.verbs {
		t.Row(v.name, v.args, v.usage)
	}
	c.println(t.Render())
	c.println(styles.help.Render("songs are referred to by slot number, name or id prefix"))
	return nil
}
