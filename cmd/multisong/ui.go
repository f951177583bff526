package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/preset"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.help).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// renderState draws the master section and one row per song.
func renderState(st multisong.MultiSongState) string {
	transport := styles.warn.Render("stopped")
	if st.MasterPlaying {
		transport = styles.ok.Render("playing")
	}
	header := fmt.Sprintf("%s  %s  tempo %.2fx  volume %s  sync %s  solo %s",
		styles.title.Render("master"), transport,
		st.MasterTempoMultiplier, percent(st.MasterVolume), st.SyncMode, st.SoloPolicy)
	if len(st.Songs) == 0 {
		return header + "\n" + styles.help.Render("no songs loaded, use `add`")
	}
	anySoloed := st.AnySoloed()
	t := newTable("#", "name", "id", "state", "tempo", "volume", "position", "loop", "flags")
	for i, s := range st.Songs {
		state := "paused"
		if s.IsPlaying {
			state = styles.ok.Render("playing")
		}
		flags := ""
		if s.IsMuted {
			flags += styles.err.Render("M")
		}
		if s.IsSoloed {
			flags += styles.warn.Render("S")
		}
		if !s.Audible(anySoloed) && flags == "" {
			flags = styles.help.Render("-")
		}
		t.Row(
			strconv.Itoa(i+1),
			s.Name,
			shortID(s.ID),
			state,
			fmt.Sprintf("%.2fx", s.TempoMultiplier),
			percent(s.Volume),
			fmt.Sprintf("%s %s", percent(s.Position), clockTime(s.Position*s.DurationSeconds)),
			fmt.Sprintf("%s-%s", percent(s.LoopStart), percent(s.LoopEnd)),
			flags,
		)
	}
	return header + "\n" + t.Render()
}

func renderStatistics(s multisong.EngineStatistics) string {
	t := newTable("cpu", "memory", "latency", "ui fps")
	t.Row(
		fmt.Sprintf("%.1f%%", s.CPUUsage*100),
		fmt.Sprintf("%.1f MiB", float64(s.MemoryUsage)/(1<<20)),
		fmt.Sprintf("%.1f ms", s.AudioLatency),
		fmt.Sprintf("%.1f", s.UIFrameRate),
	)
	return t.Render()
}

func renderPresets(infos []preset.Info) string {
	if len(infos) == 0 {
		return styles.help.Render("no presets saved")
	}
	t := newTable("id", "name", "songs", "saved")
	for _, info := range infos {
		t.Row(shortID(info.ID), info.Name, strconv.Itoa(info.Songs), info.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	return t.Render()
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func clockTime(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
