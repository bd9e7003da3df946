package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/driver"
)

var (
	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tuiFileStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D7FF"))
	tuiStageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	tuiDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	tuiFailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4B4B"))
	tuiPendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#383838"))
)

type buildKeyMap struct {
	Quit key.Binding
}

var buildKeys = buildKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// fileRow is one source file's position in the build.
type fileRow struct {
	path   string
	stage  string
	done   bool
	failed bool
	diags  []diag.Diagnostic
	output string
	source string
}

type stageMsg struct {
	index int
	stage string
}

type fileDoneMsg struct {
	index  int
	failed bool
	diags  []diag.Diagnostic
	output string
	source string
}

type buildFinishedMsg struct{}

// buildModel drives a one-row-per-file, one-stage-at-a-time progress view
// over a sequential multi-file build.
type buildModel struct {
	rows     []fileRow
	finished bool
	aborted  bool
	width    int
}

func newBuildModel(files []string) buildModel {
	rows := make([]fileRow, len(files))
	for i, f := range files {
		rows[i] = fileRow{path: f, stage: "queued"}
	}
	return buildModel{rows: rows}
}

func (m buildModel) Init() tea.Cmd { return nil }

func (m buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, buildKeys.Quit) {
			m.aborted = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case stageMsg:
		m.rows[msg.index].stage = msg.stage
	case fileDoneMsg:
		r := &m.rows[msg.index]
		r.done = true
		r.failed = msg.failed
		r.diags = msg.diags
		r.output = msg.output
		r.source = msg.source
	case buildFinishedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m buildModel) View() string {
	s := tuiHeaderStyle.Render("sigmac build") + "\n\n"
	for _, r := range m.rows {
		var status string
		switch {
		case r.failed:
			status = tuiFailedStyle.Render(fmt.Sprintf("failed  %d diagnostic(s)", len(r.diags)))
		case r.done:
			status = tuiDoneStyle.Render("done")
		case r.stage == "queued":
			status = tuiPendingStyle.Render("queued")
		default:
			status = tuiStageStyle.Render(r.stage)
		}
		s += fmt.Sprintf("  %s  %s\n", tuiFileStyle.Width(32).Render(r.path), status)
	}
	s += "\n" + tuiStageStyle.Render("q to quit") + "\n"
	return s
}

// runCompileTUI compiles every file in order under a live progress view,
// then replays all collected diagnostics to stderr once the terminal is
// back in normal mode.
func runCompileTUI(files []string) error {
	initLogging()

	emitKind, err := parseEmit(emitFlag)
	if err != nil {
		return err
	}
	format, err := parseFormat(targetFlag)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newBuildModel(files))

	go func() {
		for i, source := range files {
			idx := i
			cfg := driver.Config{
				Source:            source,
				Emit:              emitKind,
				Format:            format,
				OptimizeLevel:     optimizeFlag,
				SizeOptimizeLevel: sizeOptimizeFlag,
				Verbose:           false,
				KeepAssembly:      false,
				Progress: func(stage string) {
					p.Send(stageMsg{index: idx, stage: stage})
				},
			}
			data, readErr := os.ReadFile(source)
			var text string
			if readErr == nil {
				text = string(data)
			}
			result, runErr := driver.Run(cfg)
			if runErr != nil {
				p.Send(fileDoneMsg{index: idx, failed: true})
				continue
			}
			failed := false
			for _, d := range result.Diagnostics {
				if d.Severity == diag.Error {
					failed = true
				}
			}
			p.Send(fileDoneMsg{
				index:  idx,
				failed: failed,
				diags:  result.Diagnostics,
				output: result.OutputPath,
				source: text,
			})
		}
		p.Send(buildFinishedMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}

	m := final.(buildModel)
	hadErrors := false
	for _, r := range m.rows {
		if len(r.diags) > 0 {
			res := &driver.Result{Diagnostics: r.diags}
			driver.RenderDiagnostics(res, driver.Config{Source: r.path}, r.source)
		}
		if r.failed {
			hadErrors = true
		} else if r.output != "" {
			printInfo("wrote %s\n", r.output)
		}
	}
	if m.aborted {
		printError("build aborted\n")
		os.Exit(1)
	}
	if hadErrors {
		os.Exit(1)
	}
	return nil
}
