// Command tourney-watch renders a tournament's live status as a terminal
// dashboard, fed by the websocket stream tourney-serve exposes over one
// tournament's broadcast topic.
package main

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/kingdomforge/tourney/internal/cardgame"
)

var cli struct {
	Addr       string `help:"tourney-serve address" default:"localhost:8090" arg:"" optional:""`
	Tournament string `help:"tournament id to watch" required:""`
}

func main() {
	kong.Parse(&cli,
		kong.Name("tourney-watch"),
		kong.Description("Live terminal dashboard for a running tournament"),
		kong.UsageOnError(),
	)

	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "tourney-watch"})

	u := url.URL{Scheme: "ws", Host: cli.Addr, Path: "/ws", RawQuery: "tournament=" + cli.Tournament}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("connect to tourney-serve", "err", err, "url", u.String())
	}
	defer conn.Close()

	model := newModel(cli.Tournament)
	program := tea.NewProgram(model)

	go pumpStatuses(conn, program, logger)

	if _, err := program.Run(); err != nil {
		logger.Fatal("tui exited with error", "err", err)
	}
}

// pumpStatuses reads one JSON TournamentStatus per websocket frame and
// forwards each as a bubbletea message, until the connection closes.
func pumpStatuses(conn *websocket.Conn, program *tea.Program, logger *charmlog.Logger) {
	for {
		var status cardgame.TournamentStatus
		if err := conn.ReadJSON(&status); err != nil {
			program.Send(connectionClosedMsg{err: err})
			return
		}
		program.Send(statusMsg{status: status})
	}
}

type statusMsg struct{ status cardgame.TournamentStatus }

type connectionClosedMsg struct{ err error }

type model struct {
	tournamentID string
	status       cardgame.TournamentStatus
	connected    bool
	lastErr      error
	startedAt    time.Time

	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	errStyle    lipgloss.Style
	progress    progress.Model
}

func newModel(tournamentID string) model {
	return model{
		tournamentID: tournamentID,
		connected:    true,
		startedAt:    time.Now(),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		labelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#96CEB4")).Bold(true),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = msg.status
		return m, nil
	case connectionClosedMsg:
		m.connected = false
		m.lastErr = msg.err
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.headerStyle.Render(fmt.Sprintf(" %s ", m.tournamentID)))
	b.WriteString("\n\n")

	b.WriteString(m.labelStyle.Render("state: "))
	b.WriteString(string(m.status.State))
	b.WriteString("\n")

	b.WriteString(m.labelStyle.Render("round: "))
	fmt.Fprintf(&b, "%d / %d\n", m.status.CurrentRound, m.status.TotalRounds)

	b.WriteString(m.labelStyle.Render("games: "))
	fmt.Fprintf(&b, "%d / %d\n", m.status.CompletedGames, m.status.TotalGames)
	b.WriteString(m.progress.ViewAs(gameFraction(m.status.CompletedGames, m.status.TotalGames)))
	b.WriteString("\n\n")

	if len(m.status.Ratings) > 0 {
		b.WriteString(m.labelStyle.Render("ratings:"))
		b.WriteString("\n")
		for _, row := range sortedRatings(m.status.Ratings) {
			fmt.Fprintf(&b, "  %-16s %6.1f\n", row.id, row.rating)
		}
		b.WriteString("\n")
	}

	if m.status.Error != "" {
		b.WriteString(m.errStyle.Render("error: " + m.status.Error))
		b.WriteString("\n")
	}
	if !m.connected {
		reason := "connection closed"
		if m.lastErr != nil {
			reason = m.lastErr.Error()
		}
		b.WriteString(m.errStyle.Render("disconnected: " + reason))
		b.WriteString("\n")
	}

	b.WriteString("\nq to quit\n")
	return b.String()
}

// gameFraction turns a completed/total game count into the [0,1] fraction
// bubbles/progress expects, never dividing by zero before any game has
// been scheduled.
func gameFraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

type ratingRow struct {
	id     string
	rating float64
}

func sortedRatings(ratings map[string]float64) []ratingRow {
	rows := make([]ratingRow, 0, len(ratings))
	for id, r := range ratings {
		rows = append(rows, ratingRow{id: id, rating: r})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].rating > rows[j].rating })
	return rows
}
