// Package dashboard renders the live tracking feed as a terminal UI:
// an entity table, active alerts, movement trails, and an ASCII map.
package dashboard

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"fieldtrack/internal/alert"
	"fieldtrack/internal/feed"
	"fieldtrack/internal/track"
	"fieldtrack/internal/trail"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// snapshotMsg carries one feed snapshot with its analytics.
type snapshotMsg struct {
	entities []feed.Entity
	summary  feed.Summary
}

// alertsMsg replaces the active alert set.
type alertsMsg struct{ alerts []alert.Alert }

// trailMsg carries one entity's full trail after a redraw.
type trailMsg struct {
	entityID string
	points   []trail.Point
}

// feedErrMsg carries a poll failure for the event log.
type feedErrMsg struct{ err error }

const (
	maxEventLines = 500
	trailHeadMark = "●"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

var entityPalette = []string{"\x1b[32m", "\x1b[33m", "\x1b[34m", "\x1b[35m", "\x1b[36m", "\x1b[31m"}

// Dashboard drives a bubbletea program from feed snapshots, alert sets
// and trail redraws. It implements trail.Renderer.
type Dashboard struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// New starts the bubbletea program and returns the Dashboard.
func New() *Dashboard {
	d := &Dashboard{done: make(chan struct{})}
	d.sendSignal.Store(true)
	p := tea.NewProgram(newModel(), tea.WithAltScreen())
	d.program = p
	go func() {
		_ = p.Start()
		close(d.done)
		if d.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return d
}

// PushSnapshot feeds an entity snapshot into the UI.
func (d *Dashboard) PushSnapshot(entities []feed.Entity, summary feed.Summary) {
	d.program.Send(snapshotMsg{entities: entities, summary: summary})
}

// PushAlerts replaces the alert pane content.
func (d *Dashboard) PushAlerts(alerts []alert.Alert) {
	d.program.Send(alertsMsg{alerts: alerts})
}

// PushError surfaces a feed poll failure in the event log.
func (d *Dashboard) PushError(err error) {
	d.program.Send(feedErrMsg{err: err})
}

// Draw implements trail.Renderer.
func (d *Dashboard) Draw(entityID string, points []trail.Point) {
	d.program.Send(trailMsg{entityID: entityID, points: points})
}

// Close shuts the TUI down and waits for terminal restore.
func (d *Dashboard) Close() error {
	d.sendSignal.Store(false)
	if d.program != nil {
		d.program.Send(tea.Quit())
	}
	if d.done != nil {
		<-d.done
	}
	return nil
}

type model struct {
	table        table.Model
	alertVP      viewport.Model
	eventVP      viewport.Model
	entities     []feed.Entity
	summary      feed.Summary
	alerts       []alert.Alert
	trails       map[string][]trail.Point
	entityColors map[string]string
	colorIdx     int
	events       []string
	header       string
	headerHeight int
	height       int
	width        int
	wrap         bool
	autoscroll   bool
	showMap      bool
	help         bool
	mapCenterLat float64
	mapCenterLng float64
	mapLatSpan   float64
	mapLngSpan   float64
	mapReady     bool
}

func newModel() model {
	cols := []table.Column{
		{Title: "Entity", Width: 18},
		{Title: "Status", Width: 8},
		{Title: "Accuracy", Width: 10},
		{Title: "Tier", Width: 10},
		{Title: "Position", Width: 22},
		{Title: "Updated", Width: 10},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(8))
	return model{
		table:        t,
		alertVP:      viewport.New(0, 0),
		eventVP:      viewport.New(0, 0),
		trails:       make(map[string][]trail.Point),
		entityColors: make(map[string]string),
		autoscroll:   true,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.alertVP.Width = msg.Width
		m.eventVP.Width = msg.Width
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.resize()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		if m.showMap {
			switch msg.String() {
			case "+", "=":
				m.mapLatSpan *= 0.8
				m.mapLngSpan *= 0.8
				if m.mapLatSpan < 0.0001 {
					m.mapLatSpan = 0.0001
				}
				if m.mapLngSpan < 0.0001 {
					m.mapLngSpan = 0.0001
				}
				return m, nil
			case "-":
				m.mapLatSpan *= 1.25
				m.mapLngSpan *= 1.25
				return m, nil
			case "left":
				m.mapCenterLng -= m.mapLngSpan * 0.1
				return m, nil
			case "right":
				m.mapCenterLng += m.mapLngSpan * 0.1
				return m, nil
			case "up":
				m.mapCenterLat += m.mapLatSpan * 0.1
				return m, nil
			case "down":
				m.mapCenterLat -= m.mapLatSpan * 0.1
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshAlerts()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.eventVP.GotoBottom()
			}
			return m, nil
		case "m":
			m.showMap = !m.showMap
			if m.showMap && !m.mapReady {
				m.initMap()
			}
			return m, nil
		case "h", "?":
			m.help = !m.help
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.eventVP.LineDown(1)
			case "k", "up":
				m.eventVP.LineUp(1)
			case "pgdown":
				m.eventVP.LineDown(10)
			case "pgup":
				m.eventVP.LineUp(10)
			}
			return m, nil
		}
		return m, nil
	case snapshotMsg:
		m.entities = msg.entities
		m.summary = msg.summary
		m.refreshTable()
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.resize()
	case alertsMsg:
		m.alerts = msg.alerts
		m.refreshAlerts()
		m.resize()
	case trailMsg:
		if len(msg.points) == 0 {
			return m, nil
		}
		m.trails[msg.entityID] = msg.points
		m.entityColor(msg.entityID)
		head := msg.points[len(msg.points)-1]
		m.pushEvent(fmt.Sprintf("%s[%s]%s %sTRAIL%s %s points=%d head=(%.5f,%.5f)",
			colorGray, head.At.Format(time.RFC3339), colorReset,
			colorCyan, colorReset, msg.entityID, len(msg.points), head.Lat, head.Lng))
	case feedErrMsg:
		m.pushEvent(fmt.Sprintf("%s[%s]%s %sFEED ERROR%s %v",
			colorGray, time.Now().Format(time.RFC3339), colorReset,
			colorRed, colorReset, msg.err))
	}
	return m, nil
}

func (m *model) pushEvent(line string) {
	m.events = append(m.events, line)
	if len(m.events) > maxEventLines {
		m.events = m.events[len(m.events)-maxEventLines:]
	}
	m.eventVP.SetContent(strings.Join(m.events, "\n"))
	if m.autoscroll {
		m.eventVP.GotoBottom()
	}
}

func (m *model) entityColor(id string) string {
	if c, ok := m.entityColors[id]; ok {
		return c
	}
	c := entityPalette[m.colorIdx%len(entityPalette)]
	m.entityColors[id] = c
	m.colorIdx++
	return c
}

func (m *model) refreshTable() {
	rows := make([]table.Row, 0, len(m.entities))
	for _, e := range m.entities {
		pos := "—"
		if e.Lat != nil && e.Lng != nil {
			pos = fmt.Sprintf("%.5f, %.5f", *e.Lat, *e.Lng)
		}
		acc := "—"
		tier := "—"
		if e.AccuracyM > 0 {
			acc = fmt.Sprintf("±%.0fm", e.AccuracyM)
			tier = track.Classify(e.AccuracyM).Label()
		}
		rows = append(rows, table.Row{
			displayName(e),
			string(e.Status),
			acc,
			tier,
			pos,
			formatAge(time.Since(e.LastUpdate)),
		})
	}
	m.table.SetRows(rows)
	h := len(rows) + 1
	if h > 12 {
		h = 12
	}
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}

func (m *model) refreshAlerts() {
	if len(m.alerts) == 0 {
		m.alertVP.SetContent("none")
		return
	}
	lines := make([]string, 0, len(m.alerts))
	for _, a := range m.alerts {
		color := colorYellow
		if a.Kind == alert.KindOffline {
			color = colorRed
		}
		line := fmt.Sprintf("%s[%s]%s %s%s%s %s: %s",
			colorGray, a.RaisedAt.Format("15:04:05"), colorReset,
			color, strings.ToUpper(string(a.Kind)), colorReset,
			a.Title, a.Message)
		if m.wrap && m.alertVP.Width > 0 {
			line = wordwrap.String(line, m.alertVP.Width)
		}
		lines = append(lines, line)
	}
	m.alertVP.SetContent(strings.Join(lines, "\n"))
}

func (m *model) resize() {
	alertLines := len(m.alerts)
	if alertLines == 0 {
		alertLines = 1
	}
	maxAlerts := m.height / 5
	if maxAlerts < 1 {
		maxAlerts = 1
	}
	if alertLines > maxAlerts {
		alertLines = maxAlerts
	}
	m.alertVP.Height = alertLines

	tableHeight := lipgloss.Height(m.table.View())
	h := m.height - m.headerHeight - tableHeight - m.alertVP.Height - 6
	if h < 0 {
		h = 0
	}
	m.eventVP.Height = h
	if m.autoscroll {
		m.eventVP.GotoBottom()
	}
}

func (m model) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", max(m.width, 1))
	if m.showMap {
		sections := []string{
			m.header,
			divider,
			m.renderMap(),
			divider,
			m.renderBottom(),
		}
		return strings.Join(sections, "\n")
	}
	sections := []string{
		m.header,
		divider,
		m.table.View(),
		divider,
		m.renderAlertTitle(),
		m.alertVP.View(),
		divider,
		m.eventVP.View(),
		divider,
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func (m model) renderHeader() string {
	online := m.summary.ByStatus[feed.StatusOnline]
	offline := m.summary.ByStatus[feed.StatusOffline]
	stale := m.summary.ByStatus[feed.StatusStale] + m.summary.ByStatus[feed.StatusRecent]
	parts := []string{
		lipgloss.NewStyle().Bold(true).Render("fieldtrack"),
		fmt.Sprintf("entities=%d", m.summary.Total),
		fmt.Sprintf("%sonline=%d%s", colorGreen, online, colorReset),
		fmt.Sprintf("%sstale=%d%s", colorYellow, stale, colorReset),
		fmt.Sprintf("%soffline=%d%s", colorRed, offline, colorReset),
	}
	if m.summary.MeanAccuracyM > 0 {
		parts = append(parts, fmt.Sprintf("avg_acc=±%.0fm", m.summary.MeanAccuracyM))
	}
	if !m.summary.RefreshedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("%srefreshed=%s%s", colorGray, m.summary.RefreshedAt.Format("15:04:05"), colorReset))
	}
	return strings.Join(parts, "  ")
}

func (m model) renderAlertTitle() string {
	if len(m.alerts) == 0 {
		return "Alerts:"
	}
	badge := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Render(fmt.Sprintf("(%d)", len(m.alerts)))
	return "Alerts " + badge + ":"
}

func (m model) renderBottom() string {
	scrollColor := lipgloss.Color("10")
	if !m.autoscroll {
		scrollColor = lipgloss.Color("9")
	}
	wrapColor := lipgloss.Color("9")
	if m.wrap {
		wrapColor = lipgloss.Color("10")
	}
	mapColor := lipgloss.Color("9")
	if m.showMap {
		mapColor = lipgloss.Color("10")
	}
	scrollInd := lipgloss.NewStyle().Foreground(scrollColor).Render("●")
	wrapInd := lipgloss.NewStyle().Foreground(wrapColor).Render("●")
	mapInd := lipgloss.NewStyle().Foreground(mapColor).Render("●")
	return fmt.Sprintf("alerts=%d trails=%d | Scroll %s | Wrap %s | Map %s | h help, q quit",
		len(m.alerts), len(m.trails), scrollInd, wrapInd, mapInd)
}

func (m model) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" s  toggle auto-scroll",
		" w  toggle alert wrapping",
		" m  toggle trail map",
		" +  zoom in map",
		" -  zoom out map",
		" ←→↑↓ pan map",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

// initMap frames the viewport around every trail point currently known.
func (m *model) initMap() {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, pts := range m.trails {
		for _, p := range pts {
			if p.Lat < minLat {
				minLat = p.Lat
			}
			if p.Lat > maxLat {
				maxLat = p.Lat
			}
			if p.Lng < minLng {
				minLng = p.Lng
			}
			if p.Lng > maxLng {
				maxLng = p.Lng
			}
		}
	}
	if minLat == math.Inf(1) {
		minLat, maxLat = 0, 1
		minLng, maxLng = 0, 1
	}
	m.mapCenterLat = (maxLat + minLat) / 2
	m.mapCenterLng = (maxLng + minLng) / 2
	m.mapLatSpan = maxLat - minLat
	m.mapLngSpan = maxLng - minLng
	if m.mapLatSpan == 0 {
		m.mapLatSpan = 0.02
	}
	if m.mapLngSpan == 0 {
		m.mapLngSpan = 0.02
	}
	m.mapReady = true
}

func (m model) renderMap() string {
	width := m.width
	if width < 10 {
		width = 10
	}
	mapHeight := m.height - m.headerHeight - lipgloss.Height(m.renderBottom()) - 4
	if mapHeight < 1 {
		mapHeight = 1
	}
	if len(m.trails) == 0 {
		return "No trail data"
	}
	minLat := m.mapCenterLat - m.mapLatSpan/2
	maxLat := m.mapCenterLat + m.mapLatSpan/2
	minLng := m.mapCenterLng - m.mapLngSpan/2
	maxLng := m.mapCenterLng + m.mapLngSpan/2
	grid := make([][]string, mapHeight)
	for i := range grid {
		row := make([]string, width)
		for j := range row {
			row[j] = "."
		}
		grid[i] = row
	}

	ids := make([]string, 0, len(m.trails))
	for id := range m.trails {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pts := m.trails[id]
		c := m.entityColors[id]
		if c == "" {
			c = colorGreen
		}
		for i, p := range pts {
			x := int((p.Lng - minLng) / (maxLng - minLng) * float64(width-1))
			y := int((maxLat - p.Lat) / (maxLat - minLat) * float64(mapHeight-1))
			if y < 0 || y >= mapHeight || x < 0 || x >= width {
				continue
			}
			sym := "·"
			if i == len(pts)-1 {
				sym = trailHeadMark
			}
			grid[y][x] = fmt.Sprintf("%s%s%s", c, sym, colorReset)
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("lat %.5f..%.5f lng %.5f..%.5f N↑\n", maxLat, minLat, minLng, maxLng))
	for _, row := range grid {
		b.WriteString(strings.Join(row, ""))
		b.WriteByte('\n')
	}
	midLat := (maxLat + minLat) / 2
	kmPerLng := 111.0 * math.Cos(midLat*math.Pi/180)
	kmPerChar := (maxLng - minLng) * kmPerLng / float64(width)
	barChars := int(math.Min(10, float64(width)/3))
	scaleKM := kmPerChar * float64(barChars)
	b.WriteString(fmt.Sprintf("Scale: |%s| %.1fkm\n", strings.Repeat("-", barChars), scaleKM))
	var legend []string
	for _, id := range ids {
		legend = append(legend, fmt.Sprintf("%s%s%s=%s", m.entityColors[id], trailHeadMark, colorReset, id))
	}
	legend = append(legend, "·=trail")
	b.WriteString(strings.Join(legend, " "))
	return strings.TrimRight(b.String(), "\n")
}

func displayName(e feed.Entity) string {
	if e.Username != "" {
		return e.Username
	}
	return e.ID
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
