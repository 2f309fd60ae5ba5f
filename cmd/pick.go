package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/countries"
	"github.com/airframesio/country-compare/cmd/pipeline"
	"github.com/airframesio/country-compare/cmd/present"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type pickPhase int

const (
	pickLoading pickPhase = iota
	pickCatalogPrompt
	pickCountryA
	pickCountryB
	pickMetric
	pickComparing
	pickResult
)

const maxPickMessages = 5

type pickModel struct {
	ctx     context.Context
	session *pipeline.Session
	raw     bool

	phase    pickPhase
	spinner  spinner.Model
	input    textinput.Model
	list     list.Model
	stage    string
	messages []string
	problem  *pipeline.Problem
	width    int
	height   int
	quitting bool

	metrics    []string
	countries  []string
	resolution countries.Resolution

	countryA string
	countryB string
	metric   string
	result   *comparison.Result
}

type catalogLoadedMsg struct {
	metrics []string
	err     error
}

type countriesResolvedMsg struct {
	resolution countries.Resolution
	err        error
}

type comparedMsg struct {
	result *comparison.Result
	err    error
}

// pickItem is one selectable line in a list
type pickItem string

func (i pickItem) FilterValue() string { return string(i) }
func (i pickItem) Title() string       { return string(i) }
func (i pickItem) Description() string { return "" }

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	problemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Margin(0, 2)

	selectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true).
			Margin(0, 2)
)

func newPickModel(ctx context.Context, session *pipeline.Session, raw bool) pickModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	input := textinput.New()
	input.Placeholder = "path/to/owid_data.xlsx or s3://bucket/key"
	input.CharLimit = 512
	input.Width = 60

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	l := list.New(nil, delegate, 60, 20)
	l.SetShowStatusBar(false)

	return pickModel{
		ctx:     ctx,
		session: session,
		raw:     raw,
		phase:   pickLoading,
		spinner: s,
		input:   input,
		list:    l,
		stage:   "Loading catalog...",
	}
}

func (m pickModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.EnterAltScreen,
		m.loadCatalog(),
	)
}

func (m pickModel) loadCatalog() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		metrics, err := session.Metrics(ctx)
		return catalogLoadedMsg{metrics: metrics, err: err}
	}
}

func (m pickModel) resolveCountries() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		res, err := session.Countries(ctx)
		return countriesResolvedMsg{resolution: res, err: err}
	}
}

func (m pickModel) compare() tea.Cmd {
	ctx, session := m.ctx, m.session
	metric, a, b := m.metric, m.countryA, m.countryB
	return func() tea.Msg {
		res, err := session.Compare(ctx, metric, a, b)
		return comparedMsg{result: res, err: err}
	}
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		return m.handleWindowSizeMsg(msg)
	case spinner.TickMsg:
		return m.handleSpinnerTickMsg(msg)
	case catalogLoadedMsg:
		return m.handleCatalogLoadedMsg(msg)
	case countriesResolvedMsg:
		return m.handleCountriesResolvedMsg(msg)
	case comparedMsg:
		return m.handleComparedMsg(msg)
	}
	return m.forward(msg)
}

// forward hands msg to the active input widget
func (m pickModel) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.phase { //nolint:exhaustive // other phases have no input widget
	case pickCatalogPrompt:
		m.input, cmd = m.input.Update(msg)
	case pickCountryA, pickCountryB, pickMetric:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m pickModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Keys belong to the filter while the user is typing one
	if m.isListPhase() && m.list.FilterState() == list.Filtering {
		return m.forward(msg)
	}

	switch m.phase { //nolint:exhaustive // loading phases only accept quit
	case pickCatalogPrompt:
		return m.handlePromptKey(msg)
	case pickCountryA, pickCountryB, pickMetric:
		return m.handleListKey(msg)
	case pickResult:
		return m.handleResultKey(msg)
	}

	if msg.String() == "q" {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickModel) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type { //nolint:exhaustive // remaining keys edit the input
	case tea.KeyEnter:
		location := strings.TrimSpace(m.input.Value())
		if location == "" {
			return m, nil
		}
		m.session.SetCatalogLocation(location)
		m.input.Blur()
		m.phase = pickLoading
		m.stage = fmt.Sprintf("Loading catalog %s...", location)
		m.problem = nil
		return m, tea.Batch(m.spinner.Tick, m.loadCatalog())
	case tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	}
	return m.forward(msg)
}

func (m pickModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		item, ok := m.list.SelectedItem().(pickItem)
		if !ok {
			return m, nil
		}
		return m.choose(string(item))
	case "esc":
		if m.list.FilterState() == list.FilterApplied {
			return m.forward(msg)
		}
		return m.back()
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m.forward(msg)
}

func (m pickModel) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.result = nil
		return m.enterPhase(pickCountryA), nil
	case "m":
		m.result = nil
		return m.enterPhase(pickMetric), nil
	case "q", "esc", "enter":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// choose records a list selection and advances to the next phase
func (m pickModel) choose(value string) (tea.Model, tea.Cmd) {
	m.problem = nil
	switch m.phase { //nolint:exhaustive // only list phases reach here
	case pickCountryA:
		m.countryA = value
		return m.enterPhase(pickCountryB), nil
	case pickCountryB:
		m.countryB = value
		return m.enterPhase(pickMetric), nil
	case pickMetric:
		m.metric = value
		m.phase = pickComparing
		m.stage = fmt.Sprintf("Comparing %s and %s on %s...", m.countryA, m.countryB, m.metric)
		return m, tea.Batch(m.spinner.Tick, m.compare())
	}
	return m, nil
}

func (m pickModel) back() (tea.Model, tea.Cmd) {
	switch m.phase { //nolint:exhaustive // only list phases reach here
	case pickCountryB:
		return m.enterPhase(pickCountryA), nil
	case pickMetric:
		return m.enterPhase(pickCountryB), nil
	}
	m.quitting = true
	return m, tea.Quit
}

// enterPhase switches to a list phase and fills the list for it
func (m pickModel) enterPhase(phase pickPhase) pickModel {
	m.phase = phase
	var (
		values   []string
		title    string
		selected string
	)
	switch phase { //nolint:exhaustive // only list phases are entered here
	case pickCountryA:
		values, title, selected = m.countries, "Select country A", m.countryA
	case pickCountryB:
		values, title, selected = m.countries, "Select country B", m.countryB
	case pickMetric:
		values, title, selected = m.metrics, "Select a metric", m.metric
	}

	items := make([]list.Item, len(values))
	cursor := 0
	for i, v := range values {
		items[i] = pickItem(v)
		if v == selected {
			cursor = i
		}
	}
	m.list.ResetFilter()
	m.list.SetItems(items)
	m.list.Title = title
	m.list.Select(cursor)
	return m
}

func (m pickModel) isListPhase() bool {
	return m.phase == pickCountryA || m.phase == pickCountryB || m.phase == pickMetric
}

func (m pickModel) handleWindowSizeMsg(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.list.SetSize(msg.Width-4, msg.Height-8)
	m.input.Width = msg.Width - 10
	return m, nil
}

func (m pickModel) handleSpinnerTickMsg(msg spinner.TickMsg) (tea.Model, tea.Cmd) {
	if m.phase != pickLoading && m.phase != pickComparing {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m pickModel) handleCatalogLoadedMsg(msg catalogLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		p := pipeline.Describe(msg.err)
		m.problem = &p
		if !catalog.IsUnavailable(msg.err) && !errors.Is(msg.err, catalog.ErrCatalogFormat) {
			m.addMessage(fmt.Sprintf("❌ %s", p.Message))
		}
		m.phase = pickCatalogPrompt
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	}

	m.metrics = msg.metrics
	m.addMessage(fmt.Sprintf("📚 Catalog %s: %d metrics", m.session.CatalogLocation(), len(msg.metrics)))
	if len(msg.metrics) == 0 {
		p := pipeline.Describe(fmt.Errorf("%w: catalog has no usable metrics", catalog.ErrCatalogFormat))
		m.problem = &p
		m.phase = pickCatalogPrompt
		m.input.Focus()
		return m, textinput.Blink
	}

	m.stage = "Resolving countries..."
	return m, m.resolveCountries()
}

func (m pickModel) handleCountriesResolvedMsg(msg countriesResolvedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		p := pipeline.Describe(msg.err)
		m.problem = &p
		m.phase = pickCatalogPrompt
		m.input.Focus()
		return m, textinput.Blink
	}

	m.resolution = msg.resolution
	m.countries = msg.resolution.Countries
	if msg.resolution.Fallback {
		m.addMessage("⚠️  No catalog dataset listed countries, using the built-in list")
	} else {
		m.addMessage(fmt.Sprintf("🌍 %d countries", len(m.countries)))
	}

	m = m.enterPhase(pickCountryA)
	if len(m.countries) > 1 {
		m.countryB = m.countries[1]
	}
	return m, nil
}

func (m pickModel) handleComparedMsg(msg comparedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		p := pipeline.Describe(msg.err)
		m.problem = &p
		m.addMessage(fmt.Sprintf("❌ %s", p.Kind))
		return m.enterPhase(pickMetric), nil
	}
	m.result = msg.result
	m.phase = pickResult
	return m, nil
}

func (m *pickModel) addMessage(message string) {
	m.messages = append(m.messages, message)
	if len(m.messages) > maxPickMessages {
		m.messages = m.messages[len(m.messages)-maxPickMessages:]
	}
}

func (m pickModel) renderHeader() []string {
	sections := []string{"", titleStyle.Render(fmt.Sprintf("   🌐 Country Compare v%s", Version)), ""}
	for _, msg := range m.messages {
		sections = append(sections, helpStyle.Render(msg))
	}
	if m.countryA != "" || m.metric != "" {
		sections = append(sections, "", selectionStyle.Render(m.renderSelection()))
	}
	return append(sections, "")
}

func (m pickModel) renderSelection() string {
	parts := make([]string, 0, 3)
	if m.countryA != "" {
		parts = append(parts, "A: "+m.countryA)
	}
	if m.countryB != "" && m.phase != pickCountryA {
		parts = append(parts, "B: "+m.countryB)
	}
	if m.metric != "" && (m.phase == pickComparing || m.phase == pickResult) {
		parts = append(parts, "Metric: "+m.metric)
	}
	return strings.Join(parts, "  │  ")
}

func (m pickModel) renderProblem() []string {
	if m.problem == nil {
		return nil
	}
	line := fmt.Sprintf("%s: %s", m.problem.Kind, m.problem.Message)
	sections := []string{problemStyle.Render(line)}
	if m.problem.Hint != "" {
		sections = append(sections, helpStyle.Render(m.problem.Hint))
	}
	return append(sections, "")
}

func (m pickModel) renderPrompt() []string {
	return []string{
		stageStyle.Render("No catalog could be loaded. Enter a catalog file path:"),
		"",
		"  " + m.input.View(),
		"",
		helpStyle.Render("enter: load  •  esc: quit"),
	}
}

func (m pickModel) View() string {
	if m.quitting {
		return ""
	}

	sections := m.renderHeader()
	sections = append(sections, m.renderProblem()...)

	switch m.phase {
	case pickLoading, pickComparing:
		sections = append(sections, stageStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.stage)))
		sections = append(sections, "", helpStyle.Render("Press Ctrl+C to quit"))
	case pickCatalogPrompt:
		sections = append(sections, m.renderPrompt()...)
	case pickCountryA, pickCountryB, pickMetric:
		sections = append(sections, m.list.View())
		sections = append(sections, helpStyle.Render("enter: select  •  /: filter  •  esc: back  •  q: quit"))
	case pickResult:
		sections = append(sections, present.Result(m.result, m.raw))
		sections = append(sections, "", helpStyle.Render("r: new comparison  •  m: change metric  •  q: quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Choose countries and a metric interactively",
	Long: `Opens an interactive terminal picker for country A, country B and the
metric, then shows the comparison. When the catalog cannot be loaded the
picker asks for a catalog file path.`,
	RunE: runPick,
}

func runPick(cmd *cobra.Command, _ []string) error {
	config, err := prepare(true)
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	startVersionCheck(ctx, config.Debug)

	session := newSession(config, logger)
	program := tea.NewProgram(newPickModel(ctx, session, config.Raw), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("interactive picker failed: %w", err)
	}

	m, ok := final.(pickModel)
	if !ok || m.result == nil {
		return nil
	}

	// The alt screen is gone, so print the result where it stays visible
	fmt.Fprintln(cmd.OutOrStdout(), present.Result(m.result, config.Raw))

	if config.ChartDir != "" {
		if err := writeCharts(m.result, config.ChartDir); err != nil {
			return err
		}
	}
	if config.Export.Path != "" {
		dest, err := exportResult(ctx, config, m.result)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		logger.Info(fmt.Sprintf("💾 Exported %s rows to %s", present.Count(len(m.result.Combined)), dest))
	}
	return nil
}
