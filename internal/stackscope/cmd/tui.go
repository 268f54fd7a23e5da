package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"stackscope/internal/stackscope/styles"
	"stackscope/internal/ui/colorize"
)

type viewMode int

const (
	viewSummary viewMode = iota
	viewMethods
	viewListing
)

type methodItem struct {
	report MethodReport
}

func (i methodItem) FilterValue() string { return i.report.Title() }

type methodDelegate struct{}

func (d methodDelegate) Height() int                               { return 1 }
func (d methodDelegate) Spacing() int                              { return 0 }
func (d methodDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d methodDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(methodItem)
	if !ok {
		return
	}

	indicator := " "
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if index == m.Index() {
		indicator = ">"
		countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	}
	count := fmt.Sprintf("%4d", len(i.report.Calls))
	if i.report.Error != "" {
		count = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("   !")
	} else {
		count = countStyle.Render(count)
	}
	fmt.Fprintf(w, " %s %s  %s", indicator, count, i.report.Title())
}

type model struct {
	ctx     context.Context
	cfg     Config
	path    string
	report  *Report
	err     error
	loading bool
	mode    viewMode
	summary viewport.Model
	methods list.Model
	listing viewport.Model
	spinner spinner.Model
	width   int
	height  int
}

type reportMsg struct {
	report *Report
	err    error
}

func buildReportCmd(ctx context.Context, path string, cfg Config) tea.Cmd {
	return func() tea.Msg {
		r, err := BuildReport(ctx, path, cfg, true)
		return reportMsg{report: r, err: err}
	}
}

func newModel(ctx context.Context, path string, cfg Config) model {
	summary := viewport.New()
	summary.SetWidth(80)
	summary.SetHeight(24)
	listing := viewport.New()
	listing.SetWidth(80)
	listing.SetHeight(24)

	methods := list.New([]list.Item{}, methodDelegate{}, 80, 24)
	methods.SetShowStatusBar(false)
	methods.SetFilteringEnabled(true)
	methods.Title = "Methods"
	methods.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	m := model{
		ctx:     ctx,
		cfg:     cfg,
		path:    path,
		loading: true,
		mode:    viewSummary,
		summary: summary,
		methods: methods,
		listing: listing,
		spinner: s,
		width:   80,
		height:  24,
	}
	m.updateSummary()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(buildReportCmd(m.ctx, m.path, m.cfg), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case reportMsg:
		m.loading = false
		m.report, m.err = msg.report, msg.err
		if m.report != nil {
			items := make([]list.Item, len(m.report.Methods))
			for i, r := range m.report.Methods {
				items[i] = methodItem{report: r}
			}
			m.methods.SetItems(items)
			m.methods.Title = fmt.Sprintf("Methods (%d)", len(items))
		}
		m.updateSummary()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateSummary()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, vp := range []*viewport.Model{&m.summary, &m.listing} {
			vp.SetWidth(msg.Width)
			vp.SetHeight(msg.Height - 2)
		}
		m.methods.SetWidth(msg.Width)
		m.methods.SetHeight(msg.Height - 2)
		m.updateSummary()

	case tea.KeyMsg:
		if m.mode == viewMethods && m.methods.FilterState() == list.Filtering {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			m.mode = viewSummary
			return m, nil
		case "m":
			if m.report != nil {
				m.mode = viewMethods
			}
			return m, nil
		case "esc":
			if m.mode == viewListing {
				m.mode = viewMethods
				return m, nil
			}
		case "enter":
			if m.mode == viewMethods {
				if item, ok := m.methods.SelectedItem().(methodItem); ok {
					m.showListing(item.report)
					m.mode = viewListing
				}
				return m, nil
			}
		case "tab":
			if m.report != nil {
				m.mode = (m.mode + 1) % 2
			}
			return m, nil
		}
	}

	switch m.mode {
	case viewMethods:
		m.methods, cmd = m.methods.Update(msg)
	case viewListing:
		m.listing, cmd = m.listing.Update(msg)
	default:
		m.summary, cmd = m.summary.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	var content, menu string
	switch m.mode {
	case viewMethods:
		content = m.methods.View()
		menu = " Enter: listing • S: summary • /: filter • Q: quit "
	case viewListing:
		content = m.listing.View()
		menu = " Esc: methods • S: summary • Q: quit "
	default:
		content = m.summary.View()
		if m.report != nil {
			menu = " M: methods • Tab: cycle • Q: quit "
		} else {
			menu = " Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)
	return content + "\n" + menuStyle.Render(menu)
}

func (m *model) updateSummary() {
	var markdown string
	switch {
	case m.loading:
		markdown = fmt.Sprintf("# stackscope\n\n```\n; %s\n```\n\n%s Analyzing...", m.path, m.spinner.View())
	case m.err != nil:
		markdown = fmt.Sprintf("# stackscope\n\n```\n; %s\n```\n\n> %s", m.path, escapeMarkdown(m.err.Error()))
	default:
		markdown = summaryMarkdown(m.report, false)
	}
	m.summary.SetContent(strings.TrimSuffix(styles.Render(markdown, m.width-2), "\n"))
}

func (m *model) showListing(r MethodReport) {
	var b strings.Builder
	b.WriteString(r.Title())
	b.WriteString("\n\n")
	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n\n", r.Error)
	}
	b.WriteString(colorize.Listing(r.Listing))
	for _, c := range r.Calls {
		if c.Comment != "" {
			fmt.Fprintf(&b, "\n%6d  %s", c.Offset, c.Comment)
		}
	}
	m.listing.SetContent(b.String())
	m.listing.GotoTop()
}
