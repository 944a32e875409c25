package browsertest

import (
	"strings"

	"github.com/v0xg/surveydriver/internal/browser"
)

// SurveyOptions shapes a fake Survey Tool page
type SurveyOptions struct {
	Rows      []string
	RowPrefix string
	// CellByID gives cells ids instead of classes, as the vetting table does
	CellByID bool

	PendingClass string
	// PendingFor is how many driver operations a row stays pending after a vote
	PendingFor int
	// InputAfter is how many operations after an add click the text box
	// appears; negative means never
	InputAfter int

	LoginTitle    string
	SidebarActive bool
	// DraggerCloses makes a dragger click close the sidebar
	DraggerCloses bool
	CloseScript   string
}

// Vote records one click on a vote control
type Vote struct {
	Row  string
	Cell string
}

// Survey is a Driver showing a Survey Tool page. Every navigation renders
// the table from scratch, like a page load does.
type Survey struct {
	*Driver
	opts SurveyOptions

	Table    *Node
	Sidebar  *Node
	Dragger  *Node
	Overlay  *Node
	Loading  *Node
	Coverage *Node

	Votes []Vote
}

func NewSurvey(opts SurveyOptions) *Survey {
	if opts.RowPrefix == "" {
		opts.RowPrefix = "row_"
	}
	if opts.PendingClass == "" {
		opts.PendingClass = "tr_checking2"
	}
	if opts.LoginTitle == "" {
		opts.LoginTitle = "Locale List"
	}
	if opts.CloseScript == "" {
		opts.CloseScript = "hideOverlayAndSidebar()"
	}
	s := &Survey{Driver: New(""), opts: opts}

	s.Loading = El("div").WithID("LoadingMessageSection").WithStyle("display", "none")
	s.Sidebar = El("div").WithID("left-sidebar")
	s.Dragger = El("div").WithID("dragger")
	s.Overlay = El("div").WithID("overlay").WithStyle("display", "none")
	s.Coverage = El("select").WithID("coverageLevel").Append(
		El("option").WithAttr("value", "modern"),
		El("option").WithAttr("value", "comprehensive"),
	)
	s.Table = El("table").WithID("vetting-table").Append(El("tbody"))
	s.Body().Append(s.Loading, s.Sidebar, s.Dragger, s.Overlay, s.Coverage, s.Table)

	if opts.SidebarActive {
		s.Sidebar.AddClass("active")
	}
	s.Dragger.OnClick = func(*Node) {
		if s.opts.DraggerCloses {
			s.Sidebar.RemoveClass("active")
		}
	}
	s.Scripts[opts.CloseScript] = func() {
		s.Sidebar.RemoveClass("active")
	}
	s.OnNavigate = s.load
	return s
}

func (s *Survey) load(url string) {
	if strings.Contains(url, "survey?") {
		s.title = s.opts.LoginTitle
		if len(s.Body().find(browser.ByClass, "glyphicon-user")) == 0 {
			s.Body().Append(El("span").WithClass("glyphicon", "glyphicon-user"))
		}
		return
	}
	page := url[strings.LastIndex(url, "/")+1:]
	s.title = page + " | Survey Tool"
	s.RebuildTable()
}

// RebuildTable replaces every row, leaving old handles stale
func (s *Survey) RebuildTable() {
	tbody := El("tbody")
	for _, key := range s.opts.Rows {
		tbody.Append(s.row(key))
	}
	s.Table.children[0].Replace(tbody)
}

// RebuildRow replaces one row with a fresh copy, leaving handles into the
// old row stale
func (s *Survey) RebuildRow(key string) {
	if old := s.Row(key); old != nil {
		old.Replace(s.row(key))
	}
}

// Row returns the live node of a row, or nil
func (s *Survey) Row(key string) *Node {
	found := s.Root.find(browser.ByID, s.opts.RowPrefix+key)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Cell returns the live cell node of a row, or nil
func (s *Survey) Cell(key, cell string) *Node {
	row := s.Row(key)
	if row == nil {
		return nil
	}
	by := browser.ByClass
	if s.opts.CellByID {
		by = browser.ByID
	}
	found := row.find(by, cell)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Pending returns the number of rows awaiting the server
func (s *Survey) Pending() int {
	return len(s.Root.find(browser.ByClass, s.opts.PendingClass))
}

func (s *Survey) cell(name string) *Node {
	td := El("td")
	if s.opts.CellByID {
		return td.WithID(name)
	}
	return td.WithClass(name)
}

func (s *Survey) row(key string) *Node {
	tr := El("tr").WithID(s.opts.RowPrefix + key)
	vote := func(cell string) func(*Node) {
		return func(*Node) {
			s.Votes = append(s.Votes, Vote{Row: key, Cell: cell})
			tr.Attrs["data-vote"] = cell
			tr.AddClass(s.opts.PendingClass)
			s.After(s.opts.PendingFor, func() { tr.RemoveClass(s.opts.PendingClass) })
		}
	}

	no := El("input").WithAttr("type", "radio")
	no.OnClick = vote("nocell")
	proposed := El("input").WithAttr("type", "radio")
	proposed.OnClick = vote("proposedcell")

	add := s.cell("addcell")
	button := El("button")
	button.OnClick = func(*Node) {
		s.Votes = append(s.Votes, Vote{Row: key, Cell: "addcell"})
		tr.Attrs["data-vote"] = "addcell"
		if s.opts.InputAfter < 0 {
			return
		}
		s.After(s.opts.InputAfter, func() {
			if len(add.find(browser.ByTag, "input")) > 0 {
				return
			}
			add.Append(El("input").WithAttr("type", "text"))
		})
	}
	add.Append(button)

	return tr.Append(
		s.cell("nocell").Append(no),
		s.cell("proposedcell").Append(proposed),
		add,
	)
}
