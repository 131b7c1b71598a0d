package listview

import (
	"sort"
	"unicode/utf8"
)

const (
	MinSuggestLen  = 2
	MaxSuggestions = 5
)

type FetchStatus string

const (
	StatusIdle    FetchStatus = "idle"
	StatusLoading FetchStatus = "loading"
	StatusReady   FetchStatus = "ready"
	StatusFailed  FetchStatus = "failed"
)

// State is the view state of one list. It is not safe for concurrent use;
// owners serialize access.
type State[R any] struct {
	schema Schema[R]

	Status             FetchStatus
	Rows               []R
	Search             string
	Debounced          string
	Suggestions        []string
	SuggestionsVisible bool
	Sort               Sort
	Selection          map[string]struct{}
	OpenMenu           string
	Filter             string
	Notice             string

	fetchSeq   uint64
	suggestSeq uint64
}

func NewState[R any](schema Schema[R], initial Sort) *State[R] {
	return &State[R]{
		schema:    schema,
		Status:    StatusIdle,
		Sort:      initial,
		Selection: make(map[string]struct{}),
	}
}

func (s *State[R]) Schema() Schema[R] {
	return s.schema
}

// BeginFetch issues a new fetch sequence number.
func (s *State[R]) BeginFetch() uint64 {
	s.fetchSeq++
	s.Status = StatusLoading
	return s.fetchSeq
}

// FetchSucceeded installs rows unless a newer fetch was issued after seq.
func (s *State[R]) FetchSucceeded(seq uint64, rows []R) bool {
	if seq != s.fetchSeq {
		return false
	}
	s.Rows = rows
	s.Status = StatusReady
	s.Notice = ""

	present := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		present[s.schema.ID(row)] = struct{}{}
	}
	for id := range s.Selection {
		if _, ok := present[id]; !ok {
			delete(s.Selection, id)
		}
	}
	if _, ok := present[s.OpenMenu]; !ok {
		s.OpenMenu = ""
	}
	return true
}

// FetchFailed keeps the previous rows and surfaces notice.
func (s *State[R]) FetchFailed(seq uint64, notice string) bool {
	if seq != s.fetchSeq {
		return false
	}
	s.Status = StatusFailed
	s.Notice = notice
	return true
}

func (s *State[R]) SetSearch(text string) {
	s.Search = text
	s.SuggestionsVisible = true
}

// Settle records the debounced search text. It reports whether the text is
// long enough to query suggestions; shorter text clears them.
func (s *State[R]) Settle(text string) bool {
	s.Debounced = text
	if utf8.RuneCountInString(text) < MinSuggestLen {
		s.suggestSeq++
		s.Suggestions = nil
		return false
	}
	return true
}

func (s *State[R]) BeginSuggest() uint64 {
	s.suggestSeq++
	return s.suggestSeq
}

func (s *State[R]) SuggestSucceeded(seq uint64, values []string) bool {
	if seq != s.suggestSeq {
		return false
	}
	s.Suggestions = Distinct(values, MaxSuggestions)
	return true
}

func (s *State[R]) SuggestFailed(seq uint64, notice string) bool {
	if seq != s.suggestSeq {
		return false
	}
	s.Notice = notice
	return true
}

// PickSuggestion applies value as both raw and debounced search text.
func (s *State[R]) PickSuggestion(value string) {
	s.Search = value
	s.Debounced = value
	s.SuggestionsVisible = false
	s.suggestSeq++
}

func (s *State[R]) ToggleSort(field string) bool {
	if _, ok := s.schema.SortKey(field); !ok {
		return false
	}
	s.Sort = s.Sort.Toggle(field)
	return true
}

// ToggleRow flips the selection of a loaded row. It reports false for ids
// that are not loaded.
func (s *State[R]) ToggleRow(id string) bool {
	if _, ok := s.Selection[id]; ok {
		delete(s.Selection, id)
		return true
	}
	if !s.hasRow(id) {
		return false
	}
	s.Selection[id] = struct{}{}
	return true
}

func (s *State[R]) hasRow(id string) bool {
	for _, row := range s.Rows {
		if s.schema.ID(row) == id {
			return true
		}
	}
	return false
}

// SetAll selects every loaded row, or none.
func (s *State[R]) SetAll(checked bool) {
	s.Selection = make(map[string]struct{}, len(s.Rows))
	if !checked {
		return
	}
	for _, row := range s.Rows {
		s.Selection[s.schema.ID(row)] = struct{}{}
	}
}

// AllSelected drives the header checkbox. With no rows loaded it is true.
func (s *State[R]) AllSelected() bool {
	return len(s.Selection) == len(s.Rows)
}

func (s *State[R]) IsSelected(id string) bool {
	_, ok := s.Selection[id]
	return ok
}

// ToggleMenu opens the menu of a loaded row, closing any other, or closes it
// when it is already open. It reports false for ids that are not loaded.
func (s *State[R]) ToggleMenu(id string) bool {
	if s.OpenMenu == id {
		s.OpenMenu = ""
		return true
	}
	if !s.hasRow(id) {
		return false
	}
	s.OpenMenu = id
	return true
}

func (s *State[R]) CloseMenu() {
	s.OpenMenu = ""
}

// ToggleFilter sets the quick filter, clearing it when value is already
// active. It returns the resulting filter.
func (s *State[R]) ToggleFilter(value string) string {
	if s.Filter == value {
		s.Filter = ""
	} else {
		s.Filter = value
	}
	return s.Filter
}

func (s *State[R]) DismissNotice() {
	s.Notice = ""
}

// Remove drops a row removed from the store without waiting for a refetch.
func (s *State[R]) Remove(id string) {
	rows := s.Rows[:0:0]
	for _, row := range s.Rows {
		if s.schema.ID(row) != id {
			rows = append(rows, row)
		}
	}
	s.Rows = rows
	delete(s.Selection, id)
	if s.OpenMenu == id {
		s.OpenMenu = ""
	}
}

func (s *State[R]) View() []R {
	return Derive(s.schema, s.Rows, s.Sort, s.Debounced)
}

// Snapshot is an immutable copy of a state plus its derived view.
type Snapshot[R any] struct {
	Status             FetchStatus `json:"status"`
	Rows               []R         `json:"-"`
	View               []R         `json:"rows"`
	Search             string      `json:"search"`
	Debounced          string      `json:"debounced_search"`
	Suggestions        []string    `json:"suggestions"`
	SuggestionsVisible bool        `json:"suggestions_visible"`
	Sort               Sort        `json:"sort"`
	Selected           []string    `json:"selected"`
	AllSelected        bool        `json:"all_selected"`
	OpenMenu           string      `json:"open_menu,omitempty"`
	Filter             string      `json:"filter,omitempty"`
	Notice             string      `json:"notice,omitempty"`
}

func (s *State[R]) Snapshot() Snapshot[R] {
	selected := make([]string, 0, len(s.Selection))
	for id := range s.Selection {
		selected = append(selected, id)
	}
	sort.Strings(selected)

	rows := make([]R, len(s.Rows))
	copy(rows, s.Rows)

	return Snapshot[R]{
		Status:             s.Status,
		Rows:               rows,
		View:               s.View(),
		Search:             s.Search,
		Debounced:          s.Debounced,
		Suggestions:        append([]string(nil), s.Suggestions...),
		SuggestionsVisible: s.SuggestionsVisible && len(s.Suggestions) > 0,
		Sort:               s.Sort,
		Selected:           selected,
		AllSelected:        s.AllSelected(),
		OpenMenu:           s.OpenMenu,
		Filter:             s.Filter,
		Notice:             s.Notice,
	}
}

func (s Snapshot[R]) IsSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}
