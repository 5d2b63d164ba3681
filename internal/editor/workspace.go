package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PaneItem is anything the workspace pane can hold
type PaneItem interface {
	Title() string
}

// destroyer is implemented by items that release resources when removed
type destroyer interface {
	Destroy()
}

// TextEditor is an open file with a cursor
type TextEditor struct {
	path string

	mu     sync.RWMutex
	line   int
	column int
}

// Title returns the file's base name
func (e *TextEditor) Title() string { return filepath.Base(e.path) }

// Path returns the absolute file path
func (e *TextEditor) Path() string { return e.path }

// Cursor returns the zero-based cursor position
func (e *TextEditor) Cursor() (line, column int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.line, e.column
}

// SetCursor moves the cursor. Negative values clamp to zero.
func (e *TextEditor) SetCursor(line, column int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.line = max(line, 0)
	e.column = max(column, 0)
}

// Workspace is the host's single pane: an ordered item list with one active
// item, a status bar and the project root.
type Workspace struct {
	root      string
	statusBar *StatusBar

	mu     sync.RWMutex
	items  []PaneItem
	active PaneItem

	added         emitter[PaneItem]
	destroyed     emitter[PaneItem]
	activeChanged emitter[PaneItem]
}

// NewWorkspace creates an empty workspace rooted at root
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}

	return &Workspace{root: abs, statusBar: NewStatusBar()}, nil
}

// Root returns the absolute project root
func (w *Workspace) Root() string { return w.root }

// StatusBar returns the rempl status bar tile
func (w *Workspace) StatusBar() *StatusBar { return w.statusBar }

// AddItem appends item to the pane. The first item becomes active.
func (w *Workspace) AddItem(item PaneItem) {
	w.mu.Lock()
	for _, existing := range w.items {
		if existing == item {
			w.mu.Unlock()
			return
		}
	}
	w.items = append(w.items, item)
	activate := w.active == nil
	if activate {
		w.active = item
	}
	w.mu.Unlock()

	w.added.emit(item)
	if activate {
		w.activeChanged.emit(item)
	}
}

// ActivateItem makes item the active item. Unknown items are ignored.
func (w *Workspace) ActivateItem(item PaneItem) bool {
	w.mu.Lock()
	if w.indexOf(item) < 0 {
		w.mu.Unlock()
		return false
	}
	changed := w.active != item
	w.active = item
	w.mu.Unlock()

	if changed {
		w.activeChanged.emit(item)
	}
	return true
}

// ActivateNextItem activates the item after the active one, wrapping around
func (w *Workspace) ActivateNextItem() {
	w.mu.RLock()
	if len(w.items) == 0 {
		w.mu.RUnlock()
		return
	}
	next := w.items[(w.indexOf(w.active)+1)%len(w.items)]
	w.mu.RUnlock()

	w.ActivateItem(next)
}

// DestroyItem removes item from the pane and destroys it. If it was active,
// its neighbour becomes active.
func (w *Workspace) DestroyItem(item PaneItem) bool {
	w.mu.Lock()
	i := w.indexOf(item)
	if i < 0 {
		w.mu.Unlock()
		return false
	}
	w.items = append(w.items[:i:i], w.items[i+1:]...)

	var next PaneItem
	wasActive := w.active == item
	if wasActive {
		w.active = nil
		if len(w.items) > 0 {
			next = w.items[min(i, len(w.items)-1)]
			w.active = next
		}
	}
	w.mu.Unlock()

	if d, ok := item.(destroyer); ok {
		d.Destroy()
	}
	w.destroyed.emit(item)
	if wasActive {
		w.activeChanged.emit(next)
	}
	return true
}

// Items returns the pane items in order
func (w *Workspace) Items() []PaneItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]PaneItem(nil), w.items...)
}

// ActiveItem returns the active item, or nil
func (w *Workspace) ActiveItem() PaneItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// ActiveEditor returns the active item when it is a text editor
func (w *Workspace) ActiveEditor() *TextEditor {
	editor, _ := w.ActiveItem().(*TextEditor)
	return editor
}

// OpenFile activates the editor for path, creating it if needed, and moves
// its cursor. path must be absolute.
func (w *Workspace) OpenFile(path string, line, column int) (*TextEditor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open %s: is a directory", path)
	}

	w.mu.RLock()
	var editor *TextEditor
	for _, item := range w.items {
		if e, ok := item.(*TextEditor); ok && e.path == path {
			editor = e
			break
		}
	}
	w.mu.RUnlock()

	if editor == nil {
		editor = &TextEditor{path: path}
		w.AddItem(editor)
	}
	editor.SetCursor(line, column)
	w.ActivateItem(editor)
	return editor, nil
}

// OnDidAddPaneItem subscribes to item additions
func (w *Workspace) OnDidAddPaneItem(fn func(PaneItem)) Disposable {
	return w.added.on(fn)
}

// OnDidDestroyPaneItem subscribes to item removals
func (w *Workspace) OnDidDestroyPaneItem(fn func(PaneItem)) Disposable {
	return w.destroyed.on(fn)
}

// OnDidChangeActivePaneItem subscribes to active item changes. The item is
// nil when the pane became empty.
func (w *Workspace) OnDidChangeActivePaneItem(fn func(PaneItem)) Disposable {
	return w.activeChanged.on(fn)
}

// indexOf must be called with w.mu held
func (w *Workspace) indexOf(item PaneItem) int {
	if item == nil {
		return -1
	}
	for i, existing := range w.items {
		if existing == item {
			return i
		}
	}
	return -1
}
